package server

import (
	"errors"
	"fmt"
	"strings"
)

const (
	maxNicknameLength = 20
	maxTeamNameLength = 30
	maxReasonLength   = 140
	joinCodeLength    = 6
)

func validateNickname(nickname string) (string, error) {
	return validateText("nickname", nickname, maxNicknameLength)
}

func validateTeamName(name string) (string, error) {
	return validateText("team name", name, maxTeamNameLength)
}

func validateReason(reason string) (string, error) {
	trimmed := normalizeText(reason)
	if trimmed == "" {
		return "", nil
	}
	if len(trimmed) > maxReasonLength {
		return "", fmt.Errorf("reason must be %d characters or fewer", maxReasonLength)
	}
	if !isSafeText(trimmed) {
		return "", errors.New("reason contains unsupported characters")
	}
	return trimmed, nil
}

func validateJoinCode(code string) (string, error) {
	trimmed := strings.ToUpper(strings.TrimSpace(code))
	if len(trimmed) != joinCodeLength {
		return "", fmt.Errorf("join code must be %d characters", joinCodeLength)
	}
	for _, r := range trimmed {
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		return "", errors.New("join code contains unsupported characters")
	}
	return trimmed, nil
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len(trimmed) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

func isSafeText(text string) bool {
	for _, r := range text {
		if r > 127 {
			return false
		}
		if r >= 'a' && r <= 'z' {
			continue
		}
		if r >= 'A' && r <= 'Z' {
			continue
		}
		if r >= '0' && r <= '9' {
			continue
		}
		switch r {
		case ' ', '-', '_', '\'', '"', '.', ',', '!', '?', ':', ';', '&', '(', ')', '/':
			continue
		default:
			return false
		}
	}
	return true
}
