package server

import (
	"strings"
	"testing"
)

func TestValidateNickname(t *testing.T) {
	got, err := validateNickname("  Ada   Lovelace ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != "Ada Lovelace" {
		t.Fatalf("expected whitespace collapsed, got %q", got)
	}

	for _, bad := range []string{"", "   ", strings.Repeat("a", 21), "Ada<], ", "héron"} {
		if _, err := validateNickname(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestValidateReasonOptional(t *testing.T) {
	if got, err := validateReason("   "); err != nil || got != "" {
		t.Fatalf("expected empty reason to pass, got %q err=%v", got, err)
	}
	if _, err := validateReason(strings.Repeat("a", 141)); err == nil {
		t.Fatal("expected overlong reason to be rejected")
	}
}

func TestValidateJoinCodeNormalizes(t *testing.T) {
	got, err := validateJoinCode(" abqr34 ")
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if got != "ABQR34" {
		t.Fatalf("expected ABQR34, got %q", got)
	}

	for _, bad := range []string{"", "ABC", "ABCDEFG", "ABC D4"} {
		if _, err := validateJoinCode(bad); err == nil {
			t.Errorf("expected %q to be rejected", bad)
		}
	}
}

func TestNewJoinCodeAlphabet(t *testing.T) {
	for i := 0; i < 50; i++ {
		code := newJoinCode()
		if len(code) != joinCodeLength {
			t.Fatalf("expected length %d, got %q", joinCodeLength, code)
		}
		if strings.ContainsAny(code, "IO01") {
			t.Fatalf("code %q contains ambiguous characters", code)
		}
	}
}
