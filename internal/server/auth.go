package server

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var (
	errAuthRequired = errors.New("player authentication required")
	errInvalidAuth  = errors.New("invalid player authentication")
)

// ensurePlayerAuthToken must be called with the store mutex held (inside an
// UpdateGame closure) or on a freshly joined player before the game is
// shared.
func ensurePlayerAuthToken(game *Game, playerID int) string {
	if game.PlayerAuthTokens == nil {
		game.PlayerAuthTokens = make(map[int]string)
	}
	token, ok := game.PlayerAuthTokens[playerID]
	if !ok {
		token = uuid.NewString()
		game.PlayerAuthTokens[playerID] = token
	}
	return token
}

// checkPlayerAuth validates a device-supplied token against the server-side
// record. Local caches are never trusted for authorization; every privileged
// mutation re-validates here.
func checkPlayerAuth(game *Game, playerID int, token string) error {
	if playerID <= 0 {
		return errPlayerNotFound
	}
	expected, ok := game.PlayerAuthTokens[playerID]
	if !ok {
		return errAuthRequired
	}
	provided := strings.TrimSpace(token)
	if provided == "" {
		return errAuthRequired
	}
	if subtle.ConstantTimeCompare([]byte(provided), []byte(expected)) != 1 {
		return errInvalidAuth
	}
	return nil
}
