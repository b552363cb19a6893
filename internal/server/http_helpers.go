package server

import (
	"encoding/json"
	"io"
	"net/http"
)

// Request bodies are tiny JSON shapes (a nickname, a ledger operation); a
// megabyte already means something is wrong on the other end.
const maxRequestBody = 1 << 20

func readJSON(body io.Reader, dest any) error {
	decoder := json.NewDecoder(io.LimitReader(body, maxRequestBody))
	decoder.DisallowUnknownFields()
	return decoder.Decode(dest)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
	})
}
