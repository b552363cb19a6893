// Package client is the device-side SDK: it keeps a local view of one game
// consistent with the server over a best-effort change feed plus a
// reconciliation poll, and persists device identity across reloads.
package client

import (
	"encoding/json"
	"os"
	"sync"
	"time"
)

// cacheVersion guards the persisted shape; a record written by an older or
// newer build is discarded rather than migrated.
const cacheVersion = 1

// SessionRecord is device-local bookkeeping only. It is never a source of
// truth for authorization: the server re-validates every privileged call.
type SessionRecord struct {
	Version       int       `json:"version"`
	PlayerID      int       `json:"player_id"`
	GameID        string    `json:"game_id"`
	Nickname      string    `json:"nickname"`
	AuthToken     string    `json:"auth_token,omitempty"`
	TeamID        int       `json:"team_id,omitempty"`
	GameStatus    string    `json:"game_status,omitempty"`
	IsChickenTeam bool      `json:"is_chicken_team,omitempty"`
	SavedAt       time.Time `json:"saved_at"`
}

type SessionCache struct {
	mu   sync.Mutex
	path string
}

func NewSessionCache(path string) *SessionCache {
	return &SessionCache{path: path}
}

// Load returns the persisted record, or false if there is none. A record
// that fails to decode or is missing its identity fields is wiped and
// treated as logged out; corruption here is a device-local concern and never
// an error the caller has to handle.
func (c *SessionCache) Load() (SessionRecord, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		return SessionRecord{}, false
	}
	var record SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		c.wipeLocked()
		return SessionRecord{}, false
	}
	if record.Version != cacheVersion || record.PlayerID <= 0 || record.GameID == "" {
		c.wipeLocked()
		return SessionRecord{}, false
	}
	return record, true
}

func (c *SessionCache) Save(record SessionRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	record.Version = cacheVersion
	record.SavedAt = time.Now().UTC()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return os.WriteFile(c.path, data, 0o600)
}

// Update applies fn to the stored record if one exists.
func (c *SessionCache) Update(fn func(record *SessionRecord)) {
	record, ok := c.Load()
	if !ok {
		return
	}
	fn(&record)
	_ = c.Save(record)
}

func (c *SessionCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipeLocked()
}

func (c *SessionCache) wipeLocked() {
	_ = os.Remove(c.path)
}
