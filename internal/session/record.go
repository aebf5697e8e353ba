// Package session persists browser authentication state on disk: one
// pretty-printed JSON file per named session record.
package session

import (
	"regexp"
	"time"

	"github.com/WarDekar/BB-Browser/internal/engine"
)

// Record is the serialized authentication state of one logical login. Its
// lifetime is independent of the instance that produced it.
type Record struct {
	Name           string            `json:"name"`
	Instance       string            `json:"instance"`
	Cookies        []engine.Cookie   `json:"cookies"`
	LocalStorage   map[string]string `json:"local_storage"`
	SessionStorage map[string]string `json:"session_storage"`
	LastURL        string            `json:"last_url,omitempty"`
	CreatedAt      time.Time         `json:"created_at"`
	UpdatedAt      time.Time         `json:"updated_at"`
}

var unsafeRunes = regexp.MustCompile(`[^A-Za-z0-9_-]`)

// SanitizeName maps a session name to a filesystem-safe storage key.
// Distinct names can sanitize to the same key ("a/b" and "a_b" both become
// "a_b"); such aliases are last-write-wins.
func SanitizeName(name string) string {
	return unsafeRunes.ReplaceAllString(name, "_")
}
