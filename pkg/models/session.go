package models

import (
	"encoding/json"
	"time"
)

// SessionPlatformAll is the platform key under which the shared cookie
// snapshot is stored; fetches load the newest active row with this key.
const SessionPlatformAll = "all"

// BrowserSession is a serialized cookie-jar + origin-localStorage snapshot
// uploaded out-of-band and injected into browser-assisted fetches.
type BrowserSession struct {
	ID           int64           `json:"id"`
	Platform     string          `json:"platform"`
	StorageState json.RawMessage `json:"storage_state"`
	IsActive     bool            `json:"is_active"`
	UpdatedAt    time.Time       `json:"updated_at"`
	ExpiresAt    *time.Time      `json:"expires_at,omitempty"`
}

// SessionCookie is one cookie inside a storage-state snapshot, in the
// browser storageState export format.
type SessionCookie struct {
	Name     string  `json:"name"`
	Value    string  `json:"value"`
	Domain   string  `json:"domain"`
	Path     string  `json:"path"`
	Expires  float64 `json:"expires"`
	HTTPOnly bool    `json:"httpOnly"`
	Secure   bool    `json:"secure"`
	SameSite string  `json:"sameSite"`
}

// StorageState is the decoded shape of BrowserSession.StorageState.
type StorageState struct {
	Cookies []SessionCookie `json:"cookies"`
	Origins []struct {
		Origin       string `json:"origin"`
		LocalStorage []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"localStorage"`
	} `json:"origins"`
}
