package model

import "time"

// Setting keys for the two free-text documents the API exposes.
const (
	SettingAgentOverview = "agent_overview"
	SettingUserProfile   = "user_profile"
)

type Setting struct {
	Key       string    `json:"key"`
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CacheEntry is a derived value pinned to a dependency token. The
// value is reusable only while the caller's current token matches
// DependsOn; there is no time-based expiry.
type CacheEntry struct {
	Key       string
	Value     string
	DependsOn *string
	UpdatedAt time.Time
}
