package model

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPendingTranscription Status = "pending_transcription"
	StatusTranscribed          Status = "transcribed"
	StatusAnalyzed             Status = "analyzed"
)

// Valid reports whether s is one of the known entry statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPendingTranscription, StatusTranscribed, StatusAnalyzed:
		return true
	}
	return false
}

// Entry is one journaling session. Most fields stay nil until the
// pipeline stage that produces them has run.
type Entry struct {
	ID            string          `json:"id"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Title         *string         `json:"title"`
	Transcript    *string         `json:"transcript"`
	AudioPath     *string         `json:"audio_path"`
	AudioDuration *float64        `json:"audio_duration_seconds"`
	Status        Status          `json:"status"`
	Analysis      *Analysis       `json:"analysis"`
	FollowUps     []string        `json:"follow_up_questions"`
	Trajectory    json.RawMessage `json:"agent_trajectory,omitempty"`
	Tags          []Tag           `json:"tags,omitempty"`
}

// EntryUpdate is the closed set of mutable entry fields. Updates are
// expressed through this struct rather than a key/value map so that
// untrusted field names can never reach the SQL layer.
type EntryUpdate struct {
	Title         *string          `json:"title"`
	Transcript    *string          `json:"transcript"`
	AudioPath     *string          `json:"audio_path"`
	AudioDuration *float64         `json:"audio_duration_seconds"`
	Status        *Status          `json:"status"`
	Analysis      *Analysis        `json:"analysis"`
	FollowUps     *[]string        `json:"follow_up_questions"`
	Trajectory    *json.RawMessage `json:"agent_trajectory"`
}

// NewEntryID returns a time-sortable id safe for URLs and filenames:
// a UTC timestamp followed by a short random suffix.
func NewEntryID() string {
	ts := time.Now().UTC().Format("20060102T150405")
	suffix := strings.SplitN(uuid.NewString(), "-", 2)[0]
	return ts + "-" + suffix
}

type ListEntriesQuery struct {
	Page     int    `form:"page,default=1"`
	PageSize int    `form:"page_size,default=20"`
	Status   string `form:"status"`
}
