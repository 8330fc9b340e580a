package model

import (
	"strings"
	"time"
)

// Tag identity is the normalized name; NormalizeTagName is applied
// before every lookup or insert.
type Tag struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// EntryLink is one direction of an entry-to-entry relationship. The
// pair (SourceID, TargetID) is unique; re-linking replaces the reason.
type EntryLink struct {
	SourceID  string    `json:"source_id"`
	TargetID  string    `json:"target_id"`
	Reason    *string   `json:"reason"`
	CreatedAt time.Time `json:"created_at"`
}

// LinkedEntry is a neighbor of some entry, in either link direction,
// annotated with the relationship text stored on that edge.
type LinkedEntry struct {
	Entry  Entry   `json:"entry"`
	Reason *string `json:"reason"`
}
