package model

import "encoding/json"

// Analysis is the structured result the analysis agent produces for a
// transcript. It is stored as an opaque JSON blob on the entry row and
// only (un)marshalled at the storage boundary.
type Analysis struct {
	Title          string   `json:"title"`
	Summary        string   `json:"summary"`
	Themes         []string `json:"themes,omitempty"`
	Tags           []string `json:"tags,omitempty"`
	Mood           string   `json:"mood,omitempty"`
	People         []string `json:"people,omitempty"`
	Places         []string `json:"places,omitempty"`
	TimeReferences []string `json:"time_references,omitempty"`
	KeyInsights    []string `json:"key_insights,omitempty"`
}

// RelatedEntry references an existing entry the agent considers
// connected to the one being analyzed.
type RelatedEntry struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// AnalysisResult is everything one analysis call returns.
type AnalysisResult struct {
	Analysis       Analysis        `json:"analysis"`
	FollowUps      []string        `json:"follow_up_questions,omitempty"`
	RelatedEntries []RelatedEntry  `json:"related_entries,omitempty"`
	Trajectory     json.RawMessage `json:"trajectory,omitempty"`
}

// EntrySummary is the compact form of an entry passed to the agent as
// linking candidates.
type EntrySummary struct {
	ID        string   `json:"id"`
	Title     string   `json:"title,omitempty"`
	CreatedAt string   `json:"created_at"`
	Tags      []string `json:"tags,omitempty"`
}
