// Package agent wraps the external analysis collaborator: the model
// that reads a transcript and produces structured analysis, tag
// suggestions and related-entry references.
package agent

import (
	"context"

	"github.com/josiah-roberts/muninn/pkg/model"
)

// AnalyzeRequest carries everything the agent needs for one entry.
type AnalyzeRequest struct {
	EntryID      string
	Transcript   string
	ExistingTags []string
	// Recent analyzed entries offered as linking candidates.
	RecentEntries []model.EntrySummary
	// User-authored context document (agent overview setting).
	AgentOverview string
	// Agent-authored profile persisted across sessions.
	UserProfile string
}

// PromptRequest asks for personalized reflection prompts derived from
// recent journaling activity.
type PromptRequest struct {
	RecentEntries []model.EntrySummary
	UserProfile   string
	Count         int
}

// Analyzer is the analysis collaborator contract; tests substitute a
// fake.
type Analyzer interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*model.AnalysisResult, error)
	ReflectionPrompts(ctx context.Context, req PromptRequest) ([]string, error)
}
