package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"path/filepath"
	"time"

	"github.com/josiah-roberts/muninn/internal/agent"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/pkg/model"
)

// reflectionPromptsCacheKey is the derived-value cache slot for
// generated journaling prompts, pinned to the HEAD entry id.
const reflectionPromptsCacheKey = "reflection_prompts"

// Transcribe runs the STT stage. On success the transcript, duration
// and status move forward together; on failure the entry keeps its
// prior status and the error surfaces for retry.
func (o *Orchestrator) Transcribe(ctx context.Context, entryID string) (*model.Entry, error) {
	entry, err := o.journal.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.AudioPath == nil {
		return nil, ErrNoAudio
	}

	data, err := o.audio.Read(*entry.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("load audio: %w", err)
	}

	res, err := o.stt.Transcribe(ctx, data, mimeForKey(*entry.AudioPath))
	if err != nil {
		return nil, err
	}

	status := model.StatusTranscribed
	upd := model.EntryUpdate{
		Transcript: &res.Text,
		Status:     &status,
	}
	if res.DurationSeconds > 0 {
		upd.AudioDuration = &res.DurationSeconds
	}
	return o.journal.Update(ctx, entryID, upd)
}

// Retranscribe resets the entry (clearing transcript-derived fields
// and tags) and runs the transcription stage again.
func (o *Orchestrator) Retranscribe(ctx context.Context, entryID string) (*model.Entry, error) {
	entry, err := o.journal.ResetForTranscription(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	return o.Transcribe(ctx, entryID)
}

// Analyze runs the analysis stage. The agent call happens outside any
// transaction; only the bookkeeping — tag creation and association,
// link creation, the final field update to analyzed — runs inside one,
// so a failure in any sub-step rolls the whole stage back and leaves
// the entry at its pre-analysis status.
func (o *Orchestrator) Analyze(ctx context.Context, entryID string) (*model.Entry, error) {
	entry, err := o.journal.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}
	if entry.Transcript == nil || *entry.Transcript == "" {
		return nil, ErrNoTranscript
	}

	req, err := o.buildAnalyzeRequest(ctx, entry)
	if err != nil {
		return nil, err
	}

	result, err := o.agent.Analyze(ctx, *req)
	if err != nil {
		return nil, err
	}

	err = o.store.WithTx(ctx, func(tx *store.Store) error {
		// Re-analysis replaces the tag set; associations from a prior
		// analysis must not survive as a stale union.
		if err := tx.ClearEntryTags(ctx, entryID); err != nil {
			return err
		}

		for _, name := range result.Analysis.Tags {
			tag, err := tx.GetOrCreateTag(ctx, name)
			if err != nil {
				return err
			}
			if err := tx.AddTagToEntry(ctx, entryID, tag.ID); err != nil {
				return err
			}
		}

		for _, rel := range result.RelatedEntries {
			target, err := tx.GetEntry(ctx, rel.ID)
			if err != nil {
				return err
			}
			if target == nil {
				return fmt.Errorf("related entry %q does not exist", rel.ID)
			}
			reason := rel.Reason
			if err := tx.LinkEntries(ctx, entryID, rel.ID, &reason); err != nil {
				return err
			}
		}

		status := model.StatusAnalyzed
		trajectory := result.Trajectory
		updated, err := tx.UpdateEntry(ctx, entryID, model.EntryUpdate{
			Title:      &result.Analysis.Title,
			Status:     &status,
			Analysis:   &result.Analysis,
			FollowUps:  &result.FollowUps,
			Trajectory: &trajectory,
		})
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("entry %s disappeared during analysis", entryID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("analysis bookkeeping: %w", err)
	}

	final, err := o.journal.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if final != nil {
		o.journal.SyncMarkdown(ctx, final)
	}
	return final, nil
}

// ReflectionPrompts returns cached journaling prompts, recomputing
// through the agent only when a new analysis has landed since the last
// computation (the HEAD entry id is the dependency token).
func (o *Orchestrator) ReflectionPrompts(ctx context.Context) ([]string, error) {
	head, err := o.store.LatestAnalyzedID(ctx)
	if err != nil {
		return nil, err
	}

	if cached, ok, err := o.store.GetCache(ctx, reflectionPromptsCacheKey, &head); err != nil {
		return nil, err
	} else if ok {
		var prompts []string
		if err := json.Unmarshal([]byte(cached), &prompts); err == nil {
			return prompts, nil
		}
		// Unreadable cache value; fall through and recompute.
		o.log.Sugar().Warnw("discarding malformed prompt cache entry")
	}

	recent, err := o.recentSummaries(ctx)
	if err != nil {
		return nil, err
	}
	profile, _, err := o.store.GetSetting(ctx, model.SettingUserProfile)
	if err != nil {
		return nil, err
	}

	prompts, err := o.agent.ReflectionPrompts(ctx, agent.PromptRequest{
		RecentEntries: recent,
		UserProfile:   profile,
		Count:         o.opts.PromptCount,
	})
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(prompts); err == nil {
		if err := o.store.SetCache(ctx, reflectionPromptsCacheKey, string(b), &head); err != nil {
			o.log.Sugar().Warnw("caching reflection prompts failed", "err", err)
		}
	}
	return prompts, nil
}

func (o *Orchestrator) buildAnalyzeRequest(ctx context.Context, entry *model.Entry) (*agent.AnalyzeRequest, error) {
	tags, err := o.store.ListTags(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		names = append(names, t.Name)
	}

	recent, err := o.recentSummaries(ctx)
	if err != nil {
		return nil, err
	}
	// The entry under analysis is not a linking candidate.
	filtered := recent[:0]
	for _, r := range recent {
		if r.ID != entry.ID {
			filtered = append(filtered, r)
		}
	}

	overview, _, err := o.store.GetSetting(ctx, model.SettingAgentOverview)
	if err != nil {
		return nil, err
	}
	profile, _, err := o.store.GetSetting(ctx, model.SettingUserProfile)
	if err != nil {
		return nil, err
	}

	return &agent.AnalyzeRequest{
		EntryID:       entry.ID,
		Transcript:    *entry.Transcript,
		ExistingTags:  names,
		RecentEntries: filtered,
		AgentOverview: overview,
		UserProfile:   profile,
	}, nil
}

// recentSummaries returns compact descriptions of recent analyzed
// entries for the agent.
func (o *Orchestrator) recentSummaries(ctx context.Context) ([]model.EntrySummary, error) {
	status := model.StatusAnalyzed
	entries, _, err := o.store.ListEntries(ctx, &status, 20, 0)
	if err != nil {
		return nil, err
	}

	out := make([]model.EntrySummary, 0, len(entries))
	for _, e := range entries {
		s := model.EntrySummary{
			ID:        e.ID,
			CreatedAt: e.CreatedAt.UTC().Format(time.DateOnly),
		}
		if e.Title != nil {
			s.Title = *e.Title
		}
		tags, err := o.store.TagsForEntry(ctx, e.ID)
		if err != nil {
			return nil, err
		}
		for _, t := range tags {
			s.Tags = append(s.Tags, t.Name)
		}
		out = append(out, s)
	}
	return out, nil
}

func mimeForKey(key string) string {
	if t := mime.TypeByExtension(filepath.Ext(key)); t != "" {
		return t
	}
	switch filepath.Ext(key) {
	case ".webm":
		return "audio/webm"
	case ".m4a":
		return "audio/mp4"
	case ".flac":
		return "audio/flac"
	}
	return "application/octet-stream"
}
