// Package journal owns the entry lifecycle: creation, field updates,
// status transitions, deletion, and the markdown resync that follows
// every mutation.
package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/josiah-roberts/muninn/internal/audio"
	"github.com/josiah-roberts/muninn/internal/markdown"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/pkg/model"
	"go.uber.org/zap"
)

type Service struct {
	store  *store.Store
	mirror *markdown.Mirror
	audio  audio.Store
	log    *zap.Logger
}

func NewService(st *store.Store, mirror *markdown.Mirror, audioStore audio.Store, log *zap.Logger) *Service {
	return &Service{store: st, mirror: mirror, audio: audioStore, log: log}
}

// Store exposes the underlying store for callers that compose their
// own transactions around lifecycle operations.
func (s *Service) Store() *store.Store {
	return s.store
}

// Create inserts a fresh entry in pending_transcription and writes its
// initial markdown mirror.
func (s *Service) Create(ctx context.Context) (*model.Entry, error) {
	now := time.Now().UTC()
	e := &model.Entry{
		ID:        model.NewEntryID(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    model.StatusPendingTranscription,
	}
	if err := s.store.CreateEntry(ctx, e); err != nil {
		return nil, fmt.Errorf("create entry: %w", err)
	}

	s.mirror.Sync(e, nil)
	return e, nil
}

// Get returns the entry with its tags attached, or nil when absent.
func (s *Service) Get(ctx context.Context, id string) (*model.Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil || e == nil {
		return e, err
	}
	tags, err := s.store.TagsForEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	e.Tags = tags
	return e, nil
}

// List returns a page of entries, optionally filtered by status, with
// tags attached.
func (s *Service) List(ctx context.Context, status *model.Status, limit, offset int) ([]model.Entry, int, error) {
	entries, total, err := s.store.ListEntries(ctx, status, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	for i := range entries {
		tags, err := s.store.TagsForEntry(ctx, entries[i].ID)
		if err != nil {
			return nil, 0, err
		}
		entries[i].Tags = tags
	}
	return entries, total, nil
}

// Update applies the whitelisted fields in upd, refreshes updated_at,
// and resyncs the markdown mirror. Returns (nil, nil) when the id does
// not exist. The mirror write is best-effort; the relational row is
// the durable truth.
func (s *Service) Update(ctx context.Context, id string, upd model.EntryUpdate) (*model.Entry, error) {
	e, err := s.store.UpdateEntry(ctx, id, upd)
	if err != nil || e == nil {
		return e, err
	}

	s.resync(ctx, e)
	return e, nil
}

// Delete removes the entry. The relational delete runs first, inside a
// transaction, because once the row is gone the entry is logically
// deleted regardless of leftover files; the audio and markdown files
// are then removed best-effort. Returns false when the id is unknown.
func (s *Service) Delete(ctx context.Context, id string) (bool, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return false, err
	}
	if e == nil {
		return false, nil
	}

	var found bool
	err = s.store.WithTx(ctx, func(tx *store.Store) error {
		found, err = tx.DeleteEntry(ctx, id)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete entry %s: %w", id, err)
	}
	if !found {
		return false, nil
	}

	if e.AudioPath != nil {
		if err := s.audio.Delete(*e.AudioPath); err != nil {
			s.log.Sugar().Warnw("audio cleanup failed after delete", "entry_id", id, "err", err)
		}
	}
	s.mirror.Remove(id)
	return true, nil
}

// ResetForTranscription moves the entry back to pending_transcription,
// clearing the transcript, every analysis-derived field, and the tags
// that were derived from the discarded transcript — all in one
// transaction. Returns (nil, nil) when the id does not exist.
func (s *Service) ResetForTranscription(ctx context.Context, id string) (*model.Entry, error) {
	var found bool
	err := s.store.WithTx(ctx, func(tx *store.Store) error {
		var err error
		found, err = tx.ResetEntryForTranscription(ctx, id)
		if err != nil || !found {
			return err
		}
		return tx.ClearEntryTags(ctx, id)
	})
	if err != nil {
		return nil, fmt.Errorf("reset entry %s: %w", id, err)
	}
	if !found {
		return nil, nil
	}

	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if e != nil {
		s.resync(ctx, e)
	}
	return e, nil
}

// SyncMarkdown re-derives the entry's mirror file. Exposed for stages
// that mutate tags outside Update (analysis completion).
func (s *Service) SyncMarkdown(ctx context.Context, e *model.Entry) {
	s.resync(ctx, e)
}

func (s *Service) resync(ctx context.Context, e *model.Entry) {
	tags, err := s.store.TagsForEntry(ctx, e.ID)
	if err != nil {
		s.log.Sugar().Errorw("markdown resync: loading tags failed", "entry_id", e.ID, "err", err)
		tags = nil
	}
	s.mirror.Sync(e, tags)
}
