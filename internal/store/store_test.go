package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/josiah-roberts/muninn/internal/database"
	"github.com/josiah-roberts/muninn/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "muninn_test.db"), time.Second)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return New(db)
}

func mustCreateEntry(t *testing.T, s *Store, status model.Status) *model.Entry {
	t.Helper()
	now := time.Now().UTC()
	e := &model.Entry{
		ID:        model.NewEntryID(),
		CreatedAt: now,
		UpdatedAt: now,
		Status:    status,
	}
	if err := s.CreateEntry(context.Background(), e); err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return e
}

func strptr(s string) *string { return &s }

func TestWithTxRollsBackAllWrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx *Store) error {
		tag, err := tx.GetOrCreateTag(ctx, "work")
		if err != nil {
			return err
		}
		if err := tx.AddTagToEntry(ctx, e.ID, tag.ID); err != nil {
			return err
		}
		status := model.StatusAnalyzed
		if _, err := tx.UpdateEntry(ctx, e.ID, model.EntryUpdate{Status: &status}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected injected error, got %v", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Status != model.StatusTranscribed {
		t.Fatalf("status changed despite rollback: %s", got.Status)
	}
	tags, err := s.TagsForEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("tags for entry: %v", err)
	}
	if len(tags) != 0 {
		t.Fatalf("partial tag set survived rollback: %v", tags)
	}
	all, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("tag row survived rollback: %v", all)
	}
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	err := s.WithTx(ctx, func(tx *Store) error {
		tag, err := tx.GetOrCreateTag(ctx, "travel")
		if err != nil {
			return err
		}
		return tx.AddTagToEntry(ctx, e.ID, tag.ID)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	tags, err := s.TagsForEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("tags for entry: %v", err)
	}
	if len(tags) != 1 || tags[0].Name != "travel" {
		t.Fatalf("expected committed tag, got %v", tags)
	}
}

func TestUpdateEntryMissingIDReturnsNil(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	got, err := s.UpdateEntry(ctx, "no-such-id", model.EntryUpdate{Title: strptr("x")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing id, got %+v", got)
	}
}

func TestUpdateEntryRefreshesUpdatedAt(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusPendingTranscription)

	time.Sleep(10 * time.Millisecond)
	got, err := s.UpdateEntry(ctx, e.ID, model.EntryUpdate{Transcript: strptr("hello")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !got.UpdatedAt.After(e.UpdatedAt) {
		t.Fatalf("updated_at not refreshed: %v vs %v", got.UpdatedAt, e.UpdatedAt)
	}
	if got.Transcript == nil || *got.Transcript != "hello" {
		t.Fatalf("transcript not written: %+v", got.Transcript)
	}
}

func TestUpdateEntryRejectsUnknownStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusPendingTranscription)

	bad := model.Status("archived")
	_, err := s.UpdateEntry(ctx, e.ID, model.EntryUpdate{Status: &bad, Title: strptr("x")})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Title != nil {
		t.Fatalf("rejected update partially applied: title=%v", *got.Title)
	}
}

func TestEntryBlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	analysis := &model.Analysis{Title: "A walk", Summary: "sum", Tags: []string{"t"}, Mood: "calm"}
	followUps := []string{"q1", "q2"}
	status := model.StatusAnalyzed
	got, err := s.UpdateEntry(ctx, e.ID, model.EntryUpdate{
		Status:    &status,
		Analysis:  analysis,
		FollowUps: &followUps,
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Analysis == nil || got.Analysis.Title != "A walk" || got.Analysis.Mood != "calm" {
		t.Fatalf("analysis lost in round trip: %+v", got.Analysis)
	}
	if len(got.FollowUps) != 2 || got.FollowUps[1] != "q2" {
		t.Fatalf("follow-ups lost in round trip: %v", got.FollowUps)
	}
}

func TestListEntriesFiltersByStatus(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	mustCreateEntry(t, s, model.StatusPendingTranscription)
	mustCreateEntry(t, s, model.StatusAnalyzed)
	mustCreateEntry(t, s, model.StatusAnalyzed)

	status := model.StatusAnalyzed
	entries, total, err := s.ListEntries(ctx, &status, 10, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 2 || len(entries) != 2 {
		t.Fatalf("expected 2 analyzed entries, got total=%d len=%d", total, len(entries))
	}

	entries, total, err = s.ListEntries(ctx, nil, 2, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 3 || len(entries) != 2 {
		t.Fatalf("expected total=3 page of 2, got total=%d len=%d", total, len(entries))
	}
}

func TestSearchEscapesLikeMetacharacters(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	e1 := mustCreateEntry(t, s, model.StatusTranscribed)
	if _, err := s.UpdateEntry(ctx, e1.ID, model.EntryUpdate{Transcript: strptr("progress was 100% today")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	e2 := mustCreateEntry(t, s, model.StatusTranscribed)
	if _, err := s.UpdateEntry(ctx, e2.ID, model.EntryUpdate{Transcript: strptr("plain text only")}); err != nil {
		t.Fatalf("update: %v", err)
	}
	e3 := mustCreateEntry(t, s, model.StatusTranscribed)
	if _, err := s.UpdateEntry(ctx, e3.ID, model.EntryUpdate{Transcript: strptr("snake_case naming")}); err != nil {
		t.Fatalf("update: %v", err)
	}

	hits, err := s.SearchEntries(ctx, "%", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != e1.ID {
		t.Fatalf("literal %% search should match one entry, got %d", len(hits))
	}

	hits, err = s.SearchEntries(ctx, "_", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != e3.ID {
		t.Fatalf("literal _ search should match one entry, got %d", len(hits))
	}
}

func TestGetOrCreateTagNormalizesAndDeduplicates(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a, err := s.GetOrCreateTag(ctx, "  Work ")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	b, err := s.GetOrCreateTag(ctx, "work")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if a.ID != b.ID || a.Name != "work" {
		t.Fatalf("expected one canonical tag, got %+v and %+v", a, b)
	}

	tags, err := s.ListTags(ctx)
	if err != nil {
		t.Fatalf("list tags: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected 1 tag, got %d", len(tags))
	}
}

func TestTagAssociationIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	tag, err := s.GetOrCreateTag(ctx, "work")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := s.AddTagToEntry(ctx, e.ID, tag.ID); err != nil {
			t.Fatalf("add tag: %v", err)
		}
	}
	tags, err := s.TagsForEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("tags for entry: %v", err)
	}
	if len(tags) != 1 {
		t.Fatalf("expected 1 association, got %d", len(tags))
	}

	if err := s.RemoveTagFromEntry(ctx, e.ID, tag.ID); err != nil {
		t.Fatalf("remove tag: %v", err)
	}
	// removing again is a no-op
	if err := s.RemoveTagFromEntry(ctx, e.ID, tag.ID); err != nil {
		t.Fatalf("remove absent tag: %v", err)
	}
}

func TestLinkEntriesUpsertsPair(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateEntry(t, s, model.StatusAnalyzed)
	b := mustCreateEntry(t, s, model.StatusAnalyzed)

	if err := s.LinkEntries(ctx, a.ID, b.ID, strptr("first reason")); err != nil {
		t.Fatalf("link: %v", err)
	}
	if err := s.LinkEntries(ctx, a.ID, b.ID, strptr("second reason")); err != nil {
		t.Fatalf("relink: %v", err)
	}

	linked, err := s.LinkedEntries(ctx, a.ID)
	if err != nil {
		t.Fatalf("linked entries: %v", err)
	}
	if len(linked) != 1 {
		t.Fatalf("relinking duplicated the edge: %d neighbors", len(linked))
	}
	if linked[0].Reason == nil || *linked[0].Reason != "second reason" {
		t.Fatalf("relink did not replace reason: %v", linked[0].Reason)
	}

	// visible from the other side too
	linked, err = s.LinkedEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("linked entries: %v", err)
	}
	if len(linked) != 1 || linked[0].Entry.ID != a.ID {
		t.Fatalf("edge not visible in reverse direction: %+v", linked)
	}
}

func TestUnlinkEntriesEitherDirection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateEntry(t, s, model.StatusAnalyzed)
	b := mustCreateEntry(t, s, model.StatusAnalyzed)

	if err := s.LinkEntries(ctx, a.ID, b.ID, nil); err != nil {
		t.Fatalf("link: %v", err)
	}
	// unlink is direction-agnostic
	if err := s.UnlinkEntries(ctx, b.ID, a.ID); err != nil {
		t.Fatalf("unlink: %v", err)
	}

	linked, err := s.LinkedEntries(ctx, a.ID)
	if err != nil {
		t.Fatalf("linked entries: %v", err)
	}
	if len(linked) != 0 {
		t.Fatalf("edge survived unlink: %+v", linked)
	}

	// unlinking an absent pair is a no-op
	if err := s.UnlinkEntries(ctx, a.ID, b.ID); err != nil {
		t.Fatalf("unlink absent pair: %v", err)
	}
}

func TestLinkEntriesRejectsSelfLink(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateEntry(t, s, model.StatusAnalyzed)

	if err := s.LinkEntries(ctx, a.ID, a.ID, nil); err == nil {
		t.Fatal("expected self-link to be rejected")
	}
}

func TestDeleteEntryCascades(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	a := mustCreateEntry(t, s, model.StatusAnalyzed)
	b := mustCreateEntry(t, s, model.StatusAnalyzed)

	tag, err := s.GetOrCreateTag(ctx, "work")
	if err != nil {
		t.Fatalf("get or create: %v", err)
	}
	if err := s.AddTagToEntry(ctx, a.ID, tag.ID); err != nil {
		t.Fatalf("add tag: %v", err)
	}
	if err := s.LinkEntries(ctx, a.ID, b.ID, nil); err != nil {
		t.Fatalf("link: %v", err)
	}

	found, err := s.DeleteEntry(ctx, a.ID)
	if err != nil || !found {
		t.Fatalf("delete: found=%v err=%v", found, err)
	}

	linked, err := s.LinkedEntries(ctx, b.ID)
	if err != nil {
		t.Fatalf("linked entries: %v", err)
	}
	if len(linked) != 0 {
		t.Fatalf("link survived cascade: %+v", linked)
	}

	found, err = s.DeleteEntry(ctx, a.ID)
	if err != nil {
		t.Fatalf("second delete: %v", err)
	}
	if found {
		t.Fatal("second delete reported found")
	}
}

func TestCacheDependencyToken(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	tokenA, tokenB := "head-a", "head-b"
	if err := s.SetCache(ctx, "q", "value-1", &tokenA); err != nil {
		t.Fatalf("set cache: %v", err)
	}

	if _, ok, err := s.GetCache(ctx, "q", &tokenB); err != nil || ok {
		t.Fatalf("mismatched token must miss: ok=%v err=%v", ok, err)
	}
	if v, ok, err := s.GetCache(ctx, "q", &tokenA); err != nil || !ok || v != "value-1" {
		t.Fatalf("matching token must hit: v=%q ok=%v err=%v", v, ok, err)
	}
	if v, ok, err := s.GetCache(ctx, "q", nil); err != nil || !ok || v != "value-1" {
		t.Fatalf("no token must hit: v=%q ok=%v err=%v", v, ok, err)
	}
	if _, ok, err := s.GetCache(ctx, "missing", nil); err != nil || ok {
		t.Fatalf("absent key must miss: ok=%v err=%v", ok, err)
	}

	// upsert fully replaces value and token
	if err := s.SetCache(ctx, "q", "value-2", &tokenB); err != nil {
		t.Fatalf("set cache: %v", err)
	}
	if _, ok, _ := s.GetCache(ctx, "q", &tokenA); ok {
		t.Fatal("stale token still hits after upsert")
	}
	if v, ok, _ := s.GetCache(ctx, "q", &tokenB); !ok || v != "value-2" {
		t.Fatalf("upserted value not returned: v=%q ok=%v", v, ok)
	}
}

func TestSettingsUpsert(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, ok, err := s.GetSetting(ctx, model.SettingUserProfile); err != nil || ok {
		t.Fatalf("absent setting: ok=%v err=%v", ok, err)
	}
	if err := s.SetSetting(ctx, model.SettingUserProfile, "v1"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := s.SetSetting(ctx, model.SettingUserProfile, "v2"); err != nil {
		t.Fatalf("set again: %v", err)
	}
	v, ok, err := s.GetSetting(ctx, model.SettingUserProfile)
	if err != nil || !ok || v != "v2" {
		t.Fatalf("expected upserted value, got v=%q ok=%v err=%v", v, ok, err)
	}
}

func TestLatestAnalyzedID(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	head, err := s.LatestAnalyzedID(ctx)
	if err != nil || head != "" {
		t.Fatalf("empty db head: %q err=%v", head, err)
	}

	mustCreateEntry(t, s, model.StatusPendingTranscription)
	a := mustCreateEntry(t, s, model.StatusTranscribed)

	status := model.StatusAnalyzed
	if _, err := s.UpdateEntry(ctx, a.ID, model.EntryUpdate{Status: &status}); err != nil {
		t.Fatalf("update: %v", err)
	}

	head, err = s.LatestAnalyzedID(ctx)
	if err != nil || head != a.ID {
		t.Fatalf("expected head %s, got %q err=%v", a.ID, head, err)
	}
}

func TestResetEntryClearsDerivedFields(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	status := model.StatusAnalyzed
	followUps := []string{"q"}
	if _, err := s.UpdateEntry(ctx, e.ID, model.EntryUpdate{
		Title:      strptr("t"),
		Transcript: strptr("text"),
		Status:     &status,
		Analysis:   &model.Analysis{Title: "t"},
		FollowUps:  &followUps,
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	found, err := s.ResetEntryForTranscription(ctx, e.ID)
	if err != nil || !found {
		t.Fatalf("reset: found=%v err=%v", found, err)
	}

	got, err := s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != model.StatusPendingTranscription {
		t.Fatalf("status not reset: %s", got.Status)
	}
	if got.Title != nil || got.Transcript != nil || got.Analysis != nil || got.FollowUps != nil || got.Trajectory != nil {
		t.Fatalf("derived fields survived reset: %+v", got)
	}
}

func TestConcurrentReadDuringWriteTx(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	e := mustCreateEntry(t, s, model.StatusTranscribed)

	txOpen := make(chan struct{})
	release := make(chan struct{})
	txDone := make(chan error, 1)
	go func() {
		txDone <- s.WithTx(ctx, func(tx *Store) error {
			status := model.StatusAnalyzed
			if _, err := tx.UpdateEntry(ctx, e.ID, model.EntryUpdate{Status: &status}); err != nil {
				return err
			}
			close(txOpen)
			<-release
			return nil
		})
	}()

	// The read runs while the writer transaction is still open; it
	// must neither block on the writer nor see its uncommitted state.
	<-txOpen
	readCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	got, err := s.GetEntry(readCtx, e.ID)
	cancel()
	close(release)
	if err != nil {
		t.Fatalf("reader blocked while writer tx was open: %v", err)
	}
	if got.Status != model.StatusTranscribed {
		t.Fatalf("reader saw uncommitted write: %s", got.Status)
	}

	if err := <-txDone; err != nil {
		t.Fatalf("tx: %v", err)
	}
	got, err = s.GetEntry(ctx, e.ID)
	if err != nil {
		t.Fatalf("get after tx: %v", err)
	}
	if got.Status != model.StatusAnalyzed {
		t.Fatalf("committed write not visible: %s", got.Status)
	}

	var mode string
	if err := s.sdb.QueryRowContext(ctx, "PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("journal mode: %v", err)
	}
	if mode != "wal" {
		t.Fatalf("expected WAL journal mode, got %q", mode)
	}
}
