package store

import (
	"context"
	"fmt"
	"time"

	"github.com/josiah-roberts/muninn/pkg/model"
)

// GetOrCreateTag normalizes name (lowercase, trimmed) and returns the
// canonical tag row, inserting it if absent. The UNIQUE constraint on
// the name plus the conflict-ignoring insert keeps concurrent callers
// from creating duplicates.
func (s *Store) GetOrCreateTag(ctx context.Context, name string) (*model.Tag, error) {
	norm := model.NormalizeTagName(name)
	if norm == "" {
		return nil, fmt.Errorf("empty tag name")
	}

	const ins = `INSERT INTO tags (name, created_at) VALUES (?, ?) ON CONFLICT(name) DO NOTHING`
	if _, err := s.db.ExecContext(ctx, ins, norm, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("insert tag: %w", err)
	}

	var t model.Tag
	const sel = `SELECT id, name, created_at FROM tags WHERE name = ?`
	if err := s.db.QueryRowContext(ctx, sel, norm).Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
		return nil, fmt.Errorf("select tag: %w", err)
	}
	return &t, nil
}

// AddTagToEntry associates a tag with an entry; adding an
// already-present tag is a no-op.
func (s *Store) AddTagToEntry(ctx context.Context, entryID string, tagID int64) error {
	const q = `INSERT OR IGNORE INTO entry_tags (entry_id, tag_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, q, entryID, tagID); err != nil {
		return fmt.Errorf("add tag to entry: %w", err)
	}
	return nil
}

// RemoveTagFromEntry detaches a tag; removing an absent tag is a no-op.
func (s *Store) RemoveTagFromEntry(ctx context.Context, entryID string, tagID int64) error {
	const q = `DELETE FROM entry_tags WHERE entry_id = ? AND tag_id = ?`
	if _, err := s.db.ExecContext(ctx, q, entryID, tagID); err != nil {
		return fmt.Errorf("remove tag from entry: %w", err)
	}
	return nil
}

// ClearEntryTags removes every tag association for an entry. Used by
// re-transcription, which discards the transcript the tags were
// derived from.
func (s *Store) ClearEntryTags(ctx context.Context, entryID string) error {
	const q = `DELETE FROM entry_tags WHERE entry_id = ?`
	if _, err := s.db.ExecContext(ctx, q, entryID); err != nil {
		return fmt.Errorf("clear entry tags: %w", err)
	}
	return nil
}

// TagsForEntry returns the entry's tags ordered by name. Indexed by
// entry_tags' primary key; the tag_id index covers the reverse join.
func (s *Store) TagsForEntry(ctx context.Context, entryID string) ([]model.Tag, error) {
	const q = `
SELECT t.id, t.name, t.created_at
FROM tags t
JOIN entry_tags et ON t.id = et.tag_id
WHERE et.entry_id = ?
ORDER BY t.name
`
	rows, err := s.db.QueryContext(ctx, q, entryID)
	if err != nil {
		return nil, fmt.Errorf("get entry tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return tags, nil
}

// ListTags returns all tags ordered by name.
func (s *Store) ListTags(ctx context.Context) ([]model.Tag, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, created_at FROM tags ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	defer rows.Close()

	var tags []model.Tag
	for rows.Next() {
		var t model.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, t)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return tags, nil
}
