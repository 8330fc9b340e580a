package store

import (
	"context"
	"fmt"
	"time"

	"github.com/josiah-roberts/muninn/pkg/model"
)

// LinkEntries upserts the edge from sourceID to targetID. Re-linking
// the same pair replaces the reason instead of appending a duplicate
// edge. The edge is traversed in both directions by LinkedEntries, so
// one row is enough for an undirected relationship; a second row for
// the reverse pair carries an asymmetric description when wanted.
func (s *Store) LinkEntries(ctx context.Context, sourceID, targetID string, reason *string) error {
	if sourceID == targetID {
		return fmt.Errorf("cannot link entry %s to itself", sourceID)
	}
	const q = `
INSERT INTO entry_links (source_id, target_id, reason, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(source_id, target_id) DO UPDATE SET reason = excluded.reason
`
	if _, err := s.db.ExecContext(ctx, q, sourceID, targetID, reason, time.Now().UTC()); err != nil {
		return fmt.Errorf("link entries: %w", err)
	}
	return nil
}

// UnlinkEntries removes the edge between the pair in both directions.
func (s *Store) UnlinkEntries(ctx context.Context, a, b string) error {
	const q = `DELETE FROM entry_links WHERE (source_id = ? AND target_id = ?) OR (source_id = ? AND target_id = ?)`
	if _, err := s.db.ExecContext(ctx, q, a, b, b, a); err != nil {
		return fmt.Errorf("unlink entries: %w", err)
	}
	return nil
}

// LinkedEntries returns the entries connected to id in either
// direction, each annotated with the reason stored on its edge.
func (s *Store) LinkedEntries(ctx context.Context, id string) ([]model.LinkedEntry, error) {
	// Outgoing edges sort first so that when both directions exist
	// with asymmetric descriptions, this side's text wins.
	q := `
SELECT e.id, e.created_at, e.updated_at, e.title, e.transcript, e.audio_path,
	e.audio_duration_seconds, e.status, e.analysis_json, e.follow_up_questions, e.agent_trajectory, l.reason
FROM entry_links l
JOIN entries e ON e.id = CASE WHEN l.source_id = ? THEN l.target_id ELSE l.source_id END
WHERE l.source_id = ? OR l.target_id = ?
ORDER BY (l.source_id = ?) DESC, e.created_at DESC
`
	rows, err := s.db.QueryContext(ctx, q, id, id, id, id)
	if err != nil {
		return nil, fmt.Errorf("query linked entries: %w", err)
	}
	defer rows.Close()

	var out []model.LinkedEntry
	seen := map[string]bool{}
	for rows.Next() {
		var le model.LinkedEntry
		var analysisJSON, followUps, trajectory, reason *string
		err := rows.Scan(
			&le.Entry.ID, &le.Entry.CreatedAt, &le.Entry.UpdatedAt, &le.Entry.Title,
			&le.Entry.Transcript, &le.Entry.AudioPath, &le.Entry.AudioDuration,
			&le.Entry.Status, &analysisJSON, &followUps, &trajectory, &reason,
		)
		if err != nil {
			return nil, fmt.Errorf("scan linked entry: %w", err)
		}
		if seen[le.Entry.ID] {
			continue
		}
		seen[le.Entry.ID] = true
		le.Reason = reason
		out = append(out, le)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return out, nil
}
