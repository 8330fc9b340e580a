package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/josiah-roberts/muninn/pkg/model"
)

// ErrInvalidStatus rejects an update carrying an unknown status value.
var ErrInvalidStatus = errors.New("invalid status")

const entryColumns = `id, created_at, updated_at, title, transcript, audio_path,
	audio_duration_seconds, status, analysis_json, follow_up_questions, agent_trajectory`

type rowScanner interface {
	Scan(dest ...any) error
}

// scanEntry parses one entry row, inflating the JSON blob columns at
// the storage boundary so callers only ever see typed structures.
func scanEntry(row rowScanner) (*model.Entry, error) {
	var e model.Entry
	var analysisJSON, followUps, trajectory sql.NullString
	err := row.Scan(
		&e.ID, &e.CreatedAt, &e.UpdatedAt, &e.Title, &e.Transcript, &e.AudioPath,
		&e.AudioDuration, &e.Status, &analysisJSON, &followUps, &trajectory,
	)
	if err != nil {
		return nil, err
	}

	if analysisJSON.Valid && analysisJSON.String != "" {
		var a model.Analysis
		if err := json.Unmarshal([]byte(analysisJSON.String), &a); err != nil {
			return nil, fmt.Errorf("unmarshal analysis: %w", err)
		}
		e.Analysis = &a
	}
	if followUps.Valid && followUps.String != "" {
		if err := json.Unmarshal([]byte(followUps.String), &e.FollowUps); err != nil {
			return nil, fmt.Errorf("unmarshal follow-ups: %w", err)
		}
	}
	if trajectory.Valid && trajectory.String != "" {
		e.Trajectory = json.RawMessage(trajectory.String)
	}
	return &e, nil
}

// CreateEntry inserts a new entry row. The caller owns id allocation.
func (s *Store) CreateEntry(ctx context.Context, e *model.Entry) error {
	const q = `
INSERT INTO entries (id, created_at, updated_at, title, transcript, audio_path,
	audio_duration_seconds, status, analysis_json, follow_up_questions, agent_trajectory)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`
	analysisJSON, followUps, trajectory, err := marshalBlobFields(e.Analysis, e.FollowUps, e.Trajectory)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, q,
		e.ID, e.CreatedAt, e.UpdatedAt, e.Title, e.Transcript, e.AudioPath,
		e.AudioDuration, e.Status, analysisJSON, followUps, trajectory,
	)
	if err != nil {
		return fmt.Errorf("insert entry: %w", err)
	}
	return nil
}

// GetEntry fetches an entry by id. Returns (nil, nil) when the id
// does not exist.
func (s *Store) GetEntry(ctx context.Context, id string) (*model.Entry, error) {
	q := `SELECT ` + entryColumns + ` FROM entries WHERE id = ?`
	e, err := scanEntry(s.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return e, nil
}

// ListEntries returns a page of entries, newest first, optionally
// filtered by status.
func (s *Store) ListEntries(ctx context.Context, status *model.Status, limit, offset int) ([]model.Entry, int, error) {
	countQ := `SELECT COUNT(1) FROM entries`
	listQ := `SELECT ` + entryColumns + ` FROM entries`
	args := []any{}
	if status != nil {
		countQ += ` WHERE status = ?`
		listQ += ` WHERE status = ?`
		args = append(args, *status)
	}

	var total int
	if err := s.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count entries: %w", err)
	}

	listQ += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	rows, err := s.db.QueryContext(ctx, listQ, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	out := make([]model.Entry, 0, limit)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan entry row: %w", err)
		}
		out = append(out, *e)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("rows error: %w", rows.Err())
	}
	return out, total, nil
}

// SearchEntries performs a substring match over transcript and title.
// LIKE metacharacters in the query are escaped, so searching for a
// literal % or _ matches only that character.
func (s *Store) SearchEntries(ctx context.Context, query string, limit int) ([]model.Entry, error) {
	pattern := "%" + escapeLike(query) + "%"
	q := `SELECT ` + entryColumns + ` FROM entries
WHERE transcript LIKE ? ESCAPE '\' OR title LIKE ? ESCAPE '\'
ORDER BY created_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, q, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search entries: %w", err)
	}
	defer rows.Close()

	var out []model.Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry row: %w", err)
		}
		out = append(out, *e)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("rows error: %w", rows.Err())
	}
	return out, nil
}

// UpdateEntry applies the populated fields of upd and refreshes
// updated_at. Returns (nil, nil) when the id does not exist. Only the
// closed field set of EntryUpdate can ever reach the column list.
func (s *Store) UpdateEntry(ctx context.Context, id string, upd model.EntryUpdate) (*model.Entry, error) {
	sets := []string{"updated_at = ?"}
	args := []any{time.Now().UTC()}

	if upd.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *upd.Title)
	}
	if upd.Transcript != nil {
		sets = append(sets, "transcript = ?")
		args = append(args, *upd.Transcript)
	}
	if upd.AudioPath != nil {
		sets = append(sets, "audio_path = ?")
		args = append(args, *upd.AudioPath)
	}
	if upd.AudioDuration != nil {
		sets = append(sets, "audio_duration_seconds = ?")
		args = append(args, *upd.AudioDuration)
	}
	if upd.Status != nil {
		if !upd.Status.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *upd.Status)
		}
		sets = append(sets, "status = ?")
		args = append(args, *upd.Status)
	}
	if upd.Analysis != nil {
		b, err := json.Marshal(upd.Analysis)
		if err != nil {
			return nil, fmt.Errorf("marshal analysis: %w", err)
		}
		sets = append(sets, "analysis_json = ?")
		args = append(args, string(b))
	}
	if upd.FollowUps != nil {
		b, err := json.Marshal(*upd.FollowUps)
		if err != nil {
			return nil, fmt.Errorf("marshal follow-ups: %w", err)
		}
		sets = append(sets, "follow_up_questions = ?")
		args = append(args, string(b))
	}
	if upd.Trajectory != nil {
		sets = append(sets, "agent_trajectory = ?")
		args = append(args, string(*upd.Trajectory))
	}

	q := "UPDATE entries SET " + strings.Join(sets, ", ") + " WHERE id = ?"
	res, err := s.db.ExecContext(ctx, q, append(args, id)...)
	if err != nil {
		return nil, fmt.Errorf("update entry: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return nil, fmt.Errorf("update entry rows affected: %w", err)
	} else if n == 0 {
		return nil, nil
	}

	return s.GetEntry(ctx, id)
}

// DeleteEntry removes the entry row; tag and link associations go with
// it via cascade. Returns false when the id does not exist.
func (s *Store) DeleteEntry(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete entry rows affected: %w", err)
	}
	return n > 0, nil
}

// ResetEntryForTranscription clears every transcript-derived field and
// moves the entry back to pending_transcription. Tags are cleared by
// the caller in the same transaction.
func (s *Store) ResetEntryForTranscription(ctx context.Context, id string) (bool, error) {
	const q = `
UPDATE entries SET
	title = NULL,
	transcript = NULL,
	audio_duration_seconds = NULL,
	analysis_json = NULL,
	follow_up_questions = NULL,
	agent_trajectory = NULL,
	status = ?,
	updated_at = ?
WHERE id = ?
`
	res, err := s.db.ExecContext(ctx, q, model.StatusPendingTranscription, time.Now().UTC(), id)
	if err != nil {
		return false, fmt.Errorf("reset entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reset entry rows affected: %w", err)
	}
	return n > 0, nil
}

// LatestAnalyzedID returns the id of the most recently analyzed entry,
// or "" when none exist. Used purely as a cache dependency token.
func (s *Store) LatestAnalyzedID(ctx context.Context) (string, error) {
	const q = `SELECT id FROM entries WHERE status = ? ORDER BY updated_at DESC, id DESC LIMIT 1`
	var id string
	err := s.db.QueryRowContext(ctx, q, model.StatusAnalyzed).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("latest analyzed id: %w", err)
	}
	return id, nil
}

func marshalBlobFields(a *model.Analysis, followUps []string, trajectory json.RawMessage) (analysisJSON, followUpsJSON, trajectoryJSON *string, err error) {
	if a != nil {
		b, err := json.Marshal(a)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal analysis: %w", err)
		}
		s := string(b)
		analysisJSON = &s
	}
	if followUps != nil {
		b, err := json.Marshal(followUps)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("marshal follow-ups: %w", err)
		}
		s := string(b)
		followUpsJSON = &s
	}
	if trajectory != nil {
		s := string(trajectory)
		trajectoryJSON = &s
	}
	return analysisJSON, followUpsJSON, trajectoryJSON, nil
}
