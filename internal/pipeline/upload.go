package pipeline

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/josiah-roberts/muninn/pkg/model"
)

// allowedAudioTypes maps accepted declared MIME types to the file
// extension stored under the entry id.
var allowedAudioTypes = map[string]string{
	"audio/webm":  "webm",
	"audio/mpeg":  "mp3",
	"audio/mp3":   "mp3",
	"audio/mp4":   "m4a",
	"audio/m4a":   "m4a",
	"audio/x-m4a": "m4a",
	"audio/wav":   "wav",
	"audio/x-wav": "wav",
	"audio/wave":  "wav",
	"audio/ogg":   "ogg",
	"audio/flac":  "flac",
}

// validateUpload checks the declared MIME type against the allow-list
// and sniffs the leading bytes so a payload that is plainly not audio
// is rejected regardless of what the client declared. Returns the
// storage extension.
func (o *Orchestrator) validateUpload(declaredMIME string, head []byte) (string, error) {
	declared := strings.ToLower(strings.TrimSpace(declaredMIME))
	if i := strings.IndexByte(declared, ';'); i >= 0 {
		declared = strings.TrimSpace(declared[:i])
	}

	ext, ok := allowedAudioTypes[declared]
	if !ok {
		return "", validationErrorf(fmt.Sprintf("unsupported audio type %q", declared))
	}

	detected := mimetype.Detect(head)
	if !audioLike(detected) {
		return "", validationErrorf(fmt.Sprintf("payload does not look like audio (detected %s)", detected.String()))
	}
	return ext, nil
}

// audioLike accepts audio/*, webm/mp4 containers (browser recordings
// detect as video/*), and octet-stream (short or unrecognized heads).
func audioLike(m *mimetype.MIME) bool {
	s := m.String()
	switch {
	case strings.HasPrefix(s, "audio/"):
		return true
	case s == "video/webm" || s == "video/mp4":
		return true
	case s == "application/octet-stream":
		return true
	}
	return false
}

// Ingest validates and persists a complete uploaded recording, creates
// the entry, and attaches the audio path. Validation failures happen
// before any row or file exists.
func (o *Orchestrator) Ingest(ctx context.Context, data []byte, declaredMIME string) (*model.Entry, error) {
	if int64(len(data)) > o.opts.MaxUploadBytes {
		return nil, validationErrorf(fmt.Sprintf("upload exceeds %d byte limit", o.opts.MaxUploadBytes))
	}
	ext, err := o.validateUpload(declaredMIME, data)
	if err != nil {
		return nil, err
	}

	entry, err := o.journal.Create(ctx)
	if err != nil {
		return nil, err
	}

	key := entry.ID + "." + ext
	if err := o.audio.Write(key, data); err != nil {
		// The row without audio would be an empty shell; drop it.
		if _, delErr := o.journal.Delete(ctx, entry.ID); delErr != nil {
			o.log.Sugar().Errorw("cleanup after failed audio write", "entry_id", entry.ID, "err", delErr)
		}
		return nil, fmt.Errorf("persist audio: %w", err)
	}

	updated, err := o.journal.Update(ctx, entry.ID, model.EntryUpdate{AudioPath: &key})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// IngestChunk accepts one chunk of a sequential upload for an existing
// entry. Chunk 0 initializes (truncates) the target file; later chunks
// append; the final chunk attaches the accumulated file to the entry.
// Accumulator state is cleared on completion and on every rejection so
// aborted transfers cannot leak across uploads.
func (o *Orchestrator) IngestChunk(ctx context.Context, entryID string, index int, final bool, declaredMIME string, data []byte) (*model.Entry, error) {
	entry, err := o.journal.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ErrEntryNotFound
	}

	if index == 0 {
		ext, err := o.validateUpload(declaredMIME, data)
		if err != nil {
			return nil, err
		}
		key := entryID + "." + ext
		if err := o.audio.Write(key, data); err != nil {
			return nil, fmt.Errorf("persist chunk 0: %w", err)
		}
		o.mu.Lock()
		o.inflight[entryID] = &chunkUpload{key: key, bytes: int64(len(data)), nextIndex: 1, touched: time.Now()}
		o.mu.Unlock()
	} else {
		o.mu.Lock()
		up, ok := o.inflight[entryID]
		var key string
		var wantIndex int
		if ok {
			key, wantIndex = up.key, up.nextIndex
		}
		o.mu.Unlock()
		if !ok {
			return nil, validationErrorf("no upload in progress for entry")
		}
		if index != wantIndex {
			o.abortUpload(entryID, key)
			return nil, validationErrorf(fmt.Sprintf("unexpected chunk index %d (want %d)", index, wantIndex))
		}
		if err := o.audio.Append(key, data); err != nil {
			o.abortUpload(entryID, key)
			return nil, fmt.Errorf("append chunk %d: %w", index, err)
		}
		o.mu.Lock()
		up.bytes += int64(len(data))
		up.nextIndex++
		up.touched = time.Now()
		o.mu.Unlock()
	}

	// Snapshot the accumulator under the lock: a concurrent chunk for
	// the same entry or a sweep may have evicted the record by now.
	o.mu.Lock()
	up, ok := o.inflight[entryID]
	var key string
	var total int64
	if ok {
		key, total = up.key, up.bytes
		if final {
			delete(o.inflight, entryID)
		}
	}
	o.mu.Unlock()
	if !ok {
		return nil, validationErrorf("no upload in progress for entry")
	}

	if total > o.opts.MaxUploadBytes {
		o.abortUpload(entryID, key)
		return nil, validationErrorf(fmt.Sprintf("upload exceeds %d byte limit", o.opts.MaxUploadBytes))
	}

	if !final {
		return entry, nil
	}

	return o.journal.Update(ctx, entryID, model.EntryUpdate{AudioPath: &key})
}

// abortUpload drops accumulator state and best-effort removes the
// partial file.
func (o *Orchestrator) abortUpload(entryID, key string) {
	o.mu.Lock()
	delete(o.inflight, entryID)
	o.mu.Unlock()
	if err := o.audio.Delete(key); err != nil {
		o.log.Sugar().Warnw("partial upload cleanup failed", "entry_id", entryID, "err", err)
	}
}

// SweepStaleUploads evicts accumulator entries idle past the
// configured window, deleting their partial files. The entry row
// itself is kept; the user can still see and delete it.
func (o *Orchestrator) SweepStaleUploads(now time.Time) {
	window := o.opts.ChunkIdleWindow
	if window <= 0 {
		return
	}

	o.mu.Lock()
	var stale []*chunkUpload
	var ids []string
	for id, up := range o.inflight {
		if now.Sub(up.touched) > window {
			stale = append(stale, up)
			ids = append(ids, id)
			delete(o.inflight, id)
		}
	}
	o.mu.Unlock()

	for i, up := range stale {
		o.log.Sugar().Infow("evicting abandoned upload", "entry_id", ids[i], "bytes", up.bytes)
		if err := o.audio.Delete(up.key); err != nil {
			o.log.Sugar().Warnw("abandoned upload cleanup failed", "entry_id", ids[i], "err", err)
		}
	}
}

// StartSweeper runs SweepStaleUploads periodically until ctx ends.
func (o *Orchestrator) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				o.SweepStaleUploads(now)
			}
		}
	}()
}
