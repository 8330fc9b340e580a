package markdown

import (
	"os"
	"path/filepath"

	"github.com/josiah-roberts/muninn/pkg/model"
	"go.uber.org/zap"
)

// Mirror writes entry projections into a directory. All methods are
// best-effort: I/O failures are logged with entry context and
// swallowed, so a DB-confirmed mutation can never fail on the mirror.
type Mirror struct {
	dir string
	log *zap.Logger
}

func NewMirror(dir string, log *zap.Logger) *Mirror {
	return &Mirror{dir: dir, log: log}
}

// Sync writes the entry's current projection and removes any stale
// file left from a previous title or status (e.g. the {id}.md written
// before analysis produced a slugged name).
func (m *Mirror) Sync(e *model.Entry, tags []model.Tag) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		m.log.Sugar().Errorw("markdown mirror mkdir failed", "entry_id", e.ID, "err", err)
		return
	}

	name := Filename(e)
	path := filepath.Join(m.dir, name)
	if err := os.WriteFile(path, []byte(Render(e, tags)), 0o644); err != nil {
		m.log.Sugar().Errorw("markdown mirror write failed", "entry_id", e.ID, "path", path, "err", err)
		return
	}

	for _, stale := range m.candidateFiles(e.ID) {
		if filepath.Base(stale) == name {
			continue
		}
		if err := os.Remove(stale); err != nil {
			m.log.Sugar().Warnw("stale markdown cleanup failed", "entry_id", e.ID, "path", stale, "err", err)
		}
	}
}

// Remove deletes every mirror file belonging to the entry id.
func (m *Mirror) Remove(entryID string) {
	for _, path := range m.candidateFiles(entryID) {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			m.log.Sugar().Warnw("markdown cleanup failed", "entry_id", entryID, "path", path, "err", err)
		}
	}
}

// candidateFiles lists the files an entry id may have been written to:
// the bare id name plus any slug-prefixed variant.
func (m *Mirror) candidateFiles(entryID string) []string {
	out := []string{}
	bare := filepath.Join(m.dir, entryID+".md")
	if _, err := os.Stat(bare); err == nil {
		out = append(out, bare)
	}
	slugged, err := filepath.Glob(filepath.Join(m.dir, "*--"+entryID+".md"))
	if err != nil {
		m.log.Sugar().Warnw("markdown glob failed", "entry_id", entryID, "err", err)
		return out
	}
	return append(out, slugged...)
}
