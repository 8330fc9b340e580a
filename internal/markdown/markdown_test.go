package markdown

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/josiah-roberts/muninn/pkg/model"
)

func testEntry() *model.Entry {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)
	return &model.Entry{
		ID:        "20260314T092653-abc123",
		CreatedAt: now,
		UpdatedAt: now,
		Status:    model.StatusPendingTranscription,
	}
}

func TestSlug(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"Morning walk", "morning-walk"},
		{"  Weird -- punctuation!? ", "weird-punctuation"},
		{"Ünïcode & símbolos", "n-code-s-mbolos"},
		{"!!!", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := Slug(c.in); got != c.want {
			t.Errorf("Slug(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFilename(t *testing.T) {
	e := testEntry()
	if got := Filename(e); got != e.ID+".md" {
		t.Fatalf("pending entry filename = %q", got)
	}

	title := "Morning Walk"
	e.Title = &title
	if got := Filename(e); got != e.ID+".md" {
		t.Fatalf("titled but unanalyzed entry must keep bare name, got %q", got)
	}

	e.Status = model.StatusAnalyzed
	if got := Filename(e); got != "morning-walk--"+e.ID+".md" {
		t.Fatalf("analyzed entry filename = %q", got)
	}

	empty := "!!!"
	e.Title = &empty
	if got := Filename(e); got != e.ID+".md" {
		t.Fatalf("unsluggable title must fall back to bare name, got %q", got)
	}
}

func TestRenderIsDeterministic(t *testing.T) {
	e := testEntry()
	e.Status = model.StatusAnalyzed
	title := "Morning Walk"
	transcript := "Went for a walk.\n"
	e.Title = &title
	e.Transcript = &transcript
	e.Analysis = &model.Analysis{
		Title:   title,
		Summary: "A short walk.",
		Themes:  []string{"nature", "routine"},
		Mood:    "calm",
	}
	e.FollowUps = []string{"Where did you go?"}
	tags := []model.Tag{{ID: 1, Name: "walks"}}

	first := Render(e, tags)
	second := Render(e, tags)
	if first != second {
		t.Fatal("render is not deterministic for identical state")
	}

	for _, want := range []string{
		"id: " + e.ID,
		"status: analyzed",
		"tags: walks",
		"# Morning Walk",
		"Went for a walk.",
		"## Analysis",
		"- nature",
		"**Mood:** calm",
		"## Follow-up questions",
		"1. Where did you go?",
	} {
		if !strings.Contains(first, want) {
			t.Errorf("rendered output missing %q:\n%s", want, first)
		}
	}
}

func TestRenderPendingEntry(t *testing.T) {
	out := Render(testEntry(), nil)
	if !strings.Contains(out, "*(not yet transcribed)*") {
		t.Fatalf("pending entry must carry transcript placeholder:\n%s", out)
	}
	if strings.Contains(out, "## Analysis") {
		t.Fatalf("pending entry must not have an analysis section:\n%s", out)
	}
}

func TestMirrorSyncRenamesOnAnalysis(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(dir, zap.NewNop())
	e := testEntry()

	m.Sync(e, nil)
	bare := filepath.Join(dir, e.ID+".md")
	if _, err := os.Stat(bare); err != nil {
		t.Fatalf("bare file not written: %v", err)
	}

	title := "Morning Walk"
	e.Title = &title
	e.Status = model.StatusAnalyzed
	m.Sync(e, nil)

	slugged := filepath.Join(dir, "morning-walk--"+e.ID+".md")
	if _, err := os.Stat(slugged); err != nil {
		t.Fatalf("slugged file not written: %v", err)
	}
	if _, err := os.Stat(bare); !os.IsNotExist(err) {
		t.Fatalf("stale bare file not removed: %v", err)
	}

	// a title change retires the old slugged name too
	title2 := "Evening Walk"
	e.Title = &title2
	m.Sync(e, nil)
	if _, err := os.Stat(slugged); !os.IsNotExist(err) {
		t.Fatalf("stale slugged file not removed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "evening-walk--"+e.ID+".md")); err != nil {
		t.Fatalf("renamed file not written: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one mirror file, found %d", len(entries))
	}
}

func TestMirrorSyncIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(dir, zap.NewNop())
	e := testEntry()

	m.Sync(e, nil)
	first, err := os.ReadFile(filepath.Join(dir, e.ID+".md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	m.Sync(e, nil)
	second, err := os.ReadFile(filepath.Join(dir, e.ID+".md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(first) != string(second) {
		t.Fatal("re-sync of unchanged entry altered the file")
	}
}

func TestMirrorRemove(t *testing.T) {
	dir := t.TempDir()
	m := NewMirror(dir, zap.NewNop())
	e := testEntry()
	title := "Morning Walk"
	e.Title = &title
	e.Status = model.StatusAnalyzed

	m.Sync(e, nil)
	m.Remove(e.ID)

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("mirror files left after remove: %d", len(entries))
	}

	// removing an id with no files is a no-op
	m.Remove("20990101T000000-nonexistent")
}
