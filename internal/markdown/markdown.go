// Package markdown projects entries into human-readable files kept in
// a grep-able directory. The relational row is the durable truth; the
// files here are a best-effort mirror and every failure is logged
// rather than propagated.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/josiah-roberts/muninn/pkg/model"
)

var slugPattern = regexp.MustCompile("[^a-z0-9]+")

// Slug derives a filesystem-safe slug from a title. Empty input (or
// input with no usable characters) yields "".
func Slug(title string) string {
	slug := strings.ToLower(title)
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Filename returns the mirror filename for an entry: {id}.md until the
// entry is analyzed and titled, then {slug}--{id}.md. The id suffix
// keeps filenames unique even when two titles collapse to one slug.
func Filename(e *model.Entry) string {
	if e.Status == model.StatusAnalyzed && e.Title != nil {
		if slug := Slug(*e.Title); slug != "" {
			return slug + "--" + e.ID + ".md"
		}
	}
	return e.ID + ".md"
}

// Render produces the deterministic markdown document for an entry:
// front matter, transcript, analysis, follow-up questions. Rendering
// the same entry state twice yields byte-identical output.
func Render(e *model.Entry, tags []model.Tag) string {
	var b strings.Builder

	b.WriteString("---\n")
	fmt.Fprintf(&b, "id: %s\n", e.ID)
	fmt.Fprintf(&b, "created_at: %s\n", e.CreatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "updated_at: %s\n", e.UpdatedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "status: %s\n", e.Status)
	if e.Title != nil && *e.Title != "" {
		fmt.Fprintf(&b, "title: %s\n", *e.Title)
	}
	if len(tags) > 0 {
		names := make([]string, 0, len(tags))
		for _, t := range tags {
			names = append(names, t.Name)
		}
		fmt.Fprintf(&b, "tags: %s\n", strings.Join(names, ", "))
	}
	if e.AudioPath != nil {
		fmt.Fprintf(&b, "audio: %s\n", *e.AudioPath)
	}
	if e.AudioDuration != nil {
		fmt.Fprintf(&b, "audio_duration_seconds: %g\n", *e.AudioDuration)
	}
	b.WriteString("---\n\n")

	if e.Title != nil && *e.Title != "" {
		fmt.Fprintf(&b, "# %s\n\n", *e.Title)
	}

	if e.Transcript != nil && *e.Transcript != "" {
		b.WriteString(strings.TrimRight(*e.Transcript, "\n"))
		b.WriteString("\n")
	} else {
		b.WriteString("*(not yet transcribed)*\n")
	}

	if a := e.Analysis; a != nil {
		b.WriteString("\n## Analysis\n\n")
		if a.Summary != "" {
			fmt.Fprintf(&b, "%s\n", a.Summary)
		}
		writeListSection(&b, "Themes", a.Themes)
		if a.Mood != "" {
			fmt.Fprintf(&b, "\n**Mood:** %s\n", a.Mood)
		}
		writeListSection(&b, "People", a.People)
		writeListSection(&b, "Places", a.Places)
		writeListSection(&b, "Time references", a.TimeReferences)
		writeListSection(&b, "Key insights", a.KeyInsights)
	}

	if len(e.FollowUps) > 0 {
		b.WriteString("\n## Follow-up questions\n\n")
		for i, q := range e.FollowUps {
			fmt.Fprintf(&b, "%d. %s\n", i+1, q)
		}
	}

	return b.String()
}

func writeListSection(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n**%s**\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
}
