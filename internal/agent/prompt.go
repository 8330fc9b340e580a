package agent

import (
	"fmt"
	"strings"
)

func buildAnalysisPrompt(req AnalyzeRequest) string {
	var sb strings.Builder

	sb.WriteString("You analyze personal voice-journal transcripts. Return JSON only.\n\n")

	if req.AgentOverview != "" {
		sb.WriteString("Context the journal owner has provided about themselves:\n")
		sb.WriteString(req.AgentOverview)
		sb.WriteString("\n\n")
	}
	if req.UserProfile != "" {
		sb.WriteString("Profile built up from previous sessions:\n")
		sb.WriteString(req.UserProfile)
		sb.WriteString("\n\n")
	}

	sb.WriteString("Transcript:\n")
	sb.WriteString(req.Transcript)
	sb.WriteString("\n\n")

	if len(req.ExistingTags) > 0 {
		sb.WriteString("Existing tags (prefer reusing these when appropriate):\n")
		for _, tag := range req.ExistingTags {
			sb.WriteString("- ")
			sb.WriteString(tag)
			sb.WriteString("\n")
		}
		sb.WriteString("\n")
	}

	if len(req.RecentEntries) > 0 {
		sb.WriteString("Recent entries; reference their ids in related_entries when this session connects to one:\n")
		for _, e := range req.RecentEntries {
			fmt.Fprintf(&sb, "- id=%s date=%s title=%q tags=%s\n",
				e.ID, e.CreatedAt, e.Title, strings.Join(e.Tags, ","))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Return a JSON object with this structure:
{
  "title": "short descriptive title",
  "summary": "2-3 sentence summary",
  "themes": ["..."],
  "tags": ["..."],
  "mood": "one or two words",
  "people": ["..."],
  "places": ["..."],
  "time_references": ["..."],
  "key_insights": ["..."],
  "follow_up_questions": ["..."],
  "related_entries": [{"id": "entry-id", "reason": "why it connects"}]
}

Rules:
- Use lowercase, hyphenated tag names
- Suggest 2-5 tags; reuse existing tags when they fit
- related_entries may only reference ids from the recent entries list
- Omit related_entries entirely when nothing connects

Return ONLY the JSON, no other text.`)

	return sb.String()
}

func buildPromptsPrompt(req PromptRequest) string {
	var sb strings.Builder

	count := req.Count
	if count <= 0 {
		count = 5
	}

	fmt.Fprintf(&sb, "Write %d reflective journaling prompts for the journal owner. Return JSON only.\n\n", count)

	if req.UserProfile != "" {
		sb.WriteString("What is known about them:\n")
		sb.WriteString(req.UserProfile)
		sb.WriteString("\n\n")
	}

	if len(req.RecentEntries) > 0 {
		sb.WriteString("Their recent sessions:\n")
		for _, e := range req.RecentEntries {
			fmt.Fprintf(&sb, "- date=%s title=%q tags=%s\n", e.CreatedAt, e.Title, strings.Join(e.Tags, ","))
		}
		sb.WriteString("\n")
	}

	sb.WriteString(`Return a JSON object: {"prompts": ["...", "..."]}

Prompts should be open-ended, personal, and grounded in the recent
sessions when there are any. Return ONLY the JSON, no other text.`)

	return sb.String()
}
