package agent

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/josiah-roberts/muninn/internal/config"
)

func testClient(baseURL string) *Client {
	return NewClient(config.AgentConfig{
		APIKey:      "test-key",
		BaseURL:     baseURL,
		Model:       "test-model",
		Timeout:     5 * time.Second,
		MaxAttempts: 3,
	})
}

func messagesResponse(text string) string {
	b, _ := json.Marshal(map[string]any{
		"content": []map[string]string{{"type": "text", "text": text}},
	})
	return string(b)
}

func TestAnalyzeParsesResponse(t *testing.T) {
	payload := `{
		"title": "Morning Walk",
		"summary": "A walk in the park.",
		"themes": ["nature"],
		"tags": ["walks", "health"],
		"mood": "calm",
		"follow_up_questions": ["What did you notice?"],
		"related_entries": [{"id": "e1", "reason": "same park"}]
	}`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("missing api key header")
		}
		w.Write([]byte(messagesResponse(payload)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Analyze(context.Background(), AnalyzeRequest{
		EntryID:    "e0",
		Transcript: "went for a walk",
	})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Analysis.Title != "Morning Walk" || res.Analysis.Mood != "calm" {
		t.Fatalf("analysis = %+v", res.Analysis)
	}
	if len(res.Analysis.Tags) != 2 {
		t.Fatalf("tags = %v", res.Analysis.Tags)
	}
	if len(res.FollowUps) != 1 {
		t.Fatalf("follow-ups = %v", res.FollowUps)
	}
	if len(res.RelatedEntries) != 1 || res.RelatedEntries[0].ID != "e1" {
		t.Fatalf("related = %+v", res.RelatedEntries)
	}
	if !strings.Contains(string(res.Trajectory), "test-model") {
		t.Fatalf("trajectory missing model: %s", res.Trajectory)
	}
}

func TestAnalyzeToleratesCodeFences(t *testing.T) {
	fenced := "```json\n{\"title\": \"Fenced\", \"summary\": \"s\"}\n```"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(messagesResponse(fenced)))
	}))
	defer srv.Close()

	res, err := testClient(srv.URL).Analyze(context.Background(), AnalyzeRequest{Transcript: "x"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Analysis.Title != "Fenced" {
		t.Fatalf("title = %q", res.Analysis.Title)
	}
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(messagesResponse(`{"title": "Recovered", "summary": "s"}`)))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.retry.BaseDelay = time.Millisecond
	res, err := c.Analyze(context.Background(), AnalyzeRequest{Transcript: "x"})
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 upstream calls, got %d", calls)
	}
	if res.Analysis.Title != "Recovered" {
		t.Fatalf("title = %q", res.Analysis.Title)
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	c.retry.BaseDelay = time.Millisecond
	if _, err := c.Analyze(context.Background(), AnalyzeRequest{Transcript: "x"}); err == nil {
		t.Fatal("expected failure")
	}
	if calls != 1 {
		t.Fatalf("401 must not be retried, got %d calls", calls)
	}
}

func TestReflectionPrompts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(messagesResponse(`{"prompts": ["one", "two"]}`)))
	}))
	defer srv.Close()

	prompts, err := testClient(srv.URL).ReflectionPrompts(context.Background(), PromptRequest{Count: 2})
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	if len(prompts) != 2 || prompts[0] != "one" {
		t.Fatalf("prompts = %v", prompts)
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{`{"a":1}`, `{"a":1}`},
		{"```json\n{\"a\":1}\n```", `{"a":1}`},
		{"```\n{\"a\":1}\n```", `{"a":1}`},
		{"  {\"a\":1}  ", `{"a":1}`},
	}
	for _, c := range cases {
		if got := stripFences(c.in); got != c.want {
			t.Errorf("stripFences(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestBuildAnalysisPromptIncludesContext(t *testing.T) {
	p := buildAnalysisPrompt(AnalyzeRequest{
		EntryID:       "e0",
		Transcript:    "the transcript text",
		ExistingTags:  []string{"walks"},
		AgentOverview: "keep it short",
		UserProfile:   "likes hiking",
	})
	for _, want := range []string{"the transcript text", "walks", "keep it short", "likes hiking"} {
		if !strings.Contains(p, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}
