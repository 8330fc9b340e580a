// Package stt wraps the external speech-to-text collaborator.
package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/josiah-roberts/muninn/internal/config"
	"github.com/josiah-roberts/muninn/internal/retry"
)

// Transcriber is the STT collaborator contract the pipeline depends
// on; tests substitute a fake.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error)
}

type Result struct {
	Text            string
	Language        string
	DurationSeconds float64
}

// Client calls a Whisper-style transcription endpoint. Every call
// carries the configured timeout and transient failures are retried
// with backoff.
type Client struct {
	apiKey  string
	base    string
	model   string
	timeout time.Duration
	retry   retry.Policy
	http    *http.Client
}

func NewClient(cfg config.STTConfig) *Client {
	return &Client{
		apiKey:  cfg.APIKey,
		base:    cfg.BaseURL,
		model:   cfg.Model,
		timeout: cfg.Timeout,
		retry:   retry.DefaultPolicy(cfg.MaxAttempts),
		http:    &http.Client{},
	}
}

type transcriptionResponse struct {
	Text     string  `json:"text"`
	Language string  `json:"language"`
	Duration float64 `json:"duration"`
}

func (c *Client) Transcribe(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var out Result
	err := c.retry.Do(ctx, func(ctx context.Context) error {
		res, err := c.transcribeOnce(ctx, audio, mimeType)
		if err != nil {
			return err
		}
		out = *res
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("transcribe: %w", err)
	}
	return &out, nil
}

func (c *Client) transcribeOnce(ctx context.Context, audio []byte, mimeType string) (*Result, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	fw, err := w.CreateFormFile("file", "audio"+extensionFor(mimeType))
	if err != nil {
		return nil, fmt.Errorf("create form file: %w", err)
	}
	if _, err := fw.Write(audio); err != nil {
		return nil, fmt.Errorf("write form file: %w", err)
	}
	_ = w.WriteField("model", c.model)
	_ = w.WriteField("response_format", "verbose_json")
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close multipart writer: %w", err)
	}

	url := c.base + "/audio/transcriptions"
	r, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	r.Header.Set("Authorization", "Bearer "+c.apiKey)
	r.Header.Set("Content-Type", w.FormDataContentType())

	resp, err := c.http.Do(r)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	bodyBytes, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, &retry.HTTPError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	var tr transcriptionResponse
	if err := json.Unmarshal(bodyBytes, &tr); err != nil {
		return nil, fmt.Errorf("decode transcription: %w", err)
	}
	return &Result{
		Text:            tr.Text,
		Language:        tr.Language,
		DurationSeconds: tr.Duration,
	}, nil
}

func extensionFor(mimeType string) string {
	switch mimeType {
	case "audio/webm":
		return ".webm"
	case "audio/mpeg", "audio/mp3":
		return ".mp3"
	case "audio/mp4", "audio/m4a", "audio/x-m4a":
		return ".m4a"
	case "audio/wav", "audio/x-wav", "audio/wave":
		return ".wav"
	case "audio/ogg":
		return ".ogg"
	case "audio/flac":
		return ".flac"
	}
	return ".bin"
}
