// Package pipeline sequences the three external-facing stages for one
// entry — ingest, transcribe, analyze — each of which may fail
// independently without losing completed work.
package pipeline

import (
	"errors"
	"sync"
	"time"

	"github.com/josiah-roberts/muninn/internal/agent"
	"github.com/josiah-roberts/muninn/internal/audio"
	"github.com/josiah-roberts/muninn/internal/journal"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/internal/stt"
	"go.uber.org/zap"
)

var (
	ErrEntryNotFound = errors.New("entry not found")
	ErrNoAudio       = errors.New("entry has no audio attached")
	ErrNoTranscript  = errors.New("entry has no transcript")
)

// ValidationError marks client mistakes rejected before any side
// effect: bad MIME type, oversized upload, out-of-order chunk.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Reason
}

func validationErrorf(reason string) error {
	return &ValidationError{Reason: reason}
}

// Options bound upload sizes and collaborator behavior.
type Options struct {
	MaxUploadBytes  int64
	ChunkIdleWindow time.Duration
	PromptCount     int
}

// Orchestrator coordinates the upload → transcribe → analyze pipeline.
// The chunk accumulator is instance state, not package state, so tests
// construct isolated orchestrators.
type Orchestrator struct {
	journal *journal.Service
	store   *store.Store
	audio   audio.Store
	stt     stt.Transcriber
	agent   agent.Analyzer
	log     *zap.Logger
	opts    Options

	mu       sync.Mutex
	inflight map[string]*chunkUpload
}

// chunkUpload tracks one in-progress chunked transfer.
type chunkUpload struct {
	key       string
	bytes     int64
	nextIndex int
	touched   time.Time
}

func NewOrchestrator(
	j *journal.Service,
	st *store.Store,
	audioStore audio.Store,
	transcriber stt.Transcriber,
	analyzer agent.Analyzer,
	log *zap.Logger,
	opts Options,
) *Orchestrator {
	if opts.PromptCount <= 0 {
		opts.PromptCount = 5
	}
	return &Orchestrator{
		journal:  j,
		store:    st,
		audio:    audioStore,
		stt:      transcriber,
		agent:    analyzer,
		log:      log,
		opts:     opts,
		inflight: make(map[string]*chunkUpload),
	}
}
