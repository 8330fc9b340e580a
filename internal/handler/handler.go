package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/josiah-roberts/muninn/internal/journal"
	"github.com/josiah-roberts/muninn/internal/pipeline"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/pkg/response"
	"go.uber.org/zap"
)

type Handler struct {
	Logger   *zap.Logger
	Store    *store.Store
	Journal  *journal.Service
	Pipeline *pipeline.Orchestrator
}

// writePipelineError maps a pipeline failure onto the response
// taxonomy. Validation problems and not-found are client-facing;
// everything else is logged in full and answered generically.
func (h *Handler) writePipelineError(c *gin.Context, op, entryID string, err error) {
	var ve *pipeline.ValidationError
	switch {
	case errors.As(err, &ve):
		response.ValidationError(c, ve.Reason)
	case errors.Is(err, pipeline.ErrEntryNotFound):
		response.NotFound(c, "entry not found")
	case errors.Is(err, pipeline.ErrNoAudio):
		response.Conflict(c, "entry has no audio attached")
	case errors.Is(err, pipeline.ErrNoTranscript):
		response.Conflict(c, "entry has not been transcribed")
	default:
		h.Logger.Sugar().Errorw(op+" failed", "entry_id", entryID, "err", err)
		response.UpstreamError(c, "")
	}
}
