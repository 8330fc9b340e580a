package handler

import (
	"io"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/josiah-roberts/muninn/pkg/response"
)

// IngestAudio accepts a complete recording as a multipart form with an
// "audio" file field, creating the entry and attaching the audio.
func (h *Handler) IngestAudio(c *gin.Context) {
	fh, err := c.FormFile("audio")
	if err != nil {
		response.BadRequest(c, "missing audio file")
		return
	}

	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable audio file")
		return
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		response.BadRequest(c, "unreadable audio file")
		return
	}

	entry, err := h.Pipeline.Ingest(c.Request.Context(), data, fh.Header.Get("Content-Type"))
	if err != nil {
		h.writePipelineError(c, "ingest", "", err)
		return
	}
	response.Created(c, entry)
}

// IngestChunk accepts one chunk of a sequential upload as a raw body,
// with index and final flags in the query string.
func (h *Handler) IngestChunk(c *gin.Context) {
	id := c.Param("id")

	index, err := strconv.Atoi(c.DefaultQuery("index", "0"))
	if err != nil || index < 0 {
		response.BadRequest(c, "invalid chunk index")
		return
	}
	final, err := strconv.ParseBool(c.DefaultQuery("final", "false"))
	if err != nil {
		response.BadRequest(c, "invalid final flag")
		return
	}

	data, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "unreadable chunk body")
		return
	}

	entry, err := h.Pipeline.IngestChunk(c.Request.Context(), id, index, final, c.ContentType(), data)
	if err != nil {
		h.writePipelineError(c, "ingest chunk", id, err)
		return
	}
	response.OK(c, entry)
}

func (h *Handler) TranscribeEntry(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Pipeline.Transcribe(c.Request.Context(), id)
	if err != nil {
		h.writePipelineError(c, "transcribe", id, err)
		return
	}
	response.OK(c, entry)
}

func (h *Handler) RetranscribeEntry(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Pipeline.Retranscribe(c.Request.Context(), id)
	if err != nil {
		h.writePipelineError(c, "retranscribe", id, err)
		return
	}
	response.OK(c, entry)
}

func (h *Handler) AnalyzeEntry(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Pipeline.Analyze(c.Request.Context(), id)
	if err != nil {
		h.writePipelineError(c, "analyze", id, err)
		return
	}
	response.OK(c, entry)
}

func (h *Handler) ReflectionPrompts(c *gin.Context) {
	prompts, err := h.Pipeline.ReflectionPrompts(c.Request.Context())
	if err != nil {
		h.writePipelineError(c, "reflection prompts", "", err)
		return
	}
	response.OK(c, gin.H{"prompts": prompts})
}
