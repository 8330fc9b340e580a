package handler

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/josiah-roberts/muninn/internal/store"
	"github.com/josiah-roberts/muninn/pkg/model"
	"github.com/josiah-roberts/muninn/pkg/response"
)

func (h *Handler) CreateEntry(c *gin.Context) {
	entry, err := h.Journal.Create(c.Request.Context())
	if err != nil {
		h.Logger.Sugar().Errorw("create entry failed", "err", err)
		response.InternalError(c, "")
		return
	}
	response.Created(c, entry)
}

func (h *Handler) GetEntry(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Journal.Get(c.Request.Context(), id)
	if err != nil {
		h.Logger.Sugar().Errorw("get entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}
	response.OK(c, entry)
}

func (h *Handler) ListEntries(c *gin.Context) {
	var q model.ListEntriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	var status *model.Status
	if q.Status != "" {
		st := model.Status(q.Status)
		if !st.Valid() {
			response.BadRequest(c, "invalid status filter")
			return
		}
		status = &st
	}

	limit := q.PageSize
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	offset := max((q.Page-1)*limit, 0)

	entries, total, err := h.Journal.List(c.Request.Context(), status, limit, offset)
	if err != nil {
		h.Logger.Sugar().Errorw("list entries failed", "err", err)
		response.InternalError(c, "")
		return
	}

	response.OKWithMeta(c, entries, &response.Meta{
		Page:     max(q.Page, 1),
		PageSize: limit,
		Total:    total,
		HasNext:  offset+len(entries) < total,
	})
}

// UpdateEntry applies a partial update. The body is decoded with
// unknown fields disallowed: a request naming any field outside the
// whitelist is rejected whole, leaving the entry untouched.
func (h *Handler) UpdateEntry(c *gin.Context) {
	id := c.Param("id")

	var upd model.EntryUpdate
	dec := json.NewDecoder(c.Request.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&upd); err != nil {
		response.BadRequest(c, "malformed update body")
		return
	}

	entry, err := h.Journal.Update(c.Request.Context(), id, upd)
	if err != nil {
		if errors.Is(err, store.ErrInvalidStatus) {
			response.BadRequest(c, "invalid status value")
			return
		}
		h.Logger.Sugar().Errorw("update entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}
	response.OK(c, entry)
}

func (h *Handler) DeleteEntry(c *gin.Context) {
	id := c.Param("id")
	found, err := h.Journal.Delete(c.Request.Context(), id)
	if err != nil {
		h.Logger.Sugar().Errorw("delete entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if !found {
		response.NotFound(c, "entry not found")
		return
	}
	response.NoContent(c)
}

func (h *Handler) SearchEntries(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		response.BadRequest(c, "missing query parameter q")
		return
	}

	entries, err := h.Store.SearchEntries(c.Request.Context(), q, 50)
	if err != nil {
		h.Logger.Sugar().Errorw("search failed", "err", err)
		response.InternalError(c, "")
		return
	}
	response.OK(c, entries)
}

type linkRequest struct {
	TargetID string  `json:"target_id" binding:"required"`
	Reason   *string `json:"reason"`
}

func (h *Handler) LinkEntries(c *gin.Context) {
	id := c.Param("id")

	var req linkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	for _, entryID := range []string{id, req.TargetID} {
		entry, err := h.Store.GetEntry(ctx, entryID)
		if err != nil {
			h.Logger.Sugar().Errorw("get entry failed", "entry_id", entryID, "err", err)
			response.InternalError(c, "")
			return
		}
		if entry == nil {
			response.NotFound(c, "entry not found")
			return
		}
	}

	if err := h.Store.LinkEntries(ctx, id, req.TargetID, req.Reason); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.NoContent(c)
}

func (h *Handler) UnlinkEntries(c *gin.Context) {
	id := c.Param("id")
	target := c.Param("target")

	entry, err := h.Store.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.Logger.Sugar().Errorw("get entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}

	// Unlinking an absent pair is a no-op.
	if err := h.Store.UnlinkEntries(c.Request.Context(), id, target); err != nil {
		h.Logger.Sugar().Errorw("unlink entries failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	response.NoContent(c)
}

func (h *Handler) LinkedEntries(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.Store.GetEntry(c.Request.Context(), id)
	if err != nil {
		h.Logger.Sugar().Errorw("get entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}

	linked, err := h.Store.LinkedEntries(c.Request.Context(), id)
	if err != nil {
		h.Logger.Sugar().Errorw("linked entries failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	response.OK(c, linked)
}
