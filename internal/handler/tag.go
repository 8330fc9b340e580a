package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/josiah-roberts/muninn/pkg/model"
	"github.com/josiah-roberts/muninn/pkg/response"
)

func (h *Handler) ListTags(c *gin.Context) {
	tags, err := h.Store.ListTags(c.Request.Context())
	if err != nil {
		h.Logger.Sugar().Errorw("list tags failed", "err", err)
		response.InternalError(c, "")
		return
	}
	response.OK(c, tags)
}

type tagRequest struct {
	Name string `json:"name" binding:"required"`
}

func (h *Handler) AddTagToEntry(c *gin.Context) {
	id := c.Param("id")

	var req tagRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	if model.NormalizeTagName(req.Name) == "" {
		response.BadRequest(c, "tag name must not be blank")
		return
	}

	ctx := c.Request.Context()
	entry, err := h.Journal.Get(ctx, id)
	if err != nil {
		h.Logger.Sugar().Errorw("get entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}

	tag, err := h.Store.GetOrCreateTag(ctx, req.Name)
	if err == nil {
		err = h.Store.AddTagToEntry(ctx, id, tag.ID)
	}
	if err != nil {
		h.Logger.Sugar().Errorw("add tag failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}

	h.Journal.SyncMarkdown(ctx, entry)
	response.OK(c, tag)
}

func (h *Handler) RemoveTagFromEntry(c *gin.Context) {
	id := c.Param("id")
	name := c.Param("tag")

	ctx := c.Request.Context()
	entry, err := h.Journal.Get(ctx, id)
	if err != nil {
		h.Logger.Sugar().Errorw("get entry failed", "entry_id", id, "err", err)
		response.InternalError(c, "")
		return
	}
	if entry == nil {
		response.NotFound(c, "entry not found")
		return
	}

	// Removing an absent tag is a no-op, so a tag row is only looked
	// up, never created here.
	for _, t := range entry.Tags {
		if t.Name == model.NormalizeTagName(name) {
			if err := h.Store.RemoveTagFromEntry(ctx, id, t.ID); err != nil {
				h.Logger.Sugar().Errorw("remove tag failed", "entry_id", id, "err", err)
				response.InternalError(c, "")
				return
			}
			break
		}
	}

	h.Journal.SyncMarkdown(ctx, entry)
	response.NoContent(c)
}
