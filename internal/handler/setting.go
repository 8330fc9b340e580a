package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/josiah-roberts/muninn/pkg/model"
	"github.com/josiah-roberts/muninn/pkg/response"
)

// settingKeys restricts the settings surface to the two free-text
// documents: the user-authored agent overview and the agent-authored
// user profile.
var settingKeys = map[string]string{
	"agent-overview": model.SettingAgentOverview,
	"user-profile":   model.SettingUserProfile,
}

func (h *Handler) GetSetting(c *gin.Context) {
	key, ok := settingKeys[c.Param("key")]
	if !ok {
		response.NotFound(c, "unknown setting")
		return
	}

	value, _, err := h.Store.GetSetting(c.Request.Context(), key)
	if err != nil {
		h.Logger.Sugar().Errorw("get setting failed", "key", key, "err", err)
		response.InternalError(c, "")
		return
	}
	response.OK(c, gin.H{"key": c.Param("key"), "value": value})
}

type settingRequest struct {
	Value string `json:"value"`
}

func (h *Handler) SetSetting(c *gin.Context) {
	key, ok := settingKeys[c.Param("key")]
	if !ok {
		response.NotFound(c, "unknown setting")
		return
	}

	var req settingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.Store.SetSetting(c.Request.Context(), key, req.Value); err != nil {
		h.Logger.Sugar().Errorw("set setting failed", "key", key, "err", err)
		response.InternalError(c, "")
		return
	}
	response.OK(c, gin.H{"key": c.Param("key"), "value": req.Value})
}
