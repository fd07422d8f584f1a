package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"raffle/internal/service"
)

type SettingsHandler struct {
	Settings *service.SystemSettingsService
}

func (h *SettingsHandler) Register(r *gin.Engine) {
	g := r.Group("/api/v1/settings")
	g.GET("", h.list)
	g.GET("/:key", h.get)
	g.PUT("/:key", h.put)
}

// @Summary List feature switches
// @Tags settings
// @Success 200 {object} apiResponse
// @Router /api/v1/settings [get]
func (h *SettingsHandler) list(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	Ok(c, h.Settings.Switches(c.Request.Context()), nil)
}

func switchKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Param("key"))
	if !strings.HasPrefix(key, "feature.") {
		key = "feature." + key
	}
	return key, service.IsKnownSwitch(key)
}

func (h *SettingsHandler) get(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, ok := switchKey(c)
	if !ok {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	enabled := h.Settings.IsEnabled(c.Request.Context(), key, service.DefaultFeatureSwitches()[key])
	Ok(c, service.FeatureSwitch{Key: key, Enabled: enabled}, nil)
}

type putSwitchRequest struct {
	Enabled *bool `json:"enabled"`
}

// @Summary Flip a feature switch
// @Tags settings
// @Param key path string true "switch key, with or without the feature. prefix"
// @Success 200 {object} apiResponse
// @Router /api/v1/settings/{key} [put]
func (h *SettingsHandler) put(c *gin.Context) {
	if h.Settings == nil {
		Error(c, http.StatusInternalServerError, "settings service unavailable", nil)
		return
	}
	key, ok := switchKey(c)
	if !ok {
		Error(c, http.StatusNotFound, "unknown switch", nil)
		return
	}
	var req putSwitchRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Enabled == nil {
		Error(c, http.StatusBadRequest, "invalid body", nil)
		return
	}
	if err := h.Settings.SetEnabled(c.Request.Context(), key, *req.Enabled); err != nil {
		Error(c, http.StatusBadGateway, err.Error(), nil)
		return
	}
	Ok(c, service.FeatureSwitch{Key: key, Enabled: *req.Enabled}, nil)
}
