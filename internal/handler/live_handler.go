package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type liveAggregator interface {
	Snapshot() []models.LiveDevice
	Start()
	Stop()
	Active() bool
}

// LiveHandler serves the live dashboard view.
type LiveHandler struct {
	live liveAggregator
}

// NewLiveHandler builds a live handler.
func NewLiveHandler(live liveAggregator) *LiveHandler {
	return &LiveHandler{live: live}
}

// Snapshot godoc
// @Summary Devices currently seen
// @Tags Live
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /live [get]
func (h *LiveHandler) Snapshot(c *gin.Context) {
	devices := h.live.Snapshot()
	response.JSON(c, http.StatusOK, devices, nil, map[string]interface{}{
		"active": h.live.Active(),
		"count":  len(devices),
	})
}

// Start godoc
// @Summary Enable live monitoring
// @Tags Live
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /live/start [post]
func (h *LiveHandler) Start(c *gin.Context) {
	h.live.Start()
	response.JSON(c, http.StatusOK, dto.LiveStateResponse{Active: true}, nil)
}

// Stop godoc
// @Summary Disable live monitoring and clear the view
// @Tags Live
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /live/stop [post]
func (h *LiveHandler) Stop(c *gin.Context) {
	h.live.Stop()
	response.JSON(c, http.StatusOK, dto.LiveStateResponse{Active: false}, nil)
}
