package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/jobs"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type finalizerService interface {
	FinalizeAll(ctx context.Context) (*models.FinalizeResult, error)
	FinalizeAsync() (string, error)
	JobStatus(id string) (*jobs.Status, error)
}

// SessionHandler closes capture sessions into attendance records.
type SessionHandler struct {
	service finalizerService
}

// NewSessionHandler builds a session handler.
func NewSessionHandler(service finalizerService) *SessionHandler {
	return &SessionHandler{service: service}
}

// Finalize godoc
// @Summary Finalize pending sightings into attendance records
// @Tags Sessions
// @Produce json
// @Param async query bool false "Queue the run and return a job id"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 500 {object} response.Envelope
// @Router /sessions/finalize [post]
func (h *SessionHandler) Finalize(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		id, err := h.service.FinalizeAsync()
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Accepted(c, dto.FinalizeJobResponse{JobID: id, State: string(jobs.StateQueued)})
		return
	}

	// A client disconnect must not abort a run midway through its commit.
	result, err := h.service.FinalizeAll(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// JobStatus godoc
// @Summary Status of a queued finalization run
// @Tags Sessions
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /sessions/finalize/jobs/{id} [get]
func (h *SessionHandler) JobStatus(c *gin.Context) {
	status, err := h.service.JobStatus(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
