package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type ingestService interface {
	Record(ctx context.Context, req dto.RecordSightingRequest) (*models.Sighting, error)
	Status(ctx context.Context) (*models.CaptureStatus, error)
}

// CaptureHandler receives sightings from capture sources.
type CaptureHandler struct {
	service        ingestService
	validator      *validator.Validate
	defaultAPID    string
	allowDefaultAP bool
}

// NewCaptureHandler builds a capture handler. When allowDefaultAP is set a
// missing ap_id is replaced by defaultAPID. Empty identifiers are left to the
// ingest service to reject.
func NewCaptureHandler(service ingestService, validate *validator.Validate, defaultAPID string, allowDefaultAP bool) *CaptureHandler {
	if validate == nil {
		validate = validator.New()
	}
	return &CaptureHandler{service: service, validator: validate, defaultAPID: defaultAPID, allowDefaultAP: allowDefaultAP}
}

// Record godoc
// @Summary Ingest one device sighting
// @Tags Captures
// @Accept json
// @Produce json
// @Param payload body dto.RecordSightingRequest true "Sighting"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /captures [post]
func (h *CaptureHandler) Record(c *gin.Context) {
	var req dto.RecordSightingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sighting payload"))
		return
	}
	if h.allowDefaultAP && strings.TrimSpace(req.APID) == "" {
		req.APID = h.defaultAPID
	}
	if err := h.validator.Struct(req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid sighting payload"))
		return
	}
	sighting, err := h.service.Record(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.RecordSightingResponse{Accepted: true, DeviceID: sighting.DeviceID, ID: sighting.ID})
}

// Status godoc
// @Summary Pending capture status
// @Tags Captures
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /captures/status [get]
func (h *CaptureHandler) Status(c *gin.Context) {
	status, err := h.service.Status(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}
