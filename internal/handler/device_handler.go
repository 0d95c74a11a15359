package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type deviceService interface {
	List(ctx context.Context) ([]models.RegisteredDevice, error)
	Register(ctx context.Context, req dto.RegisterDeviceRequest) (*models.RegisteredDevice, error)
}

// DeviceHandler manages the device registry.
type DeviceHandler struct {
	service deviceService
}

// NewDeviceHandler builds a device handler.
func NewDeviceHandler(service deviceService) *DeviceHandler {
	return &DeviceHandler{service: service}
}

// List godoc
// @Summary List registered devices
// @Tags Devices
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /devices [get]
func (h *DeviceHandler) List(c *gin.Context) {
	devices, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, devices, nil)
}

// Register godoc
// @Summary Register or update a device identity
// @Tags Devices
// @Accept json
// @Produce json
// @Param payload body dto.RegisterDeviceRequest true "Device"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /devices [post]
func (h *DeviceHandler) Register(c *gin.Context) {
	var req dto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid device payload"))
		return
	}
	device, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, device)
}
