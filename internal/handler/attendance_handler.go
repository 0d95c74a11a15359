package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/internal/service"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/response"
)

type attendanceService interface {
	List(ctx context.Context, query dto.AttendanceQuery) ([]models.AttendanceRecord, error)
	Export(ctx context.Context, query dto.AttendanceQuery) (*service.ExportFile, error)
	PageSize(limit int) int
}

// AttendanceHandler serves finalized attendance records.
type AttendanceHandler struct {
	service attendanceService
}

// NewAttendanceHandler builds an attendance handler.
func NewAttendanceHandler(service attendanceService) *AttendanceHandler {
	return &AttendanceHandler{service: service}
}

// List godoc
// @Summary List attendance records, newest first
// @Tags Attendance
// @Produce json
// @Param status query string false "present|absent|flagged|suspicious|all"
// @Param device_id query string false "Device ID"
// @Param from query string false "RFC3339 lower bound"
// @Param to query string false "RFC3339 upper bound"
// @Param limit query int false "Max records (<= 500)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	var query dto.AttendanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance query"))
		return
	}
	records, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: 1, PageSize: h.service.PageSize(query.Limit), TotalCount: len(records)}
	response.JSON(c, http.StatusOK, records, pagination, map[string]interface{}{"count": len(records)})
}

// Export godoc
// @Summary Download attendance records as CSV or PDF
// @Tags Attendance
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv|pdf"
// @Param status query string false "present|absent|flagged|suspicious|all"
// @Param limit query int false "Max records (<= 500)"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /attendance/export [get]
func (h *AttendanceHandler) Export(c *gin.Context) {
	var query dto.AttendanceQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid attendance query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}
