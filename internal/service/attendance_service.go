package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/export"
)

const maxAttendanceLimit = 500

type attendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error)
}

type attendanceCache interface {
	Get(ctx context.Context, cache, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, cache, key string, value interface{}, ttl time.Duration) error
}

// ExportFile is a rendered attendance report.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// AttendanceService serves the attendance report and its exports.
type AttendanceService struct {
	repo         attendanceLister
	cache        attendanceCache
	cacheTTL     time.Duration
	defaultLimit int
	renderers    map[string]export.Renderer
	logger       *zap.Logger
}

// NewAttendanceService constructs the report service. Renderers are keyed by
// their extension.
func NewAttendanceService(repo attendanceLister, cache attendanceCache, cacheTTL time.Duration, defaultLimit int, logger *zap.Logger, renderers ...export.Renderer) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaultLimit <= 0 || defaultLimit > maxAttendanceLimit {
		defaultLimit = 100
	}
	byExt := make(map[string]export.Renderer, len(renderers))
	for _, r := range renderers {
		byExt[r.Extension()] = r
	}
	return &AttendanceService{
		repo:         repo,
		cache:        cache,
		cacheTTL:     cacheTTL,
		defaultLimit: defaultLimit,
		renderers:    byExt,
		logger:       logger,
	}
}

// List returns the newest records; status is normalised so a flagged anomaly
// always reports as flagged.
func (s *AttendanceService) List(ctx context.Context, query dto.AttendanceQuery) ([]models.AttendanceRecord, error) {
	filter, err := s.filter(query)
	if err != nil {
		return nil, err
	}

	key := cacheKey(filter)
	if s.cache != nil {
		var cached []models.AttendanceRecord
		if hit, err := s.cache.Get(ctx, CacheAttendance, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	records, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to list attendance records")
	}
	for i := range records {
		records[i].Status = records[i].EffectiveStatus()
	}
	if records == nil {
		records = []models.AttendanceRecord{}
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, CacheAttendance, key, records, s.cacheTTL); err != nil {
			s.logger.Debug("attendance cache write skipped", zap.Error(err))
		}
	}
	return records, nil
}

// Export renders the filtered report in the requested format.
func (s *AttendanceService) Export(ctx context.Context, query dto.AttendanceQuery) (*ExportFile, error) {
	format := strings.ToLower(strings.TrimSpace(query.Format))
	if format == "" {
		format = "csv"
	}
	renderer, ok := s.renderers[format]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", query.Format))
	}

	records, err := s.List(ctx, query)
	if err != nil {
		return nil, err
	}
	body, err := renderer.Render(attendanceDataset(records))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render attendance export")
	}
	return &ExportFile{
		Filename:    fmt.Sprintf("attendance-%s.%s", time.Now().UTC().Format("20060102-150405"), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

// PageSize resolves a requested limit to the one List applies.
func (s *AttendanceService) PageSize(limit int) int {
	if limit <= 0 {
		return s.defaultLimit
	}
	if limit > maxAttendanceLimit {
		return maxAttendanceLimit
	}
	return limit
}

func (s *AttendanceService) filter(query dto.AttendanceQuery) (models.AttendanceFilter, error) {
	filter := models.AttendanceFilter{
		DeviceID: strings.TrimSpace(query.DeviceID),
		From:     query.From,
		To:       query.To,
		Limit:    s.PageSize(query.Limit),
	}
	if raw := strings.TrimSpace(query.Status); raw != "" && !strings.EqualFold(raw, "all") {
		status, ok := models.ParseAttendanceStatus(raw)
		if !ok {
			return filter, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("invalid status %q", raw))
		}
		filter.Status = &status
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return filter, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return filter, nil
}

func cacheKey(f models.AttendanceFilter) string {
	parts := []string{"list", strconv.Itoa(f.Limit)}
	if f.Status != nil {
		parts = append(parts, "s="+string(*f.Status))
	}
	if f.DeviceID != "" {
		parts = append(parts, "d="+f.DeviceID)
	}
	if f.From != nil {
		parts = append(parts, "from="+f.From.UTC().Format(time.RFC3339))
	}
	if f.To != nil {
		parts = append(parts, "to="+f.To.UTC().Format(time.RFC3339))
	}
	return strings.Join(parts, ":")
}

var attendanceHeaders = []string{
	"Device Hash", "Student", "Matric", "Class", "AP", "Status", "Session", "Minutes",
	"Avg RSSI", "RSSI Std", "AP Switches", "Anomaly Score", "Created At",
}

func attendanceDataset(records []models.AttendanceRecord) export.Dataset {
	rows := make([]map[string]string, 0, len(records))
	for _, r := range records {
		rows = append(rows, map[string]string{
			"Device Hash":   shortHash(r.DeviceHash),
			"Student":       deref(r.StudentName),
			"Matric":        deref(r.MatricNumber),
			"Class":         deref(r.ClassName),
			"AP":            r.APID,
			"Status":        string(r.EffectiveStatus()),
			"Session":       r.SessionDuration,
			"Minutes":       strconv.Itoa(r.AttendanceDurationMinutes),
			"Avg RSSI":      strconv.FormatFloat(r.AvgRSSI, 'f', 2, 64),
			"RSSI Std":      strconv.FormatFloat(r.RSSIStd, 'f', 2, 64),
			"AP Switches":   strconv.Itoa(r.APSwitches),
			"Anomaly Score": strconv.FormatFloat(r.AnomalyScore, 'f', 3, 64),
			"Created At":    r.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return export.Dataset{Title: "Attendance Report", Headers: attendanceHeaders, Rows: rows}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
