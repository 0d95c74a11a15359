package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

type sightingWriter interface {
	Insert(ctx context.Context, sighting *models.Sighting) error
}

type sightingCounter interface {
	CountPending(ctx context.Context) (int, error)
}

type sightingObserver interface {
	OnSighting(s models.Sighting)
	Active() bool
}

// IngestService appends raw sightings to the pending store.
type IngestService struct {
	repo        sightingWriter
	counter     sightingCounter
	live        sightingObserver
	metrics     *MetricsService
	defaultRSSI int
	now         func() time.Time
	logger      *zap.Logger
}

// NewIngestService constructs the ingest service. live may be nil.
func NewIngestService(repo sightingWriter, counter sightingCounter, live sightingObserver, metrics *MetricsService, defaultRSSI int, logger *zap.Logger) *IngestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		repo:        repo,
		counter:     counter,
		live:        live,
		metrics:     metrics,
		defaultRSSI: defaultRSSI,
		now:         time.Now,
		logger:      logger,
	}
}

// Record validates and stores one sighting. Duplicates are accepted.
func (s *IngestService) Record(ctx context.Context, req dto.RecordSightingRequest) (*models.Sighting, error) {
	deviceID := strings.TrimSpace(req.DeviceID)
	apID := strings.TrimSpace(req.APID)
	if deviceID == "" || apID == "" {
		s.metrics.RecordIngest(false)
		return nil, appErrors.ErrInvalidSighting
	}

	rssi := s.defaultRSSI
	if req.RSSI != nil {
		rssi = *req.RSSI
	}
	now := s.now()
	observedAt := now
	if req.ObservedAt != nil && !req.ObservedAt.IsZero() {
		observedAt = *req.ObservedAt
	}

	sighting := &models.Sighting{
		ID:         uuid.NewString(),
		DeviceID:   deviceID,
		APID:       apID,
		RSSI:       rssi,
		ObservedAt: observedAt,
		CreatedAt:  now.UTC(),
	}

	// Detach from request cancellation so an accepted append is never torn.
	if err := s.repo.Insert(context.WithoutCancel(ctx), sighting); err != nil {
		s.metrics.RecordIngest(false)
		s.logger.Error("failed to store sighting", zap.String("device_id", deviceID), zap.String("ap_id", apID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store sighting")
	}
	s.metrics.RecordIngest(true)

	if s.live != nil && s.live.Active() {
		s.live.OnSighting(*sighting)
	}
	return sighting, nil
}

// Status summarises the pending store for capture clients.
func (s *IngestService) Status(ctx context.Context) (*models.CaptureStatus, error) {
	pending, err := s.counter.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to count pending captures")
	}
	status := &models.CaptureStatus{PendingCaptures: pending, Running: pending > 0}
	if s.live != nil {
		status.LiveMonitoring = s.live.Active()
	}
	return status, nil
}
