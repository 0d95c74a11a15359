package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/config"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
	"github.com/noah-isme/wifi-presence-api/pkg/jobs"
)

const (
	finalizeJobType    = "finalize_sessions"
	noCapturesMessage  = "No captures to process"
	finalizeResultOK   = "success"
	finalizeResultNoop = "empty"
	finalizeResultFail = "error"
)

type pendingSightingReader interface {
	ListPending(ctx context.Context) ([]models.Sighting, error)
}

type attendanceCommitter interface {
	Commit(ctx context.Context, records []models.AttendanceRecord, consumedIDs []string) (int64, error)
}

type anomalyClassifier interface {
	Classify(ctx context.Context, features models.FeatureVector) models.AnomalyVerdict
}

type scheduleReconciler interface {
	Reconcile(ctx context.Context, now time.Time, sessionMinutes int) (models.Reconciliation, error)
}

type deviceDirectory interface {
	FindByDeviceIDs(ctx context.Context, deviceIDs []string) (map[string]models.RegisteredDevice, error)
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, cache string) error
}

// AttendancePublisher receives finalized records after they are committed.
type AttendancePublisher interface {
	Publish(ctx context.Context, records []models.AttendanceRecord) error
}

// FinalizerOptions carries the optional collaborators of the finalizer.
type FinalizerOptions struct {
	GroupBy    string
	RSSIRange  models.RSSIRange
	Cache      cacheInvalidator
	Publisher  AttendancePublisher
	Metrics    *MetricsService
	QueueRetry int
	RetryDelay time.Duration
	Logger     *zap.Logger
}

// FinalizerService turns the pending sighting store into attendance records.
type FinalizerService struct {
	sightings  pendingSightingReader
	records    attendanceCommitter
	classifier anomalyClassifier
	schedules  scheduleReconciler
	devices    deviceDirectory
	cache      cacheInvalidator
	publisher  AttendancePublisher
	metrics    *MetricsService
	groupBy    string
	rssiRange  models.RSSIRange
	now        func() time.Time
	logger     *zap.Logger

	runMu sync.Mutex
	queue *jobs.Queue
}

// NewFinalizerService wires the finalizer and its async queue.
func NewFinalizerService(
	sightings pendingSightingReader,
	records attendanceCommitter,
	classifier anomalyClassifier,
	schedules scheduleReconciler,
	devices deviceDirectory,
	opts FinalizerOptions,
) *FinalizerService {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.GroupBy == "" {
		opts.GroupBy = config.GroupByDevice
	}
	if opts.RSSIRange == (models.RSSIRange{}) {
		opts.RSSIRange = models.DefaultRSSIRange
	}
	s := &FinalizerService{
		sightings:  sightings,
		records:    records,
		classifier: classifier,
		schedules:  schedules,
		devices:    devices,
		cache:      opts.Cache,
		publisher:  opts.Publisher,
		metrics:    opts.Metrics,
		groupBy:    opts.GroupBy,
		rssiRange:  opts.RSSIRange,
		now:        time.Now,
		logger:     opts.Logger,
	}
	s.queue = jobs.NewQueue("finalizer", s.handleJob, jobs.QueueConfig{
		Workers:    1,
		BufferSize: 8,
		MaxRetries: opts.QueueRetry,
		RetryDelay: opts.RetryDelay,
		Logger:     opts.Logger,
	})
	return s
}

// Start launches the async worker.
func (s *FinalizerService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the async worker.
func (s *FinalizerService) Stop() {
	s.queue.Stop()
}

// FinalizeAsync queues a finalization run and returns its job id.
func (s *FinalizerService) FinalizeAsync() (string, error) {
	job, err := s.queue.Enqueue(jobs.Job{Type: finalizeJobType})
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrServiceUnavailable.Code, appErrors.ErrServiceUnavailable.Status, "finalizer queue unavailable")
	}
	return job.ID, nil
}

// JobStatus reports the state of an async run.
func (s *FinalizerService) JobStatus(id string) (*jobs.Status, error) {
	st, ok := s.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "finalize job not found")
	}
	return &st, nil
}

func (s *FinalizerService) handleJob(ctx context.Context, job jobs.Job) (interface{}, error) {
	return s.FinalizeAll(ctx)
}

type sightingGroup struct {
	deviceID  string
	sightings []models.Sighting
}

// FinalizeAll emits one attendance record per group and deletes exactly the
// sightings it consumed. Runs are serialized.
func (s *FinalizerService) FinalizeAll(ctx context.Context) (*models.FinalizeResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	start := time.Now()
	pending, err := s.sightings.ListPending(ctx)
	if err != nil {
		s.metrics.RecordFinalizeRun(finalizeResultFail, 0, time.Since(start))
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to read pending sightings")
	}
	if len(pending) == 0 {
		s.metrics.RecordFinalizeRun(finalizeResultNoop, 0, time.Since(start))
		return &models.FinalizeResult{Message: noCapturesMessage}, nil
	}

	groups := s.group(pending)
	identities := s.lookupIdentities(ctx, groups)
	now := s.now()

	records := make([]models.AttendanceRecord, 0, len(groups))
	consumed := make([]string, 0, len(pending))
	for _, g := range groups {
		record, err := s.buildRecord(ctx, now, g, identities)
		if err != nil {
			s.metrics.RecordFinalizeRun(finalizeResultFail, len(pending), time.Since(start))
			return nil, err
		}
		records = append(records, record)
		for _, sighting := range g.sightings {
			consumed = append(consumed, sighting.ID)
		}
	}

	deleted, err := s.records.Commit(ctx, records, consumed)
	if err != nil {
		s.metrics.RecordFinalizeRun(finalizeResultFail, len(pending), time.Since(start))
		s.logger.Error("failed to commit attendance records",
			zap.Int("records", len(records)),
			zap.Int("sightings", len(consumed)),
			zap.Error(err),
		)
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to store attendance records")
	}
	if int(deleted) != len(consumed) {
		s.logger.Warn("consumed sighting count mismatch", zap.Int("expected", len(consumed)), zap.Int64("deleted", deleted))
	}

	for _, r := range records {
		s.metrics.RecordAttendance(r.Status)
	}
	s.metrics.RecordFinalizeRun(finalizeResultOK, len(pending), time.Since(start))
	s.afterCommit(ctx, records)

	s.logger.Info("finalization complete",
		zap.Int("records", len(records)),
		zap.Int("sightings", len(consumed)),
		zap.Duration("duration", time.Since(start)),
	)
	return &models.FinalizeResult{
		RecordsEmitted:    len(records),
		SightingsConsumed: len(consumed),
		Message:           fmt.Sprintf("Processed %d records", len(records)),
	}, nil
}

// group preserves first-seen order of the keys. pending is already ordered by
// observation time.
func (s *FinalizerService) group(pending []models.Sighting) []sightingGroup {
	index := make(map[string]int)
	groups := make([]sightingGroup, 0)
	for _, sighting := range pending {
		key := sighting.DeviceID
		if s.groupBy == config.GroupByDeviceAP {
			key = sighting.DeviceID + "\x00" + sighting.APID
		}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, sightingGroup{deviceID: sighting.DeviceID})
		}
		groups[i].sightings = append(groups[i].sightings, sighting)
	}
	return groups
}

// lookupIdentities is best effort; a failure leaves identity fields empty.
func (s *FinalizerService) lookupIdentities(ctx context.Context, groups []sightingGroup) map[string]models.RegisteredDevice {
	if s.devices == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(groups))
	ids := make([]string, 0, len(groups))
	for _, g := range groups {
		if _, ok := seen[g.deviceID]; ok {
			continue
		}
		seen[g.deviceID] = struct{}{}
		ids = append(ids, g.deviceID)
	}
	found, err := s.devices.FindByDeviceIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("device registry lookup failed", zap.Int("devices", len(ids)), zap.Error(err))
		return nil
	}
	return found
}

func (s *FinalizerService) buildRecord(ctx context.Context, now time.Time, g sightingGroup, identities map[string]models.RegisteredDevice) (models.AttendanceRecord, error) {
	features, err := ExtractFeatures(g.sightings, s.rssiRange)
	if err != nil {
		return models.AttendanceRecord{}, err
	}
	verdict := s.classifier.Classify(ctx, features)

	durationSeconds := int(math.Floor(features.DurationTotal))
	minutes := durationSeconds / 60
	decision, err := s.schedules.Reconcile(ctx, now, minutes)
	if err != nil {
		return models.AttendanceRecord{}, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to reconcile schedule")
	}

	status := decision.Status
	if verdict.IsAnomalous {
		status = models.AttendanceStatusFlagged
	}

	first, last := g.sightings[0], g.sightings[0]
	for _, sighting := range g.sightings[1:] {
		if sighting.ObservedAt.Before(first.ObservedAt) {
			first = sighting
		}
		if !sighting.ObservedAt.Before(last.ObservedAt) {
			last = sighting
		}
	}

	record := models.AttendanceRecord{
		DeviceID:                  g.deviceID,
		DeviceHash:                HashDeviceID(g.deviceID),
		APID:                      last.APID,
		AvgRSSI:                   features.RSSIMean,
		RSSIStd:                   features.RSSIStd,
		DurationSeconds:           durationSeconds,
		APSwitches:                features.APSwitches,
		SampleCount:               features.SampleCount,
		InvalidRSSICount:          features.InvalidRSSICount,
		FirstSeen:                 first.ObservedAt,
		LastSeen:                  last.ObservedAt,
		AnomalyFlag:               verdict.IsAnomalous,
		AnomalyScore:              verdict.Score,
		AnomalyRawScore:           verdict.RawScore,
		ClassifierFallback:        verdict.Fallback,
		Status:                    status,
		SessionDuration:           FormatSessionDuration(durationSeconds),
		ScheduleID:                decision.ScheduleID,
		AttendanceDurationMinutes: minutes,
		IsAbsent:                  decision.IsAbsent,
	}
	if identity, ok := identities[g.deviceID]; ok {
		record.StudentName = identity.StudentName
		record.MatricNumber = identity.MatricNumber
		record.ClassName = identity.ClassName
	}
	return record, nil
}

func (s *FinalizerService) afterCommit(ctx context.Context, records []models.AttendanceRecord) {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, CacheAttendance); err != nil {
			s.logger.Warn("attendance cache invalidation failed", zap.Error(err))
		}
	}
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, records); err != nil {
			s.logger.Warn("failed to publish attendance records", zap.Int("records", len(records)), zap.Error(err))
		}
	}
}

// HashDeviceID returns the hex SHA-256 of a device identifier.
func HashDeviceID(deviceID string) string {
	sum := sha256.Sum256([]byte(deviceID))
	return hex.EncodeToString(sum[:])
}

// FormatSessionDuration renders seconds as "Xm Ys".
func FormatSessionDuration(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	return fmt.Sprintf("%dm %ds", seconds/60, seconds%60)
}
