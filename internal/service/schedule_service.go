package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

type scheduleRepository interface {
	ActiveAt(ctx context.Context, dayOfWeek int, clock string) ([]models.ScheduleWindow, error)
}

type scheduleCache interface {
	Get(ctx context.Context, cache, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, cache, key string, value interface{}, ttl time.Duration) error
}

// ScheduleService decides present/absent against the active timetable window.
type ScheduleService struct {
	repo     scheduleRepository
	cache    scheduleCache
	cacheTTL time.Duration
	location *time.Location
	logger   *zap.Logger
}

// NewScheduleService constructs the reconciler. A nil location keeps the
// caller's time zone.
func NewScheduleService(repo scheduleRepository, cache scheduleCache, cacheTTL time.Duration, location *time.Location, logger *zap.Logger) *ScheduleService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ScheduleService{repo: repo, cache: cache, cacheTTL: cacheTTL, location: location, logger: logger}
}

// Reconcile applies the minimum duration rule of the first window active at now.
// Without an active window the session counts as present.
func (s *ScheduleService) Reconcile(ctx context.Context, now time.Time, sessionMinutes int) (models.Reconciliation, error) {
	windows, err := s.activeWindows(ctx, now)
	if err != nil {
		return models.Reconciliation{}, err
	}
	if len(windows) == 0 {
		return models.Reconciliation{Status: models.AttendanceStatusPresent}, nil
	}

	window := windows[0]
	id := window.ID
	result := models.Reconciliation{
		Status:     models.AttendanceStatusPresent,
		ScheduleID: &id,
		Schedule:   &window,
	}
	if sessionMinutes < window.DurationMinutes {
		result.IsAbsent = true
		result.Status = models.AttendanceStatusAbsent
	}
	return result, nil
}

func (s *ScheduleService) activeWindows(ctx context.Context, now time.Time) ([]models.ScheduleWindow, error) {
	if s.location != nil {
		now = now.In(s.location)
	}
	day := int(now.Weekday())
	clock := now.Format("15:04:05")
	key := fmt.Sprintf("%d:%s", day, clock)

	if s.cache != nil {
		var cached []models.ScheduleWindow
		if hit, err := s.cache.Get(ctx, CacheSchedule, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	windows, err := s.repo.ActiveAt(ctx, day, clock)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to load active schedule")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, CacheSchedule, key, windows, s.cacheTTL); err != nil {
			s.logger.Debug("schedule cache write skipped", zap.Error(err))
		}
	}
	return windows, nil
}
