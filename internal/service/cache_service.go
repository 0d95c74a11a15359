package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

// Cache names used for metrics labels and key prefixes.
const (
	CacheSchedule   = "schedule"
	CacheAttendance = "attendance"
)

// CacheRepository abstracts persistence for cached payloads.
type CacheRepository interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// CacheService wraps the cache repository with metrics and fail-soft logging.
// Cache errors are reported to callers but never required for correctness.
type CacheService struct {
	repo       CacheRepository
	metrics    *MetricsService
	defaultTTL time.Duration
	logger     *zap.Logger
	enabled    bool
}

// NewCacheService constructs a cache service.
func NewCacheService(repo CacheRepository, metrics *MetricsService, defaultTTL time.Duration, logger *zap.Logger, enabled bool) *CacheService {
	if defaultTTL <= 0 {
		defaultTTL = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CacheService{repo: repo, metrics: metrics, defaultTTL: defaultTTL, logger: logger, enabled: enabled}
}

// Enabled indicates whether caching is active.
func (s *CacheService) Enabled() bool {
	return s != nil && s.enabled && s.repo != nil
}

// Get attempts to retrieve a cached entry under the named cache. It returns
// true when the cache was hit.
func (s *CacheService) Get(ctx context.Context, cache, key string, dest interface{}) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}
	start := time.Now()
	err := s.repo.Get(ctx, cache+":"+key, dest)
	duration := time.Since(start)
	switch {
	case err == nil:
		s.metrics.RecordCacheOperation(cache, "hit", duration)
		return true, nil
	case errors.Is(err, appErrors.ErrCacheMiss):
		s.metrics.RecordCacheOperation(cache, "miss", duration)
		return false, nil
	default:
		s.metrics.RecordCacheOperation(cache, "error", duration)
		s.logger.Warn("cache get failed", zap.String("cache", cache), zap.String("key", key), zap.Error(err))
		return false, err
	}
}

// Set stores the value under the named cache.
func (s *CacheService) Set(ctx context.Context, cache, key string, value interface{}, ttl time.Duration) error {
	if !s.Enabled() {
		return nil
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if err := s.repo.Set(ctx, cache+":"+key, value, ttl); err != nil {
		s.logger.Warn("cache set failed", zap.String("cache", cache), zap.String("key", key), zap.Error(err))
		return err
	}
	return nil
}

// Invalidate removes every entry of the named cache.
func (s *CacheService) Invalidate(ctx context.Context, cache string) error {
	if !s.Enabled() {
		return nil
	}
	if err := s.repo.DeleteByPattern(ctx, cache+":*"); err != nil {
		s.logger.Warn("cache invalidate failed", zap.String("cache", cache), zap.Error(err))
		return err
	}
	return nil
}
