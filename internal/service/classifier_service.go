package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/breaker"
	"github.com/noah-isme/wifi-presence-api/pkg/config"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

// anomalyFlag accepts 0/1 as well as JSON booleans.
type anomalyFlag bool

func (f *anomalyFlag) UnmarshalJSON(data []byte) error {
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		*f = anomalyFlag(b)
		return nil
	}
	var n float64
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("is_anomaly: %w", err)
	}
	*f = n != 0
	return nil
}

type predictResponse struct {
	IsAnomaly    anomalyFlag `json:"is_anomaly"`
	AnomalyScore *float64    `json:"anomaly_score"`
}

// ClassifierHealth reports reachability of the scoring service.
type ClassifierHealth struct {
	Configured bool   `json:"configured"`
	Reachable  bool   `json:"reachable"`
	Breaker    string `json:"breaker"`
	Error      string `json:"error,omitempty"`
}

// ClassifierService calls the external anomaly scorer. Every failure maps to
// the fallback verdict so a finalization run is never blocked by the scorer.
type ClassifierService struct {
	baseURL string
	timeout time.Duration
	client  *http.Client
	breaker *breaker.Breaker
	metrics *MetricsService
	logger  *zap.Logger
}

// NewClassifierService constructs the adapter.
func NewClassifierService(cfg config.ClassifierConfig, metrics *MetricsService, logger *zap.Logger) *ClassifierService {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ClassifierService{
		baseURL: cfg.URL,
		timeout: timeout,
		client:  &http.Client{Timeout: timeout},
		breaker: breaker.New("classifier", breaker.Config{
			MaxFailures:  cfg.BreakerMaxFailures,
			ResetTimeout: cfg.BreakerReset,
			Logger:       logger,
		}),
		metrics: metrics,
		logger:  logger,
	}
}

// NormalizeScore clamps |raw| into [0,1].
func NormalizeScore(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return math.Min(1, math.Max(0, math.Abs(raw)))
}

// Classify scores the feature vector. It never fails.
func (s *ClassifierService) Classify(ctx context.Context, features models.FeatureVector) models.AnomalyVerdict {
	if s.baseURL == "" {
		s.metrics.RecordClassifierCall(ClassifierOutcomeFallback, 0)
		return models.FallbackVerdict()
	}

	start := time.Now()
	var verdict models.AnomalyVerdict
	err := s.breaker.Execute(ctx, func(ctx context.Context) error {
		v, err := s.predict(ctx, features)
		if err != nil {
			return err
		}
		verdict = v
		return nil
	})
	duration := time.Since(start)

	switch {
	case err == nil:
		s.metrics.RecordClassifierCall(ClassifierOutcomeOK, duration)
		return verdict
	case errors.Is(err, breaker.ErrOpen):
		s.metrics.RecordClassifierCall(ClassifierOutcomeShortCircuit, duration)
		s.logger.Debug("classifier short-circuited, using fallback verdict")
		return models.FallbackVerdict()
	case ctx.Err() != nil:
		s.metrics.RecordClassifierCall(ClassifierOutcomeFallback, duration)
		s.logger.Debug("classification abandoned by caller, using fallback verdict", zap.Error(ctx.Err()))
		return models.FallbackVerdict()
	default:
		s.metrics.RecordClassifierCall(ClassifierOutcomeFallback, duration)
		s.logger.Warn("classifier unavailable, using fallback verdict",
			zap.String("url", s.baseURL),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return models.FallbackVerdict()
	}
}

func (s *ClassifierService) predict(ctx context.Context, features models.FeatureVector) (models.AnomalyVerdict, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	body, err := json.Marshal(features)
	if err != nil {
		return models.AnomalyVerdict{}, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "encode features")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/predict", bytes.NewReader(body))
	if err != nil {
		return models.AnomalyVerdict{}, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "build request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return models.AnomalyVerdict{}, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "call classifier")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return models.AnomalyVerdict{}, appErrors.Clone(appErrors.ErrClassifierUnavailable, fmt.Sprintf("classifier returned status %d", resp.StatusCode))
	}

	var out predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&out); err != nil {
		return models.AnomalyVerdict{}, appErrors.Wrap(err, appErrors.ErrClassifierUnavailable.Code, appErrors.ErrClassifierUnavailable.Status, "decode classifier response")
	}
	if out.AnomalyScore == nil {
		return models.AnomalyVerdict{}, appErrors.Clone(appErrors.ErrClassifierUnavailable, "classifier response missing anomaly_score")
	}

	raw := *out.AnomalyScore
	return models.AnomalyVerdict{
		IsAnomalous: bool(out.IsAnomaly),
		Score:       NormalizeScore(raw),
		RawScore:    raw,
	}, nil
}

// Health probes the scorer's health endpoint. It bypasses the breaker.
func (s *ClassifierService) Health(ctx context.Context) ClassifierHealth {
	health := ClassifierHealth{Configured: s.baseURL != "", Breaker: s.breaker.State().String()}
	if !health.Configured {
		return health
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/health", nil)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	resp, err := s.client.Do(req)
	if err != nil {
		health.Error = err.Error()
		return health
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	health.Reachable = resp.StatusCode >= 200 && resp.StatusCode <= 299
	if !health.Reachable {
		health.Error = fmt.Sprintf("status %d", resp.StatusCode)
	}
	return health
}
