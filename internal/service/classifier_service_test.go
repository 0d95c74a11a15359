package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wifi-presence-api/internal/models"
	"github.com/noah-isme/wifi-presence-api/pkg/config"
)

func newTestClassifier(url string, timeout time.Duration, maxFailures int) *ClassifierService {
	return NewClassifierService(config.ClassifierConfig{
		URL:                url,
		Timeout:            timeout,
		BreakerMaxFailures: maxFailures,
		BreakerReset:       time.Minute,
	}, NewMetricsService(), nil)
}

func TestClassifyDecodesAndNormalizes(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/predict", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"is_anomaly":1,"anomaly_score":-1.7}`))
	}))
	defer srv.Close()

	svc := newTestClassifier(srv.URL, time.Second, 3)
	verdict := svc.Classify(context.Background(), models.FeatureVector{DurationTotal: 900, FragCount: 3, RSSIMean: -67.5, Weekday: 1})

	assert.True(t, verdict.IsAnomalous)
	assert.Equal(t, 1.0, verdict.Score)
	assert.Equal(t, -1.7, verdict.RawScore)
	assert.False(t, verdict.Fallback)

	for _, key := range []string{"duration_total", "ap_switches", "frag_count", "bytes_total", "rssi_mean", "rssi_std",
		"invalid_rssi_count", "login_hour", "weekday", "start_minute_of_day"} {
		assert.Contains(t, got, key)
	}
	assert.Len(t, got, 10)
}

func TestClassifyAcceptsBooleanFlag(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_anomaly":false,"anomaly_score":0.12}`))
	}))
	defer srv.Close()

	verdict := newTestClassifier(srv.URL, time.Second, 3).Classify(context.Background(), models.FeatureVector{})
	assert.False(t, verdict.IsAnomalous)
	assert.InDelta(t, 0.12, verdict.Score, 1e-9)
}

func TestClassifyFallbackWhenUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	verdict := newTestClassifier(url, time.Second, 3).Classify(context.Background(), models.FeatureVector{})
	assert.Equal(t, models.FallbackVerdict(), verdict)
	assert.False(t, verdict.IsAnomalous)
	assert.Equal(t, 0.5, verdict.Score)
}

func TestClassifyFallbackOnNon2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	verdict := newTestClassifier(srv.URL, time.Second, 3).Classify(context.Background(), models.FeatureVector{})
	assert.Equal(t, models.FallbackVerdict(), verdict)
}

func TestClassifyFallbackOnBadBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_anomaly":1}`))
	}))
	defer srv.Close()

	verdict := newTestClassifier(srv.URL, time.Second, 3).Classify(context.Background(), models.FeatureVector{})
	assert.Equal(t, models.FallbackVerdict(), verdict)
}

func TestClassifyFallbackOnTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	start := time.Now()
	verdict := newTestClassifier(srv.URL, 50*time.Millisecond, 3).Classify(context.Background(), models.FeatureVector{})
	assert.Equal(t, models.FallbackVerdict(), verdict)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestClassifyShortCircuitsAfterFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestClassifier(srv.URL, time.Second, 2)
	for i := 0; i < 5; i++ {
		assert.Equal(t, models.FallbackVerdict(), svc.Classify(context.Background(), models.FeatureVector{}))
	}
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
	assert.Equal(t, "open", svc.Health(context.Background()).Breaker)
}

func TestClassifyCallerCancellationKeepsBreakerClosed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"is_anomaly":1,"anomaly_score":-0.8}`))
	}))
	defer srv.Close()

	svc := newTestClassifier(srv.URL, time.Second, 3)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for i := 0; i < 3; i++ {
		assert.Equal(t, models.FallbackVerdict(), svc.Classify(ctx, models.FeatureVector{}))
	}
	assert.Equal(t, "closed", svc.Health(context.Background()).Breaker)

	verdict := svc.Classify(context.Background(), models.FeatureVector{})
	assert.False(t, verdict.Fallback)
	assert.True(t, verdict.IsAnomalous)
	assert.Equal(t, -0.8, verdict.RawScore)
	assert.Equal(t, 0.8, verdict.Score)
}

func TestClassifyWithoutURL(t *testing.T) {
	svc := newTestClassifier("", time.Second, 3)
	assert.Equal(t, models.FallbackVerdict(), svc.Classify(context.Background(), models.FeatureVector{}))
	assert.False(t, svc.Health(context.Background()).Configured)
}

func TestClassifierHealth(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}))
	defer srv.Close()

	health := newTestClassifier(srv.URL, time.Second, 3).Health(context.Background())
	assert.True(t, health.Configured)
	assert.True(t, health.Reachable)
	assert.Equal(t, "closed", health.Breaker)
}

func TestNormalizeScore(t *testing.T) {
	cases := map[float64]float64{
		-0.25: 0.25,
		0.7:   0.7,
		3:     1,
		-12:   1,
		0:     0,
	}
	for raw, want := range cases {
		assert.Equal(t, want, NormalizeScore(raw), "raw=%v", raw)
	}
}
