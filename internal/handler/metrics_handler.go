package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/wifi-presence-api/internal/service"
)

type databasePinger interface {
	PingContext(ctx context.Context) error
}

type classifierProbe interface {
	Health(ctx context.Context) service.ClassifierHealth
}

// MetricsHandler exposes observability endpoints.
type MetricsHandler struct {
	metrics    *service.MetricsService
	db         databasePinger
	classifier classifierProbe
}

// NewMetricsHandler constructs a metrics handler.
func NewMetricsHandler(metrics *service.MetricsService, db databasePinger, classifier classifierProbe) *MetricsHandler {
	return &MetricsHandler{metrics: metrics, db: db, classifier: classifier}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready checks the database. The classifier is reported but never blocks
// readiness since scoring fails open.
func (h *MetricsHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	body := gin.H{"status": "ready"}
	status := http.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(ctx); err != nil {
			status = http.StatusServiceUnavailable
			body["status"] = "unavailable"
			body["database"] = err.Error()
		} else {
			body["database"] = "ok"
		}
	}
	if h.classifier != nil {
		body["classifier"] = h.classifier.Health(ctx)
	}
	c.JSON(status, body)
}
