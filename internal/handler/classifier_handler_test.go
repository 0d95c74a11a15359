package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

type classifierMock struct {
	verdict  models.AnomalyVerdict
	features models.FeatureVector
	called   bool
}

func (m *classifierMock) Classify(ctx context.Context, features models.FeatureVector) models.AnomalyVerdict {
	m.called = true
	m.features = features
	return m.verdict
}

func TestClassifierHandlerTest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &classifierMock{verdict: models.AnomalyVerdict{IsAnomalous: true, Score: 1, RawScore: 1}}
	handler := NewClassifierHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/classifier/test",
		`{"duration_total":3600,"ap_switches":2,"frag_count":40,"rssi_mean":-55.5,"rssi_std":3.2,"login_hour":8,"weekday":1,"start_minute_of_day":480}`)

	handler.Test(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.True(t, mock.called)
	assert.Equal(t, 40, mock.features.SampleCount)
	assert.Equal(t, 480, mock.features.StartMinuteOfDay)

	var verdict models.AnomalyVerdict
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &verdict))
	assert.True(t, verdict.IsAnomalous)
}

func TestClassifierHandlerRejectsOutOfRangeFeatures(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mock := &classifierMock{}
	handler := NewClassifierHandler(mock, nil)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = jsonRequest(http.MethodPost, "/classifier/test", `{"duration_total":10,"login_hour":27}`)

	handler.Test(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mock.called)
}
