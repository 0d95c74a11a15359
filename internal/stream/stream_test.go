package stream

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

type fakeReader struct {
	mu        sync.Mutex
	messages  []kafka.Message
	committed []int64
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.messages) == 0 {
		return kafka.Message{}, io.EOF
	}
	msg := r.messages[0]
	r.messages = r.messages[1:]
	return msg, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type recorderStub struct {
	requests []dto.RecordSightingRequest
	failOn   string
}

func (s *recorderStub) Record(ctx context.Context, req dto.RecordSightingRequest) (*models.Sighting, error) {
	if req.DeviceID == "" || req.APID == "" {
		return nil, appErrors.ErrInvalidSighting
	}
	if req.DeviceID == s.failOn {
		return nil, errors.New("db down")
	}
	s.requests = append(s.requests, req)
	return &models.Sighting{DeviceID: req.DeviceID}, nil
}

func TestSightingConsumerRun(t *testing.T) {
	reader := &fakeReader{messages: []kafka.Message{
		{Offset: 1, Value: []byte(`{"device_id":"dev","ap_id":"AP-1","rssi":-61,"timestamp":"2024-03-04T08:00:00Z"}`)},
		{Offset: 2, Value: []byte(`not json`)},
		{Offset: 3, Value: []byte(`{"device_id":"","ap_id":"AP-1"}`)},
		{Offset: 4, Value: []byte(`{"device_id":"broken","ap_id":"AP-1"}`)},
	}}
	rec := &recorderStub{failOn: "broken"}
	consumer := newSightingConsumer(ConsumerConfig{Topic: "wifi.sightings", PollTimeout: time.Second}, reader, rec, nil)

	require.NoError(t, consumer.Run(context.Background()))

	require.Len(t, rec.requests, 1)
	assert.Equal(t, "dev", rec.requests[0].DeviceID)
	require.NotNil(t, rec.requests[0].RSSI)
	assert.Equal(t, -61, *rec.requests[0].RSSI)
	assert.Equal(t, time.Date(2024, 3, 4, 8, 0, 0, 0, time.UTC), rec.requests[0].ObservedAt.UTC())
	assert.Equal(t, []int64{1, 2, 3}, reader.committed)
}

func TestSightingConsumerStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	consumer := newSightingConsumer(ConsumerConfig{}, &fakeReader{}, &recorderStub{}, nil)
	assert.ErrorIs(t, consumer.Run(ctx), context.Canceled)
}

func TestNewSightingConsumerValidates(t *testing.T) {
	_, err := NewSightingConsumer(ConsumerConfig{Topic: "t", GroupID: "g"}, &recorderStub{}, nil)
	assert.Error(t, err)
	_, err = NewSightingConsumer(ConsumerConfig{Brokers: []string{"localhost:9092"}, GroupID: "g"}, &recorderStub{}, nil)
	assert.Error(t, err)
}

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error { return nil }

func TestAttendancePublisherPublish(t *testing.T) {
	writer := &fakeWriter{}
	pub := newAttendancePublisher("attendance.finalized", writer, nil)

	err := pub.Publish(context.Background(), []models.AttendanceRecord{
		{ID: "r1", DeviceID: "dev", DeviceHash: "abc", Status: models.AttendanceStatusPresent, AnomalyFlag: true},
	})
	require.NoError(t, err)
	require.Len(t, writer.msgs, 1)
	assert.Equal(t, "abc", string(writer.msgs[0].Key))

	var decoded models.AttendanceRecord
	require.NoError(t, json.Unmarshal(writer.msgs[0].Value, &decoded))
	assert.Equal(t, models.AttendanceStatusFlagged, decoded.Status)
	assert.Equal(t, "flagged", string(writer.msgs[0].Headers[0].Value))

	assert.NoError(t, pub.Publish(context.Background(), nil))
}

func TestAttendancePublisherError(t *testing.T) {
	pub := newAttendancePublisher("attendance.finalized", &fakeWriter{err: errors.New("no leader")}, nil)
	err := pub.Publish(context.Background(), []models.AttendanceRecord{{DeviceHash: "abc"}})
	assert.ErrorContains(t, err, "no leader")
}
