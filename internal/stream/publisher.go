package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// AttendancePublisher writes finalized attendance records to Kafka keyed by
// device hash.
type AttendancePublisher struct {
	topic   string
	writer  messageWriter
	timeout time.Duration
	logger  *zap.Logger
}

// NewAttendancePublisher builds a kafka-go writer for the attendance topic.
func NewAttendancePublisher(brokers []string, topic string, logger *zap.Logger) (*AttendancePublisher, error) {
	if len(brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(topic) == "" {
		return nil, errors.New("attendance topic must not be empty")
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
	return newAttendancePublisher(topic, writer, logger), nil
}

func newAttendancePublisher(topic string, writer messageWriter, logger *zap.Logger) *AttendancePublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendancePublisher{topic: topic, writer: writer, timeout: 10 * time.Second, logger: logger}
}

// Publish writes every record in one batch.
func (p *AttendancePublisher) Publish(ctx context.Context, records []models.AttendanceRecord) error {
	if len(records) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(records))
	for _, r := range records {
		r.Status = r.EffectiveStatus()
		payload, err := json.Marshal(r)
		if err != nil {
			return fmt.Errorf("encode attendance record %s: %w", r.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(r.DeviceHash),
			Value: payload,
			Headers: []kafka.Header{
				{Key: "status", Value: []byte(r.Status)},
			},
		})
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish attendance records to %s: %w", p.topic, err)
	}
	p.logger.Debug("attendance records published", zap.String("topic", p.topic), zap.Int("records", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *AttendancePublisher) Close() error {
	if p == nil || p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
