package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/noah-isme/wifi-presence-api/internal/dto"
	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

// ConsumerConfig configures the sighting consumer.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	PollTimeout time.Duration
}

type messageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type sightingRecorder interface {
	Record(ctx context.Context, req dto.RecordSightingRequest) (*models.Sighting, error)
}

// SightingConsumer feeds sightings published by capture sources into ingest.
type SightingConsumer struct {
	cfg    ConsumerConfig
	reader messageReader
	ingest sightingRecorder
	logger *zap.Logger
}

// NewSightingConsumer builds a kafka-go reader for the sightings topic.
func NewSightingConsumer(cfg ConsumerConfig, ingest sightingRecorder, logger *zap.Logger) (*SightingConsumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("at least one broker is required")
	}
	if strings.TrimSpace(cfg.Topic) == "" {
		return nil, errors.New("sightings topic must not be empty")
	}
	if strings.TrimSpace(cfg.GroupID) == "" {
		return nil, errors.New("consumer group must not be empty")
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		Topic:       cfg.Topic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return newSightingConsumer(cfg, reader, ingest, logger), nil
}

func newSightingConsumer(cfg ConsumerConfig, reader messageReader, ingest sightingRecorder, logger *zap.Logger) *SightingConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 5 * time.Second
	}
	return &SightingConsumer{cfg: cfg, reader: reader, ingest: ingest, logger: logger}
}

// Run consumes until ctx is cancelled or the reader is closed. Malformed
// messages are logged and committed; storage failures are not committed so the
// message is redelivered after a rebalance or restart.
func (c *SightingConsumer) Run(ctx context.Context) error {
	c.logger.Info("sighting consumer started",
		zap.String("topic", c.cfg.Topic),
		zap.String("group", c.cfg.GroupID),
		zap.Strings("brokers", c.cfg.Brokers),
	)
	defer c.logger.Info("sighting consumer stopped")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		fetchCtx, cancel := context.WithTimeout(ctx, c.cfg.PollTimeout)
		msg, err := c.reader.FetchMessage(fetchCtx)
		cancel()
		if err != nil {
			switch {
			case errors.Is(err, context.DeadlineExceeded):
				continue
			case errors.Is(err, context.Canceled):
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			case errors.Is(err, io.EOF), errors.Is(err, io.ErrClosedPipe), errors.Is(err, kafka.ErrGroupClosed):
				return nil
			}
			c.logger.Error("sighting fetch failed", zap.Error(err))
			continue
		}

		if err := c.handle(ctx, msg); err != nil {
			c.logger.Error("sighting not stored, leaving uncommitted", zap.Int64("offset", msg.Offset), zap.Error(err))
			continue
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("sighting commit failed", zap.Int64("offset", msg.Offset), zap.Error(err))
		}
	}
}

// Close shuts down the reader.
func (c *SightingConsumer) Close() error {
	if c == nil || c.reader == nil {
		return nil
	}
	return c.reader.Close()
}

func (c *SightingConsumer) handle(ctx context.Context, msg kafka.Message) error {
	req, err := decodeSighting(msg.Value)
	if err != nil {
		c.logger.Warn("dropping malformed sighting", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if _, err := c.ingest.Record(ctx, req); err != nil {
		if errors.Is(err, appErrors.ErrInvalidSighting) {
			c.logger.Warn("dropping invalid sighting", zap.Int64("offset", msg.Offset), zap.Error(err))
			return nil
		}
		return err
	}
	return nil
}

func decodeSighting(raw []byte) (dto.RecordSightingRequest, error) {
	var req dto.RecordSightingRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return req, fmt.Errorf("decode sighting: %w", err)
	}
	return req, nil
}
