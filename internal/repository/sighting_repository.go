package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// SightingRepository persists raw sightings in the pending store.
type SightingRepository struct {
	db *sqlx.DB
}

// NewSightingRepository constructs the repository.
func NewSightingRepository(db *sqlx.DB) *SightingRepository {
	return &SightingRepository{db: db}
}

// Insert appends one sighting. It is a single statement so concurrent capture
// sources never race on shared rows.
func (r *SightingRepository) Insert(ctx context.Context, sighting *models.Sighting) error {
	if sighting.ID == "" {
		sighting.ID = uuid.NewString()
	}
	if sighting.CreatedAt.IsZero() {
		sighting.CreatedAt = time.Now().UTC()
	}
	query := `INSERT INTO pending_sightings (id, device_id, ap_id, rssi, observed_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(ctx, query, sighting.ID, sighting.DeviceID, sighting.APID, sighting.RSSI, sighting.ObservedAt, sighting.CreatedAt); err != nil {
		return fmt.Errorf("insert pending sighting: %w", err)
	}
	return nil
}

// ListPending returns every pending sighting ordered by observation time, with
// insertion order breaking ties.
func (r *SightingRepository) ListPending(ctx context.Context) ([]models.Sighting, error) {
	query := `SELECT id, seq, device_id, ap_id, rssi, observed_at, created_at
FROM pending_sightings
ORDER BY observed_at ASC, seq ASC`
	var rows []models.Sighting
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list pending sightings: %w", err)
	}
	return rows, nil
}

// CountPending returns the size of the pending store.
func (r *SightingRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM pending_sightings`); err != nil {
		return 0, fmt.Errorf("count pending sightings: %w", err)
	}
	return total, nil
}
