package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// ScheduleRepository reads the class timetable.
type ScheduleRepository struct {
	db *sqlx.DB
}

// NewScheduleRepository creates a new schedule repository.
func NewScheduleRepository(db *sqlx.DB) *ScheduleRepository {
	return &ScheduleRepository{db: db}
}

// ActiveAt returns active windows on dayOfWeek (0=Sunday) that contain
// clock ("15:04:05"). Ordering is fixed so callers can rely on "first".
func (r *ScheduleRepository) ActiveAt(ctx context.Context, dayOfWeek int, clock string) ([]models.ScheduleWindow, error) {
	// pq decodes bare TIME as a timestamp on 0000-01-01; select the clock text.
	query := `SELECT id, day_of_week, to_char(time_start, 'HH24:MI:SS') AS time_start, to_char(time_end, 'HH24:MI:SS') AS time_end,
duration_minutes, subject_name, class_name, is_active, created_at
FROM schedules
WHERE day_of_week = $1 AND is_active = TRUE AND time_start <= $2::time AND time_end >= $2::time
ORDER BY time_start ASC, time_end ASC, id ASC`
	var rows []models.ScheduleWindow
	if err := r.db.SelectContext(ctx, &rows, query, dayOfWeek, clock); err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	return rows, nil
}
