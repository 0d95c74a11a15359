package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// insertChunkSize keeps multi-row inserts well below the postgres parameter cap.
const insertChunkSize = 500

const attendanceColumns = `id, device_id, device_hash, ap_id, avg_rssi, rssi_std, duration_seconds, ap_switches,
sample_count, invalid_rssi_count, first_seen, last_seen, anomaly_flag, anomaly_score, anomaly_raw_score,
classifier_fallback, status, session_duration, student_name, matric_number, class_name, schedule_id,
attendance_duration_minutes, is_absent, created_at`

const insertAttendanceQuery = `INSERT INTO attendance_records (` + attendanceColumns + `)
VALUES (:id, :device_id, :device_hash, :ap_id, :avg_rssi, :rssi_std, :duration_seconds, :ap_switches,
:sample_count, :invalid_rssi_count, :first_seen, :last_seen, :anomaly_flag, :anomaly_score, :anomaly_raw_score,
:classifier_fallback, :status, :session_duration, :student_name, :matric_number, :class_name, :schedule_id,
:attendance_duration_minutes, :is_absent, :created_at)`

// AttendanceRepository handles persistence for finalized attendance records.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// Commit inserts the finalized records and deletes exactly the consumed
// sightings in one transaction. Sightings ingested after the read are untouched,
// and a failure leaves the pending store intact for a retry.
func (r *AttendanceRepository) Commit(ctx context.Context, records []models.AttendanceRecord, consumedIDs []string) (int64, error) {
	if len(records) == 0 && len(consumedIDs) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin attendance commit: %w", err)
	}
	commit := false
	defer func() {
		if !commit {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	for i := range records {
		if records[i].ID == "" {
			records[i].ID = uuid.NewString()
		}
		if records[i].CreatedAt.IsZero() {
			records[i].CreatedAt = now
		}
	}
	for start := 0; start < len(records); start += insertChunkSize {
		end := start + insertChunkSize
		if end > len(records) {
			end = len(records)
		}
		if _, err := tx.NamedExecContext(ctx, insertAttendanceQuery, records[start:end]); err != nil {
			return 0, fmt.Errorf("insert attendance records: %w", err)
		}
	}

	var deleted int64
	if len(consumedIDs) > 0 {
		res, err := tx.ExecContext(ctx, `DELETE FROM pending_sightings WHERE id = ANY($1)`, pq.Array(consumedIDs))
		if err != nil {
			return 0, fmt.Errorf("delete consumed sightings: %w", err)
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("delete consumed sightings: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit attendance records: %w", err)
	}
	commit = true
	return deleted, nil
}

// List returns the newest attendance records matching the filter.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil && filter.Status.Valid() {
		if *filter.Status == models.AttendanceStatusFlagged {
			where = append(where, fmt.Sprintf("(status = $%d OR anomaly_flag)", len(args)+1))
		} else {
			where = append(where, fmt.Sprintf("status = $%d AND NOT anomaly_flag", len(args)+1))
		}
		args = append(args, *filter.Status)
	}
	if filter.DeviceID != "" {
		where = append(where, fmt.Sprintf("device_id = $%d", len(args)+1))
		args = append(args, filter.DeviceID)
	}
	if filter.From != nil {
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)+1))
		args = append(args, *filter.From)
	}
	if filter.To != nil {
		where = append(where, fmt.Sprintf("created_at <= $%d", len(args)+1))
		args = append(args, *filter.To)
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := fmt.Sprintf(`SELECT %s FROM attendance_records WHERE %s ORDER BY created_at DESC LIMIT %d`,
		attendanceColumns, strings.Join(where, " AND "), limit)
	var rows []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return rows, nil
}
