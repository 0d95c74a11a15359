package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// DeviceRepository provides the device registry lookups.
type DeviceRepository struct {
	db *sqlx.DB
}

// NewDeviceRepository constructs the repository.
func NewDeviceRepository(db *sqlx.DB) *DeviceRepository {
	return &DeviceRepository{db: db}
}

// FindByDeviceIDs returns registrations for the given identifiers keyed by device id.
func (r *DeviceRepository) FindByDeviceIDs(ctx context.Context, deviceIDs []string) (map[string]models.RegisteredDevice, error) {
	result := make(map[string]models.RegisteredDevice, len(deviceIDs))
	if len(deviceIDs) == 0 {
		return result, nil
	}
	query, args, err := sqlx.In(`SELECT device_id, device_hash, student_name, matric_number, class_name, created_at, updated_at
FROM registered_devices WHERE device_id IN (?)`, deviceIDs)
	if err != nil {
		return nil, fmt.Errorf("build device lookup: %w", err)
	}
	var rows []models.RegisteredDevice
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("lookup registered devices: %w", err)
	}
	for _, row := range rows {
		result[row.DeviceID] = row
	}
	return result, nil
}

// List returns every registered device ordered by device id.
func (r *DeviceRepository) List(ctx context.Context) ([]models.RegisteredDevice, error) {
	var rows []models.RegisteredDevice
	query := `SELECT device_id, device_hash, student_name, matric_number, class_name, created_at, updated_at
FROM registered_devices ORDER BY device_id ASC`
	if err := r.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, fmt.Errorf("list registered devices: %w", err)
	}
	return rows, nil
}

// Upsert registers a device or refreshes its identity fields.
func (r *DeviceRepository) Upsert(ctx context.Context, device *models.RegisteredDevice) error {
	now := time.Now().UTC()
	if device.CreatedAt.IsZero() {
		device.CreatedAt = now
	}
	device.UpdatedAt = now
	query := `INSERT INTO registered_devices (device_id, device_hash, student_name, matric_number, class_name, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (device_id) DO UPDATE SET student_name = EXCLUDED.student_name, matric_number = EXCLUDED.matric_number,
class_name = EXCLUDED.class_name, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, device.DeviceID, device.DeviceHash, device.StudentName, device.MatricNumber, device.ClassName, device.CreatedAt, device.UpdatedAt); err != nil {
		return fmt.Errorf("upsert registered device: %w", err)
	}
	return nil
}
