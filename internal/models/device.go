package models

import "time"

// RegisteredDevice links a device identifier to a student identity.
type RegisteredDevice struct {
	DeviceID     string    `db:"device_id" json:"device_id"`
	DeviceHash   string    `db:"device_hash" json:"device_hash"`
	StudentName  *string   `db:"student_name" json:"student_name,omitempty"`
	MatricNumber *string   `db:"matric_number" json:"matric_number,omitempty"`
	ClassName    *string   `db:"class_name" json:"class_name,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// LiveDevice is a best-effort view of a currently seen device.
type LiveDevice struct {
	DeviceID  string    `json:"device_id"`
	APID      string    `json:"ap_id"`
	RSSI      int       `json:"rssi"`
	LastSeen  time.Time `json:"last_seen"`
	FirstSeen time.Time `json:"first_seen"`
}
