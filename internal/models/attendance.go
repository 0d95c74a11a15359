package models

import (
	"strings"
	"time"
)

// AttendanceStatus represents the status for attendance records.
type AttendanceStatus string

const (
	AttendanceStatusPresent    AttendanceStatus = "present"
	AttendanceStatusAbsent     AttendanceStatus = "absent"
	AttendanceStatusFlagged    AttendanceStatus = "flagged"
	AttendanceStatusSuspicious AttendanceStatus = "suspicious"
)

// Valid returns true when the status is a supported value.
func (s AttendanceStatus) Valid() bool {
	switch s {
	case AttendanceStatusPresent, AttendanceStatusAbsent, AttendanceStatusFlagged, AttendanceStatusSuspicious:
		return true
	default:
		return false
	}
}

// ParseAttendanceStatus normalises user input into a status.
func ParseAttendanceStatus(raw string) (AttendanceStatus, bool) {
	status := AttendanceStatus(strings.ToLower(strings.TrimSpace(raw)))
	return status, status.Valid()
}

// AttendanceRecord is the finalized, persisted output for one session.
type AttendanceRecord struct {
	ID                        string           `db:"id" json:"id"`
	DeviceID                  string           `db:"device_id" json:"device_id"`
	DeviceHash                string           `db:"device_hash" json:"device_hash"`
	APID                      string           `db:"ap_id" json:"ap_id"`
	AvgRSSI                   float64          `db:"avg_rssi" json:"avg_rssi"`
	RSSIStd                   float64          `db:"rssi_std" json:"rssi_std"`
	DurationSeconds           int              `db:"duration_seconds" json:"duration_seconds"`
	APSwitches                int              `db:"ap_switches" json:"ap_switches"`
	SampleCount               int              `db:"sample_count" json:"sample_count"`
	InvalidRSSICount          int              `db:"invalid_rssi_count" json:"invalid_rssi_count"`
	FirstSeen                 time.Time        `db:"first_seen" json:"first_seen"`
	LastSeen                  time.Time        `db:"last_seen" json:"last_seen"`
	AnomalyFlag               bool             `db:"anomaly_flag" json:"anomaly_flag"`
	AnomalyScore              float64          `db:"anomaly_score" json:"anomaly_score"`
	AnomalyRawScore           float64          `db:"anomaly_raw_score" json:"anomaly_raw_score"`
	ClassifierFallback        bool             `db:"classifier_fallback" json:"classifier_fallback"`
	Status                    AttendanceStatus `db:"status" json:"status"`
	SessionDuration           string           `db:"session_duration" json:"session_duration"`
	StudentName               *string          `db:"student_name" json:"student_name,omitempty"`
	MatricNumber              *string          `db:"matric_number" json:"matric_number,omitempty"`
	ClassName                 *string          `db:"class_name" json:"class_name,omitempty"`
	ScheduleID                *string          `db:"schedule_id" json:"schedule_id,omitempty"`
	AttendanceDurationMinutes int              `db:"attendance_duration_minutes" json:"attendance_duration_minutes"`
	IsAbsent                  bool             `db:"is_absent" json:"is_absent"`
	CreatedAt                 time.Time        `db:"created_at" json:"created_at"`
}

// EffectiveStatus keeps reports consistent with the anomaly flag even for rows
// edited outside the pipeline.
func (r AttendanceRecord) EffectiveStatus() AttendanceStatus {
	if r.AnomalyFlag {
		return AttendanceStatusFlagged
	}
	if r.Status == "" {
		return AttendanceStatusPresent
	}
	return r.Status
}

// AttendanceFilter scopes attendance listings.
type AttendanceFilter struct {
	Status   *AttendanceStatus
	DeviceID string
	From     *time.Time
	To       *time.Time
	Limit    int
}

// FinalizeResult summarises one finalization run.
type FinalizeResult struct {
	RecordsEmitted    int    `json:"records_emitted"`
	SightingsConsumed int    `json:"sightings_consumed"`
	Message           string `json:"message"`
}
