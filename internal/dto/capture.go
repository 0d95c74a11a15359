package dto

import "time"

// RecordSightingRequest is one raw sighting reported by a capture source.
type RecordSightingRequest struct {
	DeviceID   string     `json:"device_id" validate:"max=128"`
	APID       string     `json:"ap_id" validate:"max=128"`
	RSSI       *int       `json:"rssi,omitempty"`
	ObservedAt *time.Time `json:"timestamp,omitempty"`
}

// RecordSightingResponse acknowledges an accepted sighting.
type RecordSightingResponse struct {
	Accepted bool   `json:"accepted"`
	DeviceID string `json:"device_id"`
	ID       string `json:"id"`
}

// FinalizeJobResponse is returned when finalization is queued.
type FinalizeJobResponse struct {
	JobID string `json:"job_id"`
	State string `json:"state"`
}

// LiveStateResponse reports the live monitoring toggle.
type LiveStateResponse struct {
	Active bool `json:"active"`
}

// ClassifierTestRequest carries a caller supplied feature vector.
type ClassifierTestRequest struct {
	DurationTotal    float64 `json:"duration_total" validate:"gte=0"`
	APSwitches       int     `json:"ap_switches" validate:"gte=0"`
	FragCount        int     `json:"frag_count" validate:"gte=0"`
	BytesTotal       int64   `json:"bytes_total" validate:"gte=0"`
	RSSIMean         float64 `json:"rssi_mean"`
	RSSIStd          float64 `json:"rssi_std" validate:"gte=0"`
	InvalidRSSICount int     `json:"invalid_rssi_count" validate:"gte=0"`
	LoginHour        int     `json:"login_hour" validate:"gte=0,lte=23"`
	Weekday          int     `json:"weekday" validate:"gte=0,lte=6"`
	StartMinuteOfDay int     `json:"start_minute_of_day" validate:"gte=0,lt=1440"`
}
