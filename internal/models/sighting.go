package models

import "time"

// Sighting is one observed radio contact between a device and an access point.
// Rows are append-only: they are inserted by capture ingest and removed only by
// the finalizer that consumed them.
type Sighting struct {
	ID         string    `db:"id" json:"id"`
	Seq        int64     `db:"seq" json:"-"`
	DeviceID   string    `db:"device_id" json:"device_id"`
	APID       string    `db:"ap_id" json:"ap_id"`
	RSSI       int       `db:"rssi" json:"rssi"`
	ObservedAt time.Time `db:"observed_at" json:"observed_at"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// RSSIRange bounds plausible signal strength readings in dBm (inclusive).
type RSSIRange struct {
	Min int
	Max int
}

// DefaultRSSIRange matches the capture hardware's usable range.
var DefaultRSSIRange = RSSIRange{Min: -100, Max: -10}

// Contains reports whether rssi is a plausible reading.
func (r RSSIRange) Contains(rssi int) bool {
	return rssi >= r.Min && rssi <= r.Max
}

// CaptureStatus summarises the pending sighting store.
type CaptureStatus struct {
	Running         bool `json:"running"`
	PendingCaptures int  `json:"pending_captures"`
	LiveMonitoring  bool `json:"live_monitoring"`
}
