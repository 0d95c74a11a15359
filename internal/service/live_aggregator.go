package service

import (
	"sort"
	"sync"

	"github.com/noah-isme/wifi-presence-api/internal/models"
)

// LiveAggregator keeps a best-effort, in-memory view of currently seen devices
// for the live dashboard. It is never persisted and not authoritative.
type LiveAggregator struct {
	mu      sync.RWMutex
	active  bool
	devices map[string]*models.LiveDevice
	metrics *MetricsService
}

// NewLiveAggregator constructs the aggregator, optionally already monitoring.
func NewLiveAggregator(active bool, metrics *MetricsService) *LiveAggregator {
	return &LiveAggregator{
		active:  active,
		devices: make(map[string]*models.LiveDevice),
		metrics: metrics,
	}
}

// Start enables live monitoring.
func (a *LiveAggregator) Start() {
	a.mu.Lock()
	a.active = true
	a.mu.Unlock()
}

// Stop disables live monitoring and clears the map.
func (a *LiveAggregator) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.active = false
	a.devices = make(map[string]*models.LiveDevice)
	a.metrics.SetLiveDevices(0)
}

// Active reports whether monitoring is on.
func (a *LiveAggregator) Active() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.active
}

// OnSighting folds one sighting into the map. Events older than the current
// entry only move FirstSeen back.
func (a *LiveAggregator) OnSighting(s models.Sighting) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.active {
		return
	}
	entry, ok := a.devices[s.DeviceID]
	switch {
	case !ok:
		a.devices[s.DeviceID] = &models.LiveDevice{
			DeviceID:  s.DeviceID,
			APID:      s.APID,
			RSSI:      s.RSSI,
			LastSeen:  s.ObservedAt,
			FirstSeen: s.ObservedAt,
		}
	case s.ObservedAt.Before(entry.LastSeen):
		if s.ObservedAt.Before(entry.FirstSeen) {
			entry.FirstSeen = s.ObservedAt
		}
	default:
		entry.APID = s.APID
		entry.RSSI = s.RSSI
		entry.LastSeen = s.ObservedAt
	}
	a.metrics.SetLiveDevices(len(a.devices))
}

// Snapshot returns copies of the current entries, most recently seen first.
func (a *LiveAggregator) Snapshot() []models.LiveDevice {
	a.mu.RLock()
	out := make([]models.LiveDevice, 0, len(a.devices))
	for _, d := range a.devices {
		out = append(out, *d)
	}
	a.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].LastSeen.Equal(out[j].LastSeen) {
			return out[i].LastSeen.After(out[j].LastSeen)
		}
		return out[i].DeviceID < out[j].DeviceID
	})
	return out
}
