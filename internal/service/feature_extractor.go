package service

import (
	"math"
	"sort"

	"github.com/noah-isme/wifi-presence-api/internal/models"
	appErrors "github.com/noah-isme/wifi-presence-api/pkg/errors"
)

// ExtractFeatures derives the feature vector for one sighting group. The input
// is sorted by observation time on a copy; ties keep their original order.
func ExtractFeatures(sightings []models.Sighting, rng models.RSSIRange) (models.FeatureVector, error) {
	if len(sightings) == 0 {
		return models.FeatureVector{}, appErrors.ErrEmptySightingGroup
	}

	ordered := make([]models.Sighting, len(sightings))
	copy(ordered, sightings)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ObservedAt.Before(ordered[j].ObservedAt)
	})

	first := ordered[0]
	last := ordered[len(ordered)-1]

	var sum float64
	invalid := 0
	switches := 0
	for i, s := range ordered {
		sum += float64(s.RSSI)
		if !rng.Contains(s.RSSI) {
			invalid++
		}
		if i > 0 && s.APID != ordered[i-1].APID {
			switches++
		}
	}
	n := float64(len(ordered))
	mean := sum / n

	var sq float64
	for _, s := range ordered {
		d := float64(s.RSSI) - mean
		sq += d * d
	}

	return models.FeatureVector{
		DurationTotal:    last.ObservedAt.Sub(first.ObservedAt).Seconds(),
		APSwitches:       switches,
		FragCount:        len(ordered),
		BytesTotal:       0,
		RSSIMean:         mean,
		RSSIStd:          math.Sqrt(sq / n),
		InvalidRSSICount: invalid,
		LoginHour:        first.ObservedAt.Hour(),
		Weekday:          int(first.ObservedAt.Weekday()),
		StartMinuteOfDay: first.ObservedAt.Hour()*60 + first.ObservedAt.Minute(),
		SampleCount:      len(ordered),
	}, nil
}
