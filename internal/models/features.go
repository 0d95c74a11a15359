package models

// FeatureVector is derived per sighting group and never persisted. JSON tags
// match the scoring service's request contract.
type FeatureVector struct {
	DurationTotal    float64 `json:"duration_total"`
	APSwitches       int     `json:"ap_switches"`
	FragCount        int     `json:"frag_count"`
	BytesTotal       int64   `json:"bytes_total"`
	RSSIMean         float64 `json:"rssi_mean"`
	RSSIStd          float64 `json:"rssi_std"`
	InvalidRSSICount int     `json:"invalid_rssi_count"`
	LoginHour        int     `json:"login_hour"`
	Weekday          int     `json:"weekday"`
	StartMinuteOfDay int     `json:"start_minute_of_day"`
	// SampleCount stands in for FragCount until real fragment counts are captured.
	SampleCount int `json:"-"`
}

// AnomalyVerdict is the normalised classifier output.
type AnomalyVerdict struct {
	IsAnomalous bool    `json:"is_anomalous"`
	Score       float64 `json:"score"`
	RawScore    float64 `json:"raw_score"`
	// Fallback is true when the scorer could not be consulted.
	Fallback bool `json:"fallback"`
}

// FallbackVerdict is used whenever the scoring service is unavailable.
func FallbackVerdict() AnomalyVerdict {
	return AnomalyVerdict{IsAnomalous: false, Score: 0.5, Fallback: true}
}
