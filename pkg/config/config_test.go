package config

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Env:      EnvDevelopment,
		Port:     8080,
		Database: DatabaseConfig{Host: "localhost", Port: 5432, Name: "wifi_presence"},
		Capture:  CaptureConfig{RSSIMin: -100, RSSIMax: -10, Timezone: "UTC"},
		Classifier: ClassifierConfig{
			URL:     "http://localhost:5000",
			Timeout: 5 * time.Second,
		},
		Finalizer:  FinalizerConfig{GroupBy: GroupByDevice},
		Attendance: AttendanceConfig{DefaultLimit: 100},
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CAPTURE_TIMEZONE", "UTC")
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/api/v1", cfg.APIPrefix)
	assert.Equal(t, -99, cfg.Capture.DefaultRSSI)
	assert.Equal(t, 5*time.Second, cfg.Classifier.Timeout)
	assert.Equal(t, GroupByDevice, cfg.Finalizer.GroupBy)
	assert.Equal(t, "UTC", cfg.Capture.Location.String())
	assert.False(t, cfg.Kafka.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("CAPTURE_TIMEZONE", "Asia/Jakarta")
	t.Setenv("FINALIZER_GROUP_BY", "DEVICE_AP")
	t.Setenv("CLASSIFIER_URL", "http://scorer:5000/")
	t.Setenv("CLASSIFIER_TIMEOUT", "750ms")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, GroupByDeviceAP, cfg.Finalizer.GroupBy)
	assert.Equal(t, "http://scorer:5000", cfg.Classifier.URL)
	assert.Equal(t, 750*time.Millisecond, cfg.Classifier.Timeout)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "Asia/Jakarta", cfg.Capture.Location.String())
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(c *Config){
		"group by":       func(c *Config) { c.Finalizer.GroupBy = "student" },
		"rssi bounds":    func(c *Config) { c.Capture.RSSIMin = -5 },
		"timezone":       func(c *Config) { c.Capture.Timezone = "Mars/Olympus" },
		"kafka brokers":  func(c *Config) { c.Kafka.Enabled = true },
		"attendance cap": func(c *Config) { c.Attendance.DefaultLimit = 1000 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := validConfig()
			mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateResolvesLocation(t *testing.T) {
	cfg := validConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, time.UTC, cfg.Capture.Location)
}
