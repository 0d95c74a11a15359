package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Grouping strategies for the session finalizer.
const (
	GroupByDevice   = "device"
	GroupByDeviceAP = "device_ap"
)

type Config struct {
	Env       string `validate:"required,oneof=development production test"`
	Port      int    `validate:"min=1,max=65535"`
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Log        LogConfig
	Capture    CaptureConfig
	Classifier ClassifierConfig
	Schedule   ScheduleConfig
	Finalizer  FinalizerConfig
	Live       LiveConfig
	Attendance AttendanceConfig
	Kafka      KafkaConfig
}

type DatabaseConfig struct {
	Host         string `validate:"required"`
	Port         int    `validate:"min=1,max=65535"`
	User         string
	Password     string
	Name         string `validate:"required"`
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string `validate:"omitempty,oneof=json console"`
}

// CaptureConfig describes how raw sightings are accepted and judged.
type CaptureConfig struct {
	DefaultRSSI    int
	DefaultAPID    string
	AllowDefaultAP bool
	RSSIMin        int `validate:"ltfield=RSSIMax"`
	RSSIMax        int
	Timezone       string
	Location       *time.Location `validate:"-"`
}

// ClassifierConfig points at the external anomaly scoring service.
type ClassifierConfig struct {
	URL                string        `validate:"omitempty,url"`
	Timeout            time.Duration `validate:"gt=0"`
	BreakerMaxFailures int           `validate:"min=0"`
	BreakerReset       time.Duration
}

// ScheduleConfig tunes timetable lookups.
type ScheduleConfig struct {
	CacheTTL time.Duration
}

// FinalizerConfig controls the session finalizer.
type FinalizerConfig struct {
	GroupBy    string `validate:"oneof=device device_ap"`
	QueueRetry int    `validate:"min=0"`
	RetryDelay time.Duration
}

// LiveConfig toggles the live dashboard aggregator.
type LiveConfig struct {
	EnabledOnStart bool
}

// AttendanceConfig governs attendance listing and cache behaviour.
type AttendanceConfig struct {
	CacheTTL     time.Duration
	DefaultLimit int `validate:"min=1,max=500"`
}

// KafkaConfig wires the optional sighting consumer and record publisher.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string `validate:"required_if=Enabled true"`
	SightingsTopic  string
	AttendanceTopic string
	GroupID         string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("ENABLE_REDIS"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Capture = CaptureConfig{
		DefaultRSSI:    v.GetInt("CAPTURE_DEFAULT_RSSI"),
		DefaultAPID:    v.GetString("CAPTURE_DEFAULT_AP_ID"),
		AllowDefaultAP: v.GetBool("CAPTURE_ALLOW_DEFAULT_AP"),
		RSSIMin:        v.GetInt("CAPTURE_RSSI_MIN"),
		RSSIMax:        v.GetInt("CAPTURE_RSSI_MAX"),
		Timezone:       v.GetString("CAPTURE_TIMEZONE"),
	}

	cfg.Classifier = ClassifierConfig{
		URL:                strings.TrimRight(v.GetString("CLASSIFIER_URL"), "/"),
		Timeout:            parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 5*time.Second),
		BreakerMaxFailures: v.GetInt("CLASSIFIER_BREAKER_MAX_FAILURES"),
		BreakerReset:       parseDuration(v.GetString("CLASSIFIER_BREAKER_RESET"), 30*time.Second),
	}

	cfg.Schedule = ScheduleConfig{
		CacheTTL: parseDuration(v.GetString("SCHEDULE_CACHE_TTL"), time.Minute),
	}

	cfg.Finalizer = FinalizerConfig{
		GroupBy:    strings.ToLower(v.GetString("FINALIZER_GROUP_BY")),
		QueueRetry: v.GetInt("FINALIZER_QUEUE_RETRIES"),
		RetryDelay: parseDuration(v.GetString("FINALIZER_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Live = LiveConfig{
		EnabledOnStart: v.GetBool("LIVE_ENABLED_ON_START"),
	}

	cfg.Attendance = AttendanceConfig{
		CacheTTL:     parseDuration(v.GetString("ATTENDANCE_CACHE_TTL"), 30*time.Second),
		DefaultLimit: v.GetInt("ATTENDANCE_DEFAULT_LIMIT"),
	}

	cfg.Kafka = KafkaConfig{
		Enabled:         v.GetBool("KAFKA_ENABLED"),
		Brokers:         splitAndTrim(v.GetString("KAFKA_BROKERS")),
		SightingsTopic:  v.GetString("KAFKA_SIGHTINGS_TOPIC"),
		AttendanceTopic: v.GetString("KAFKA_ATTENDANCE_TOPIC"),
		GroupID:         v.GetString("KAFKA_GROUP_ID"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the typed configuration and resolves derived values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	loc, err := time.LoadLocation(c.Capture.Timezone)
	if err != nil {
		return fmt.Errorf("invalid CAPTURE_TIMEZONE %q: %w", c.Capture.Timezone, err)
	}
	c.Capture.Location = loc
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "wifi_presence")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("ENABLE_REDIS", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("CAPTURE_DEFAULT_RSSI", -99)
	v.SetDefault("CAPTURE_DEFAULT_AP_ID", "DefaultAP")
	v.SetDefault("CAPTURE_ALLOW_DEFAULT_AP", false)
	v.SetDefault("CAPTURE_RSSI_MIN", -100)
	v.SetDefault("CAPTURE_RSSI_MAX", -10)
	v.SetDefault("CAPTURE_TIMEZONE", "Local")

	v.SetDefault("CLASSIFIER_URL", "http://localhost:5000")
	v.SetDefault("CLASSIFIER_TIMEOUT", "5s")
	v.SetDefault("CLASSIFIER_BREAKER_MAX_FAILURES", 3)
	v.SetDefault("CLASSIFIER_BREAKER_RESET", "30s")

	v.SetDefault("SCHEDULE_CACHE_TTL", "1m")

	v.SetDefault("FINALIZER_GROUP_BY", GroupByDevice)
	v.SetDefault("FINALIZER_QUEUE_RETRIES", 3)
	v.SetDefault("FINALIZER_RETRY_DELAY", "5s")

	v.SetDefault("LIVE_ENABLED_ON_START", false)

	v.SetDefault("ATTENDANCE_CACHE_TTL", "30s")
	v.SetDefault("ATTENDANCE_DEFAULT_LIMIT", 100)

	v.SetDefault("KAFKA_ENABLED", false)
	v.SetDefault("KAFKA_BROKERS", "")
	v.SetDefault("KAFKA_SIGHTINGS_TOPIC", "wifi.sightings")
	v.SetDefault("KAFKA_ATTENDANCE_TOPIC", "attendance.finalized")
	v.SetDefault("KAFKA_GROUP_ID", "wifi-presence-api")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
