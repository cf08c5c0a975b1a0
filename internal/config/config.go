// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New(ctx) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"context"
	"runtime"
	"time"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// CameraIDs lists the camera identifiers allowed to post detections.
	CameraIDs []string `koanf:"camera_ids"`

	// CameraRatePerSecond and CameraRateBurst bound per-camera ingest.
	// Zero disables rate limiting.
	CameraRatePerSecond float64 `koanf:"camera_rate_per_second"`
	CameraRateBurst     int     `koanf:"camera_rate_burst"`

	// SignatureDimension is the expected embedding length.
	SignatureDimension int `koanf:"signature_dimension"`

	// AutoThreshold is the confidence above which transitions auto-apply.
	AutoThreshold float64 `koanf:"auto_threshold"`

	// ReviewThreshold is the confidence below which detections are ignored.
	ReviewThreshold float64 `koanf:"review_threshold"`

	// DuplicateWindow suppresses repeat detections of the same person.
	DuplicateWindow time.Duration `koanf:"duplicate_window"`

	// MorningEnd and EveningStart are clock offsets from midnight UTC that
	// bound the check-in and check-out windows.
	MorningEnd   time.Duration `koanf:"morning_end"`
	EveningStart time.Duration `koanf:"evening_start"`

	// ShiftStart, ShiftEnd, and GracePeriod drive late and early-leave marking.
	ShiftStart  time.Duration `koanf:"shift_start"`
	ShiftEnd    time.Duration `koanf:"shift_end"`
	GracePeriod time.Duration `koanf:"grace_period"`

	// DetectionQueueSize bounds the in-memory detection queue.
	DetectionQueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of processing workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the detection-id deduplication cache.
	DedupeSize int `koanf:"dedupe_size"`

	// ShardCount configures the number of shards in the attendance store.
	ShardCount int `koanf:"shard_count"`

	// DetectionTTL and StatusTTL bound live cache entry lifetimes.
	DetectionTTL time.Duration `koanf:"detection_ttl"`
	StatusTTL    time.Duration `koanf:"status_ttl"`

	// SubscriberBuffer sets the per-subscriber event buffer size.
	SubscriberBuffer int `koanf:"subscriber_buffer"`

	// PingTimeout reaps live subscribers that stop sending keep-alives.
	PingTimeout time.Duration `koanf:"ping_timeout"`

	// HREndpoint is the external attendance sink. Empty disables sync.
	HREndpoint string `koanf:"hr_endpoint"`

	// HRToken is the bearer credential for the HR endpoint.
	HRToken string `koanf:"hr_token"`

	// SyncMaxAttempts bounds retries before a record is dead-lettered.
	SyncMaxAttempts int `koanf:"sync_max_attempts"`

	// SyncInitialDelay and SyncMaxDelay shape the retry backoff.
	SyncInitialDelay time.Duration `koanf:"sync_initial_delay"`
	SyncMaxDelay     time.Duration `koanf:"sync_max_delay"`

	// SweepTime is the clock offset from midnight UTC at which the previous
	// day's pending records are finalized as absent.
	SweepTime time.Duration `koanf:"sweep_time"`
}

// New creates a Config with defaults. Context is accepted first to satisfy
// the project-wide convention; it is reserved for future use.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		CameraIDs:           []string{"cam-entrance", "cam-lobby"},
		CameraRatePerSecond: 20,
		CameraRateBurst:     40,
		SignatureDimension:  128,
		AutoThreshold:       0.7,
		ReviewThreshold:     0.6,
		DuplicateWindow:     5 * time.Minute,
		MorningEnd:          12 * time.Hour,
		EveningStart:        16 * time.Hour,
		ShiftStart:          9 * time.Hour,
		ShiftEnd:            17 * time.Hour,
		GracePeriod:         10 * time.Minute,
		DetectionQueueSize:  100_000,
		WorkerCount:         runtime.NumCPU() * 4,
		DedupeSize:          500_000,
		ShardCount:          8,
		DetectionTTL:        3 * time.Second,
		StatusTTL:           30 * time.Second,
		SubscriberBuffer:    64,
		PingTimeout:         60 * time.Second,
		SyncMaxAttempts:     5,
		SyncInitialDelay:    30 * time.Second,
		SyncMaxDelay:        30 * time.Minute,
		SweepTime:           1 * time.Hour,
	}
}
