package telemetry

import "time"

const (
	// Measurement and tag names other dashboards depend on.
	Measurement = "noise_buster_events"
	LocationTag = "noise_buster"

	// RetryInterval is the drain tick for queued writes.
	RetryInterval = time.Minute

	// MaxRetryQueue bounds queue growth during a sustained outage;
	// the oldest record is dropped once full.
	MaxRetryQueue = 1024
)
