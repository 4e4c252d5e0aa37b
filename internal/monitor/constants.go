package monitor

import "time"

const (
	// ReadInterval is the sleep between device reads; it also bounds
	// worst-case shutdown latency of the sampling loop.
	ReadInterval = 100 * time.Millisecond

	// MaxHistoryEvents bounds the in-memory event history.
	MaxHistoryEvents = 100

	// Broadcast channel depths; sends drop when full.
	SampleBuffer = 64
	EventBuffer  = 16
)
