// Package server provides the HTTP and WebSocket status surface.
package server

import "time"

const (
	// Per-connection sliding-window rate limit for inbound messages.
	RateLimitMessages = 10
	RateLimitWindow   = time.Second

	// DefaultHistorySeconds bounds /api/events when no range is given.
	DefaultHistorySeconds = 3600
)
