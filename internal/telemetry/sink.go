// Package telemetry writes noise measurements to InfluxDB with a
// failure-retry queue.
package telemetry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/noisebuster/platform/internal/config"
)

// PointWriter is the slice of the InfluxDB blocking write API the sink uses.
type PointWriter interface {
	WritePoint(ctx context.Context, point ...*write.Point) error
}

// retryItem is one failed write awaiting redelivery.
type retryItem struct {
	bucket string
	point  *write.Point
}

// Sink writes window and threshold records. Writes are best-effort and
// synchronous: a failed write is queued, never surfaced to the caller.
// A disabled sink turns every method into a no-op.
type Sink struct {
	enabled         bool
	client          influxdb2.Client
	writers         map[string]PointWriter
	realtimeBucket  string
	thresholdBucket string

	mu       sync.Mutex
	queue    []retryItem // FIFO, producer: write path, consumer: retry tick
	maxQueue int
}

// New creates a sink for the validated configuration. A disabled
// configuration yields a disabled sink.
func New(cfg config.InfluxDB) *Sink {
	if !cfg.Enabled {
		return &Sink{}
	}

	client := influxdb2.NewClient(cfg.URL(), cfg.Token)
	writers := map[string]PointWriter{
		cfg.RealtimeBucket: client.WriteAPIBlocking(cfg.Org, cfg.RealtimeBucket),
		cfg.Bucket:         client.WriteAPIBlocking(cfg.Org, cfg.Bucket),
	}
	return &Sink{
		enabled:         true,
		client:          client,
		writers:         writers,
		realtimeBucket:  cfg.RealtimeBucket,
		thresholdBucket: cfg.Bucket,
		maxQueue:        MaxRetryQueue,
	}
}

// NewWithWriters wires custom writers, used by tests.
func NewWithWriters(realtimeBucket, thresholdBucket string, writers map[string]PointWriter) *Sink {
	return &Sink{
		enabled:         true,
		writers:         writers,
		realtimeBucket:  realtimeBucket,
		thresholdBucket: thresholdBucket,
		maxQueue:        MaxRetryQueue,
	}
}

// Enabled reports whether the sink performs writes.
func (s *Sink) Enabled() bool { return s.enabled }

// WriteRealtime records the window peak, written once per window.
func (s *Sink) WriteRealtime(ctx context.Context, level float64, ts time.Time) {
	s.write(ctx, s.realtimeBucket, level, ts)
}

// WriteThreshold records a threshold-crossing noise event.
func (s *Sink) WriteThreshold(ctx context.Context, level float64, ts time.Time) {
	s.write(ctx, s.thresholdBucket, level, ts)
}

func (s *Sink) write(ctx context.Context, bucket string, level float64, ts time.Time) {
	if !s.enabled {
		return
	}

	p := newPoint(level, ts)
	if err := s.writers[bucket].WritePoint(ctx, p); err != nil {
		slog.Error("failed to write to InfluxDB, queueing", "bucket", bucket, "error", err)
		s.enqueue(retryItem{bucket: bucket, point: p})
		return
	}
	slog.Debug("noise level written", "bucket", bucket, "db", level)
}

func newPoint(level float64, ts time.Time) *write.Point {
	return influxdb2.NewPoint(
		Measurement,
		map[string]string{"location": LocationTag},
		map[string]interface{}{"noise_level": level},
		ts.UTC().Truncate(time.Second),
	)
}

func (s *Sink) enqueue(item retryItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Bounded queue: a sustained outage drops the oldest record rather
	// than growing without limit.
	if len(s.queue) >= s.maxQueue {
		dropped := s.queue[0]
		s.queue = s.queue[1:]
		slog.Warn("retry queue full, dropping oldest record", "bucket", dropped.bucket, "size", s.maxQueue)
	}
	s.queue = append(s.queue, item)
}

// DrainRetries redelivers queued writes one at a time. The first failure
// re-enqueues the failed item at the tail and stops the drain for this tick;
// items behind it wait for the next tick. This bounds a retry storm to one
// failing call per tick at the cost of head-of-line blocking.
func (s *Sink) DrainRetries(ctx context.Context) {
	if !s.enabled {
		return
	}

	for {
		s.mu.Lock()
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		item := s.queue[0]
		s.queue = s.queue[1:]
		s.mu.Unlock()

		if err := s.writers[item.bucket].WritePoint(ctx, item.point); err != nil {
			slog.Error("failed to write to InfluxDB on retry, re-queueing", "bucket", item.bucket, "error", err)
			s.enqueue(item)
			return
		}
		slog.Info("retried write to InfluxDB successfully", "bucket", item.bucket)
	}
}

// QueueLen returns the current retry queue depth.
func (s *Sink) QueueLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Run drives the retry drain on a fixed tick until ctx is cancelled.
func (s *Sink) Run(ctx context.Context) {
	if !s.enabled {
		return
	}

	ticker := time.NewTicker(RetryInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.DrainRetries(ctx)
		}
	}
}

// Close releases the underlying client.
func (s *Sink) Close() {
	if s.client != nil {
		s.client.Close()
	}
}
