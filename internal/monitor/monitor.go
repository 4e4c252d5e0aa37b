// Package monitor runs the sampling loop and threshold event detection.
package monitor

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/noisebuster/platform/internal/config"
	"github.com/noisebuster/platform/internal/meter"
)

// WindowSample is the peak level observed over one sampling window.
type WindowSample struct {
	End  time.Time `json:"end"`
	Peak float64   `json:"peak"`
}

// NoiseEvent is a threshold crossing, emitted once per rising edge.
type NoiseEvent struct {
	Time  time.Time `json:"time"`
	Level float64   `json:"level"`
}

// TelemetrySink receives window and event measurements.
type TelemetrySink interface {
	WriteRealtime(ctx context.Context, level float64, ts time.Time)
	WriteThreshold(ctx context.Context, level float64, ts time.Time)
}

// RecordingTrigger starts one evidence recording per event.
type RecordingTrigger interface {
	Trigger(ts time.Time, level float64) bool
}

// Monitor polls the meter, tracks the window peak, and fans rising-edge
// events out to the telemetry sink and the recorder. One goroutine runs the
// loop; it is the only writer of the detector state.
type Monitor struct {
	rdr      meter.Reader
	sink     TelemetrySink
	recorder RecordingTrigger
	detector *Detector
	history  *History

	window       time.Duration
	readInterval time.Duration

	samplesCh chan WindowSample
	eventsCh  chan NoiseEvent
}

// New creates a monitor for the configured device. recorder may be nil when
// video is disabled.
func New(cfg config.Device, rdr meter.Reader, sink TelemetrySink, recorder RecordingTrigger) *Monitor {
	return &Monitor{
		rdr:          rdr,
		sink:         sink,
		recorder:     recorder,
		detector:     NewDetector(cfg.MinimumNoiseLevel),
		history:      NewHistory(MaxHistoryEvents),
		window:       time.Duration(cfg.TimeWindowDuration) * time.Second,
		readInterval: ReadInterval,
		samplesCh:    make(chan WindowSample, SampleBuffer),
		eventsCh:     make(chan NoiseEvent, EventBuffer),
	}
}

// Samples returns the channel of per-window samples (drops when full).
func (m *Monitor) Samples() <-chan WindowSample { return m.samplesCh }

// Events returns the channel of noise events (drops when full).
func (m *Monitor) Events() <-chan NoiseEvent { return m.eventsCh }

// History returns the recent-event store.
func (m *Monitor) History() *History { return m.history }

// Minimum returns the configured event threshold.
func (m *Monitor) Minimum() float64 { return m.detector.minimum }

// Run executes the sampling loop until ctx is cancelled. Per-read errors are
// logged and discarded; shutdown latency is bounded by the read interval.
func (m *Monitor) Run(ctx context.Context) {
	slog.Info("noise monitoring started", "window", m.window, "minimum_db", m.detector.minimum)

	windowStart := time.Now()
	var peak float64

	for {
		now := time.Now()
		if now.Sub(windowStart) >= m.window {
			m.closeWindow(ctx, now, peak)
			windowStart = now
			peak = 0
		}

		level, err := m.rdr.ReadLevel(ctx)
		switch {
		case ctx.Err() != nil:
			slog.Info("noise monitoring stopped")
			return
		case err != nil:
			slog.Error("unexpected error reading from device", "error", err)
		case level > peak:
			peak = level
		}

		select {
		case <-ctx.Done():
			slog.Info("noise monitoring stopped")
			return
		case <-time.After(m.readInterval):
		}
	}
}

// closeWindow publishes the finished window. The realtime write happens
// before the threshold check is evaluated.
func (m *Monitor) closeWindow(ctx context.Context, ts time.Time, peak float64) {
	peak = round1(peak)
	slog.Info("time window elapsed", "peak_db", peak)

	m.sink.WriteRealtime(ctx, peak, ts)
	m.emitSample(WindowSample{End: ts, Peak: peak})

	if !m.detector.Observe(peak) {
		return
	}

	ev := NoiseEvent{Time: ts, Level: peak}
	slog.Info("noise level exceeded threshold", "db", peak)

	m.sink.WriteThreshold(ctx, peak, ts)
	if m.recorder != nil {
		if m.recorder.Trigger(ts, peak) {
			slog.Info("event recording started, pre/post window capture in progress")
		} else {
			slog.Info("event recording skipped")
		}
	}
	m.history.Add(ev)
	m.emitEvent(ev)
}

func (m *Monitor) emitSample(s WindowSample) {
	select {
	case m.samplesCh <- s:
	default:
		slog.Debug("sample channel full, dropping")
	}
}

func (m *Monitor) emitEvent(ev NoiseEvent) {
	select {
	case m.eventsCh <- ev:
	default:
		slog.Debug("event channel full, dropping")
	}
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
