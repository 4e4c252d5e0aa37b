// Package video supervises the segment ring buffer and event recording.
package video

import (
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/noisebuster/platform/internal/config"
)

// Segment is one fixed-duration media chunk in the buffer directory. Its
// modification time is the sole ordering and selection key.
type Segment struct {
	Path    string
	ModTime time.Time
}

// Buffer keeps the external recorder process alive, producing 1s segments
// into the buffer directory. Start/Stop are single control-path operations:
// concurrent calls from multiple goroutines are out of contract.
type Buffer struct {
	cfg config.Video

	mu   sync.Mutex
	cmd  *exec.Cmd
	done chan error

	// exec hooks, replaced in tests
	binary    string
	buildArgs func() []string
	lookPath  func(string) (string, error)
}

// NewBuffer creates a supervisor for the validated video configuration.
func NewBuffer(cfg config.Video) *Buffer {
	b := &Buffer{
		cfg:      cfg,
		binary:   RecorderBinary,
		lookPath: exec.LookPath,
	}
	b.buildArgs = b.recorderArgs
	return b
}

// recorderArgs builds the command line: run indefinitely, rotate 1s segments
// with a numeric filename pattern, inline stream framing, no preview.
func (b *Buffer) recorderArgs() []string {
	return []string{
		"-t", "0",
		"-o", filepath.Join(b.cfg.BufferDir, SegmentPattern),
		"--segment", "1",
		"--width", strconv.Itoa(b.cfg.Width()),
		"--height", strconv.Itoa(b.cfg.Height()),
		"--framerate", strconv.Itoa(b.cfg.FPS),
		"--inline",
		"-n",
	}
}

// Start launches the recorder process. Returns false (never an error) when
// the feature is disabled, the binary is missing, or the spawn fails.
// Starting over a live previous instance stops it first; start is idempotent.
func (b *Buffer) Start() bool {
	if !b.cfg.Enabled {
		slog.Info("video buffer disabled by config")
		return false
	}
	if _, err := b.lookPath(b.binary); err != nil {
		slog.Error("recorder binary not found on PATH, video disabled", "binary", b.binary)
		return false
	}

	if err := os.MkdirAll(b.cfg.BufferDir, 0o755); err != nil {
		slog.Error("failed to create buffer directory", "dir", b.cfg.BufferDir, "error", err)
		return false
	}
	if err := os.MkdirAll(b.cfg.OutputDir, 0o755); err != nil {
		slog.Error("failed to create output directory", "dir", b.cfg.OutputDir, "error", err)
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.stopLocked()

	cmd := exec.Command(b.binary, b.buildArgs()...)
	if err := cmd.Start(); err != nil {
		slog.Error("failed to start video buffer", "error", err)
		return false
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	b.cmd = cmd
	b.done = done
	slog.Info("segment buffer started", "binary", b.binary, "segment_seconds", 1)
	return true
}

// Running reports whether the recorder process is alive.
func (b *Buffer) Running() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cmd == nil {
		return false
	}
	select {
	case <-b.done:
		return false
	default:
		return true
	}
}

// Stop terminates the recorder with a bounded grace period.
// Errors are logged, never raised.
func (b *Buffer) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stopLocked()
}

func (b *Buffer) stopLocked() {
	if b.cmd == nil {
		return
	}

	select {
	case <-b.done:
		// already exited
	default:
		if err := b.cmd.Process.Signal(os.Interrupt); err != nil {
			slog.Warn("error signalling video buffer", "error", err)
		}
		select {
		case <-b.done:
		case <-time.After(StopGrace):
			slog.Warn("video buffer did not exit in time, killing")
			_ = b.cmd.Process.Kill()
			<-b.done
		}
	}

	slog.Info("segment buffer stopped")
	b.cmd = nil
	b.done = nil
}

// ListSegments returns buffer segments sorted ascending by modification
// time. A missing buffer directory yields an empty list, not an error.
func (b *Buffer) ListSegments() []Segment {
	entries, err := os.ReadDir(b.cfg.BufferDir)
	if err != nil {
		return nil
	}

	var segments []Segment
	for _, e := range entries {
		name := e.Name()
		if !strings.HasPrefix(name, SegmentPrefix) {
			continue
		}
		if !strings.HasSuffix(name, ".h264") && !strings.HasSuffix(name, ".mp4") {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue // deleted between list and stat
		}
		segments = append(segments, Segment{
			Path:    filepath.Join(b.cfg.BufferDir, name),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(segments, func(i, j int) bool {
		return segments[i].ModTime.Before(segments[j].ModTime)
	})
	return segments
}

// Cleanup deletes segments strictly older than the retention age.
// Individual delete failures are swallowed.
func (b *Buffer) Cleanup(bufferSeconds int) {
	keep := Retention(bufferSeconds)
	now := time.Now()
	for _, seg := range b.ListSegments() {
		if now.Sub(seg.ModTime) > keep {
			if err := os.Remove(seg.Path); err != nil {
				slog.Debug("failed to delete old segment", "path", seg.Path, "error", err)
			}
		}
	}
}

// Retention returns the segment retention age: max(10s, 2 x buffer_seconds).
func Retention(bufferSeconds int) time.Duration {
	keep := 2 * bufferSeconds
	if keep < MinRetentionSeconds {
		keep = MinRetentionSeconds
	}
	return time.Duration(keep) * time.Second
}
