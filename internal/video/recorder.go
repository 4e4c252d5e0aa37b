package video

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/noisebuster/platform/internal/config"
	"github.com/noisebuster/platform/internal/syncx"
)

// JobStatus tracks a recording job through its state machine.
type JobStatus string

const (
	StatusPending        JobStatus = "pending"
	StatusSelecting      JobStatus = "selecting"
	StatusSplicing       JobStatus = "splicing"
	StatusPostProcessing JobStatus = "post-processing"
	StatusDone           JobStatus = "done"
	StatusFailed         JobStatus = "failed"
)

// Job is one evidence-capture run for a noise event.
type Job struct {
	ID        string
	EventTime time.Time
	Level     float64
	Output    string

	mu     sync.Mutex
	status JobStatus
}

// Status returns the job's current state.
func (j *Job) Status() JobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status
}

func (j *Job) setStatus(s JobStatus) {
	j.mu.Lock()
	j.status = s
	j.mu.Unlock()
}

// SegmentStore lists and prunes the segment buffer.
type SegmentStore interface {
	ListSegments() []Segment
	Cleanup(bufferSeconds int)
}

// Recorder turns noise events into spliced evidence files. At most one job
// runs at a time; extra triggers are rejected, never queued.
type Recorder struct {
	cfg    config.Video
	store  SegmentStore
	flight syncx.Flight

	mu      sync.Mutex
	lastJob *Job
	wg      sync.WaitGroup

	// exec/time hooks, replaced in tests
	lookPath func(string) (string, error)
	runCmd   func(ctx context.Context, name string, args ...string) error
	sleep    func(d time.Duration)
}

// NewRecorder creates a recorder reading segments from store.
func NewRecorder(cfg config.Video, store SegmentStore) *Recorder {
	return &Recorder{
		cfg:      cfg,
		store:    store,
		lookPath: exec.LookPath,
		runCmd:   runCommand,
		sleep:    time.Sleep,
	}
}

// Trigger starts one recording job for the event. Returns false with no side
// effects when video is disabled, the splicing tool is missing, or another
// job is active. On true, a detached worker owns the job and the caller is
// not blocked.
func (r *Recorder) Trigger(ts time.Time, level float64) bool {
	if !r.cfg.Enabled {
		return false
	}
	if _, err := r.lookPath(SplicerBinary); err != nil {
		slog.Error("splicing tool not found on PATH, cannot record event", "binary", SplicerBinary)
		return false
	}
	if !r.flight.TryAcquire() {
		slog.Info("a video recording is already in progress, skipping this trigger")
		return false
	}

	job := &Job{
		ID:        uuid.NewString(),
		EventTime: ts,
		Level:     level,
		status:    StatusPending,
	}
	r.mu.Lock()
	r.lastJob = job
	r.mu.Unlock()

	slog.Info("event recording started",
		"job", job.ID,
		"pre_seconds", r.cfg.PreEventSeconds,
		"post_seconds", r.cfg.PostEventSeconds,
		"db", level)

	r.wg.Add(1)
	go r.run(job)
	return true
}

// Active reports whether a job currently holds the single-flight guard.
func (r *Recorder) Active() bool { return r.flight.Busy() }

// LastJob returns the most recently triggered job, if any.
func (r *Recorder) LastJob() *Job {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastJob
}

// run executes the job state machine. Every exit path releases the guard
// exactly once, then prunes old segments best-effort.
func (r *Recorder) run(job *Job) {
	defer r.wg.Done()
	defer func() {
		r.flight.Release()
		r.store.Cleanup(r.cfg.BufferSeconds)
	}()

	log := slog.With("job", job.ID)

	// The buffer cannot tell us a segment is final; wait out the post
	// window so every covering segment has been flushed.
	r.sleep(time.Duration(r.cfg.PostEventSeconds) * time.Second)

	job.setStatus(StatusSelecting)
	chosen := r.selectSegments(job.EventTime)
	if len(chosen) == 0 {
		log.Error("no segments available for the requested event window, not saving video")
		job.setStatus(StatusFailed)
		return
	}

	job.setStatus(StatusSplicing)
	output := filepath.Join(r.cfg.OutputDir, outputName(job.EventTime, job.Level))
	if err := r.splice(chosen, output); err != nil {
		log.Error("splicing failed", "error", err)
		job.setStatus(StatusFailed)
		return
	}
	if !fileNonEmpty(output) {
		log.Error("final file is missing or empty after concatenation", "path", output)
		job.setStatus(StatusFailed)
		return
	}
	job.Output = output
	log.Info("saved event video", "path", output, "segments", len(chosen))

	if r.cfg.EmbedDecibelReading {
		job.setStatus(StatusPostProcessing)
		// Overlay failure keeps the valid primary artifact.
		if err := r.overlay(output, job.Level); err != nil {
			log.Warn("overlay post-processing failed, keeping original video", "error", err)
		}
	}

	job.setStatus(StatusDone)
}

// selectSegments returns segments whose modification time lies inside
// [event - pre - grace, event + post + grace], both bounds inclusive,
// sorted ascending.
func (r *Recorder) selectSegments(eventTime time.Time) []Segment {
	grace := GraceSeconds * time.Second
	start := eventTime.Add(-time.Duration(r.cfg.PreEventSeconds)*time.Second - grace)
	end := eventTime.Add(time.Duration(r.cfg.PostEventSeconds)*time.Second + grace)

	var chosen []Segment
	for _, seg := range r.store.ListSegments() {
		if !seg.ModTime.Before(start) && !seg.ModTime.After(end) {
			chosen = append(chosen, seg)
		}
	}
	return chosen
}

// splice concatenates the chosen segments losslessly via a generated list file.
func (r *Recorder) splice(segments []Segment, output string) error {
	listPath := filepath.Join(r.cfg.BufferDir, ConcatListName)

	var list bytes.Buffer
	for _, seg := range segments {
		fmt.Fprintf(&list, "file '%s'\n", seg.Path)
	}
	if err := os.WriteFile(listPath, list.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing concat list: %w", err)
	}
	defer os.Remove(listPath)

	ctx, cancel := context.WithTimeout(context.Background(), SpliceTimeout)
	defer cancel()
	return r.runCmd(ctx, SplicerBinary,
		"-y", "-f", "concat", "-safe", "0", "-i", listPath, "-c", "copy", output)
}

// overlay burns the measured level onto the video, then atomically replaces
// the primary artifact. The original is only replaced once the overlay
// output is confirmed non-empty.
func (r *Recorder) overlay(output string, level float64) error {
	tmp := strings.TrimSuffix(output, filepath.Ext(output)) + "_overlay.mp4"
	text := fmt.Sprintf("%.1f dB", level)
	filter := fmt.Sprintf("drawtext=text='%s':x=10:y=10:fontsize=36:fontcolor=white:box=1:boxcolor=black@0.5", text)

	ctx, cancel := context.WithTimeout(context.Background(), SpliceTimeout)
	defer cancel()
	if err := r.runCmd(ctx, SplicerBinary, "-y", "-i", output, "-vf", filter, "-c:a", "copy", tmp); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	if !fileNonEmpty(tmp) {
		_ = os.Remove(tmp)
		return fmt.Errorf("overlay output missing or empty: %s", tmp)
	}
	return os.Rename(tmp, output)
}

// outputName builds the deterministic artifact name other tooling parses.
func outputName(ts time.Time, level float64) string {
	return fmt.Sprintf("video_%s_%.1fdB.mp4", ts.Format("2006-01-02_15-04-05"), level)
}

func fileNonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Size() > 0
}

func runCommand(ctx context.Context, name string, args ...string) error {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s: %w: %s", name, err, msg)
		}
		return fmt.Errorf("%s: %w", name, err)
	}
	return nil
}
