package meter

import (
	"context"
	"log/slog"
	"math"

	"github.com/gordonklaus/portaudio"

	apperrors "github.com/noisebuster/platform/internal/errors"
)

// MicMeter approximates sound levels from the default microphone. The peak
// amplitude of each read buffer is mapped to decibels with a fixed
// calibration offset; good enough for threshold detection, not a certified
// SPL measurement.
type MicMeter struct {
	stream      *portaudio.Stream
	buf         []float32
	calibration float64
}

// OpenMic initializes portaudio and opens the default input stream.
func OpenMic(sampleRate, framesPerRead int, calibration float64) (*MicMeter, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "initializing portaudio")
	}

	buf := make([]float32, framesPerRead)
	stream, err := portaudio.OpenDefaultStream(1, 0, float64(sampleRate), framesPerRead, buf)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "opening default input stream")
	}
	if err := stream.Start(); err != nil {
		_ = stream.Close()
		_ = portaudio.Terminate()
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "starting input stream")
	}

	slog.Info("microphone meter started", "sample_rate", sampleRate, "frames_per_read", framesPerRead)
	return &MicMeter{stream: stream, buf: buf, calibration: calibration}, nil
}

// ReadLevel reads one buffer and returns its peak as decibels.
func (m *MicMeter) ReadLevel(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	if err := m.stream.Read(); err != nil {
		return 0, apperrors.Wrap(err, apperrors.DeviceRead, "reading input stream")
	}

	var peak float64
	for _, s := range m.buf {
		if v := math.Abs(float64(s)); v > peak {
			peak = v
		}
	}
	if peak <= 0 {
		return MicFloorDB, nil
	}
	return round1(20*math.Log10(peak) + m.calibration), nil
}

// Close stops the stream and terminates portaudio.
func (m *MicMeter) Close() error {
	if m.stream != nil {
		_ = m.stream.Stop()
		_ = m.stream.Close()
	}
	return portaudio.Terminate()
}
