// Package meter provides the noise level sensor capability.
package meter

import (
	"context"
	"math"

	"github.com/noisebuster/platform/internal/config"
	apperrors "github.com/noisebuster/platform/internal/errors"
)

// Reader reads one instantaneous sound level per call. Implementations may
// block briefly (bounded by the device's own transfer timeout); a read error
// is always transient and never invalidates the Reader.
type Reader interface {
	ReadLevel(ctx context.Context) (float64, error)
	Close() error
}

// Open returns the Reader selected by the device configuration.
// Failure here is fatal: the sampling loop must not start without a sensor.
func Open(cfg config.Device) (Reader, error) {
	switch cfg.Source {
	case "mic":
		return OpenMic(DefaultSampleRate, DefaultFramesPerRead, DefaultCalibrationDB)
	case "", "usb":
		return OpenUSB(cfg.USBVendorID, cfg.USBProductID)
	default:
		return nil, apperrors.Newf(apperrors.ConfigInvalid, "unknown device source %q", cfg.Source)
	}
}

// Decode converts a raw meter reading to decibels:
// (b0 + (b1 & 0x03) * 256) * 0.1 + 30, rounded to one decimal.
func Decode(b []byte) float64 {
	raw := int(b[0]) + int(b[1]&0x03)*256
	return round1(float64(raw)*0.1 + 30)
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
