package meter

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"github.com/google/gousb"

	apperrors "github.com/noisebuster/platform/internal/errors"
)

// USBMeter reads sound levels from a USB sound level meter via control
// transfers. Not safe for concurrent ReadLevel calls; the sampling loop is
// the single reader.
type USBMeter struct {
	usbCtx *gousb.Context
	dev    *gousb.Device
}

// OpenUSB opens the meter with the configured vendor/product IDs.
func OpenUSB(vendorID, productID string) (*USBMeter, error) {
	vid, err := parseUSBID(vendorID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "usb_vendor_id %q", vendorID)
	}
	pid, err := parseUSBID(productID)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.ConfigInvalid, "usb_product_id %q", productID)
	}

	usbCtx := gousb.NewContext()
	dev, err := usbCtx.OpenDeviceWithVIDPID(gousb.ID(vid), gousb.ID(pid))
	if err != nil {
		usbCtx.Close()
		return nil, apperrors.Wrap(err, apperrors.DeviceUnavailable, "opening USB sound meter")
	}
	if dev == nil {
		usbCtx.Close()
		return nil, apperrors.New(apperrors.DeviceUnavailable, "USB sound meter not found, check config or cable").
			WithMetadata("vendor", vendorID).
			WithMetadata("product", productID)
	}

	slog.Info("USB sound meter detected", "vendor", vendorID, "product", productID)
	return &USBMeter{usbCtx: usbCtx, dev: dev}, nil
}

// ReadLevel performs one control transfer and decodes the level.
func (m *USBMeter) ReadLevel(ctx context.Context) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	buf := make([]byte, usbReadSize)
	n, err := m.dev.Control(usbRequestType, usbRequest, 0, 0, buf)
	if err != nil {
		return 0, apperrors.Wrap(err, apperrors.DeviceRead, "control transfer failed")
	}
	if n < 2 {
		return 0, apperrors.Newf(apperrors.DeviceRead, "short read: %d bytes", n)
	}
	return Decode(buf), nil
}

// Close releases the device and USB context.
func (m *USBMeter) Close() error {
	if m.dev != nil {
		_ = m.dev.Close()
	}
	if m.usbCtx != nil {
		return m.usbCtx.Close()
	}
	return nil
}

func parseUSBID(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	v, err := strconv.ParseUint(s, 16, 16)
	return uint16(v), err
}
