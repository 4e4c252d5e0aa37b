package errors

import (
	stderrors "errors"
	"strings"
	"testing"
)

func TestErrorString(t *testing.T) {
	err := New(ToolMissing, "ffmpeg not found")

	if !strings.Contains(err.Error(), "TOOL_MISSING") {
		t.Errorf("Error() = %q, want code name included", err.Error())
	}
	if !strings.Contains(err.Error(), "ffmpeg not found") {
		t.Errorf("Error() = %q, want message included", err.Error())
	}
}

func TestWrapUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := Wrap(cause, TelemetryWrite, "influx write failed")

	if !stderrors.Is(err, cause) {
		t.Error("errors.Is should find the wrapped cause")
	}
	if !strings.Contains(err.Error(), "connection refused") {
		t.Errorf("Error() = %q, want cause included", err.Error())
	}
}

func TestIsCode(t *testing.T) {
	err := Newf(ConfigInvalid, "bucket must be %q", "noise_buster")

	if !IsCode(err, ConfigInvalid) {
		t.Error("IsCode(ConfigInvalid) = false, want true")
	}
	if IsCode(err, ToolMissing) {
		t.Error("IsCode(ToolMissing) = true, want false")
	}
	if IsCode(stderrors.New("plain"), ConfigInvalid) {
		t.Error("IsCode on plain error = true, want false")
	}
}

func TestWithMetadata(t *testing.T) {
	err := New(DeviceRead, "control transfer failed").WithMetadata("vendor", "16c0")

	if err.Metadata["vendor"] != "16c0" {
		t.Errorf("Metadata[vendor] = %q, want %q", err.Metadata["vendor"], "16c0")
	}
	if !strings.Contains(err.Error(), "16c0") {
		t.Errorf("Error() = %q, want metadata included", err.Error())
	}
}

func TestIsFatal(t *testing.T) {
	tests := []struct {
		code Code
		want bool
	}{
		{ConfigMissing, true},
		{DeviceUnavailable, true},
		{ConfigInvalid, false},
		{TelemetryWrite, false},
		{ToolMissing, false},
	}

	for _, tt := range tests {
		if got := IsFatal(New(tt.code, "x")); got != tt.want {
			t.Errorf("IsFatal(%v) = %v, want %v", tt.code, got, tt.want)
		}
	}
	if IsFatal(stderrors.New("plain")) {
		t.Error("IsFatal on plain error = true, want false")
	}
}
