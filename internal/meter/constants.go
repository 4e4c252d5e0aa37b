package meter

// USB control transfer parameters for supported sound level meters.
const (
	usbRequestType = 0xC0
	usbRequest     = 4
	usbReadSize    = 200
)

// Microphone metering parameters.
const (
	DefaultSampleRate    = 44100
	DefaultFramesPerRead = 4410 // 100ms at 44100Hz
	DefaultCalibrationDB = 94.0
	// MicFloorDB is reported when the buffer is silent; log10(0) is undefined.
	MicFloorDB = 30.0
)
