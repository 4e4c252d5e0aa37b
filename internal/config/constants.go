package config

// Defaults applied during validation.
const (
	DefaultFPS              = 10
	DefaultBufferSeconds    = 10
	DefaultWidth            = 640
	DefaultHeight           = 480
	DefaultPreEventSeconds  = 5
	DefaultPostEventSeconds = 5
	DefaultBufferDir        = "videos/buffer"
	DefaultOutputDir        = "videos"
	DefaultHTTPAddr         = ":8090"
)

// Bucket names the telemetry schema depends on.
const (
	RequiredBucket         = "noise_buster"
	RequiredRealtimeBucket = "noise_buster_realtime"
)
