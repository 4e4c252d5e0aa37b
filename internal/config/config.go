// Package config handles loading and validating config.json
package config

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	apperrors "github.com/noisebuster/platform/internal/errors"
)

// InfluxDB configures the telemetry destination.
type InfluxDB struct {
	Enabled        bool   `mapstructure:"enabled"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	SSL            bool   `mapstructure:"ssl"`
	Token          string `mapstructure:"token"`
	Org            string `mapstructure:"org"`
	Bucket         string `mapstructure:"bucket"`
	RealtimeBucket string `mapstructure:"realtime_bucket"`
}

// URL returns the connection URL for the configured server.
func (c InfluxDB) URL() string {
	scheme := "http"
	if c.SSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s:%d", scheme, c.Host, c.Port)
}

// Device configures the noise meter and sampling window.
type Device struct {
	Source             string  `mapstructure:"source"` // "usb" or "mic"
	USBVendorID        string  `mapstructure:"usb_vendor_id"`
	USBProductID       string  `mapstructure:"usb_product_id"`
	MinimumNoiseLevel  float64 `mapstructure:"minimum_noise_level"`
	TimeWindowDuration int     `mapstructure:"time_window_duration"` // seconds, required
}

// Video configures the segment buffer and event recorder.
type Video struct {
	Enabled             bool   `mapstructure:"enabled"`
	FPS                 int    `mapstructure:"fps"`
	BufferSeconds       int    `mapstructure:"buffer_seconds"`
	Resolution          []int  `mapstructure:"resolution"`
	PreEventSeconds     int    `mapstructure:"pre_event_seconds"`
	PostEventSeconds    int    `mapstructure:"post_event_seconds"`
	EmbedDecibelReading bool   `mapstructure:"embed_decibel_reading"`
	BufferDir           string `mapstructure:"buffer_dir"`
	OutputDir           string `mapstructure:"output_dir"`
}

// Width returns the configured frame width.
func (v Video) Width() int {
	if len(v.Resolution) == 2 {
		return v.Resolution[0]
	}
	return DefaultWidth
}

// Height returns the configured frame height.
func (v Video) Height() int {
	if len(v.Resolution) == 2 {
		return v.Resolution[1]
	}
	return DefaultHeight
}

// Server configures the HTTP/WebSocket status surface.
type Server struct {
	Enabled  bool   `mapstructure:"enabled"`
	HTTPAddr string `mapstructure:"http_addr"`
}

// Config is the full platform configuration. Section and key names match the
// original config.json layout so existing configs keep working.
type Config struct {
	InfluxDB     InfluxDB `mapstructure:"influxdb_config"`
	Device       Device   `mapstructure:"device_and_noise_monitoring_config"`
	Video        Video    `mapstructure:"video_config"`
	Server       Server   `mapstructure:"server_config"`
	LocalLogging bool     `mapstructure:"local_logging"`
	LogFile      string   `mapstructure:"log_file"`
}

// Load reads the config file at path (config.json in the working directory
// when path is empty) with NOISEBUSTER_* environment overrides.
func Load(path string) (*Config, error) {
	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("json")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("NOISEBUSTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("local_logging", true)
	v.SetDefault("log_file", "noisebuster.log")
	v.SetDefault("device_and_noise_monitoring_config.source", "usb")
	v.SetDefault("server_config.enabled", true)
	v.SetDefault("server_config.http_addr", DefaultHTTPAddr)

	if err := v.ReadInConfig(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigMissing, "reading config file")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ConfigInvalid, "parsing config file")
	}
	return &cfg, nil
}

// Validate checks required fields and disables misconfigured optional
// features. An error is returned only for conditions the process cannot
// start without; everything else downgrades to a disabled feature.
func (c *Config) Validate() error {
	if c.Device.TimeWindowDuration <= 0 {
		return apperrors.New(apperrors.ConfigMissing,
			"DEVICE_AND_NOISE_MONITORING_CONFIG.time_window_duration is required and must be > 0")
	}
	if c.Device.MinimumNoiseLevel <= 0 {
		return apperrors.New(apperrors.ConfigMissing,
			"DEVICE_AND_NOISE_MONITORING_CONFIG.minimum_noise_level is required and must be > 0")
	}
	slog.Info("minimum noise level configured", "db", c.Device.MinimumNoiseLevel)

	if c.InfluxDB.Enabled {
		missing := c.influxMissing()
		if len(missing) > 0 {
			slog.Error("InfluxDB is missing or misconfigured, disabling", "fields", strings.Join(missing, ", "))
			c.InfluxDB.Enabled = false
		} else {
			slog.Info("InfluxDB is enabled and properly configured")
		}
	} else {
		slog.Info("InfluxDB is disabled")
	}

	if c.Video.Enabled {
		if c.Video.FPS <= 0 {
			c.Video.FPS = DefaultFPS
		}
		if c.Video.BufferSeconds <= 0 {
			c.Video.BufferSeconds = DefaultBufferSeconds
		}
		if len(c.Video.Resolution) != 2 {
			c.Video.Resolution = []int{DefaultWidth, DefaultHeight}
		}
		if c.Video.PreEventSeconds <= 0 {
			c.Video.PreEventSeconds = DefaultPreEventSeconds
		}
		if c.Video.PostEventSeconds <= 0 {
			c.Video.PostEventSeconds = DefaultPostEventSeconds
		}
		if c.Video.BufferDir == "" {
			c.Video.BufferDir = DefaultBufferDir
		}
		if c.Video.OutputDir == "" {
			c.Video.OutputDir = DefaultOutputDir
		}
		if c.Video.BufferSeconds < c.Video.PreEventSeconds {
			slog.Warn("buffer_seconds is shorter than pre_event_seconds, increase buffer for better pre-roll",
				"buffer_seconds", c.Video.BufferSeconds, "pre_event_seconds", c.Video.PreEventSeconds)
		}
		slog.Info("video recording enabled", "fps", c.Video.FPS, "buffer_seconds", c.Video.BufferSeconds)
	} else {
		slog.Info("video recording is disabled")
	}

	return nil
}

func (c *Config) influxMissing() []string {
	var missing []string
	check := func(name, val string) {
		if val == "" || strings.HasPrefix(val, "<YOUR_") {
			missing = append(missing, name)
		}
	}
	check("host", c.InfluxDB.Host)
	check("token", c.InfluxDB.Token)
	check("org", c.InfluxDB.Org)
	check("bucket", c.InfluxDB.Bucket)
	check("realtime_bucket", c.InfluxDB.RealtimeBucket)
	if c.InfluxDB.Port <= 0 {
		missing = append(missing, "port")
	}
	if c.InfluxDB.Bucket != "" && c.InfluxDB.Bucket != RequiredBucket {
		slog.Error("InfluxDB 'bucket' must be 'noise_buster'")
		missing = append(missing, "bucket")
	}
	if c.InfluxDB.RealtimeBucket != "" && c.InfluxDB.RealtimeBucket != RequiredRealtimeBucket {
		slog.Error("InfluxDB 'realtime_bucket' must be 'noise_buster_realtime'")
		missing = append(missing, "realtime_bucket")
	}
	return missing
}
