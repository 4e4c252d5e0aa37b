// Noise monitoring daemon - samples the sound meter, detects threshold
// events, records video evidence, and exports telemetry.
package main

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/noisebuster/platform/internal/config"
	apperrors "github.com/noisebuster/platform/internal/errors"
	"github.com/noisebuster/platform/internal/meter"
	"github.com/noisebuster/platform/internal/monitor"
	"github.com/noisebuster/platform/internal/server"
	"github.com/noisebuster/platform/internal/telemetry"
	"github.com/noisebuster/platform/internal/video"
)

var (
	configPath   string
	testDuration int
)

func main() {
	root := &cobra.Command{
		Use:   "noisebusterd",
		Short: "Noise event monitoring and video evidence daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return run()
		},
	}
	root.Flags().StringVar(&configPath, "config", "config.json", "path to the configuration file")
	root.Flags().IntVar(&testDuration, "test-duration", 0, "stop automatically after this many seconds (0 runs forever)")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Error("failed to load configuration", "path", configPath, "error", err)
		return err
	}

	setupLogging(cfg)

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", "error", err)
		return err
	}

	rdr, err := meter.Open(cfg.Device)
	if err != nil {
		slog.Error("sound meter unavailable", "error", err,
			"fatal", apperrors.IsFatal(err))
		return err
	}
	defer func() { _ = rdr.Close() }()

	sink := telemetry.New(cfg.InfluxDB)
	defer sink.Close()

	var (
		buffer   *video.Buffer
		recorder *video.Recorder
		mon      *monitor.Monitor
	)
	if cfg.Video.Enabled {
		buffer = video.NewBuffer(cfg.Video)
		recorder = video.NewRecorder(cfg.Video, buffer)
		mon = monitor.New(cfg.Device, rdr, sink, recorder)
	} else {
		mon = monitor.New(cfg.Device, rdr, sink, nil)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if buffer != nil {
		// A failed buffer start degrades to monitoring without video.
		buffer.Start()
	}

	go mon.Run(ctx)
	go sink.Run(ctx)

	var httpServer *http.Server
	if cfg.Server.Enabled {
		addr := cfg.Server.HTTPAddr
		if addr == "" {
			addr = config.DefaultHTTPAddr
		}

		var rec server.RecorderStatus
		var buf server.BufferStatus
		if recorder != nil {
			rec = recorder
		}
		if buffer != nil {
			buf = buffer
		}
		srv := server.New(mon, rec, buf, sink)

		httpServer = &http.Server{
			Addr:         addr,
			Handler:      srv.Handler(),
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("status server starting", "http", addr)
			if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
				slog.Error("http server error", "error", err)
			}
		}()
	}

	slog.Info("noisebuster started",
		"window_seconds", cfg.Device.TimeWindowDuration,
		"minimum_db", cfg.Device.MinimumNoiseLevel,
		"influxdb", cfg.InfluxDB.Enabled,
		"video", cfg.Video.Enabled,
		"server", cfg.Server.Enabled)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if testDuration > 0 {
		slog.Info("test mode, stopping after duration", "seconds", testDuration)
		select {
		case <-sigCh:
		case <-time.After(time.Duration(testDuration) * time.Second):
		}
	} else {
		<-sigCh
	}

	slog.Info("shutting down...")
	cancel()

	if httpServer != nil {
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			slog.Error("http shutdown error", "error", err)
		}
	}

	if buffer != nil {
		buffer.Stop()
	}

	slog.Info("shutdown complete")
	return nil
}

// setupLogging installs the process-wide text handler, mirroring output to
// the configured log file when local logging is on.
func setupLogging(cfg *config.Config) {
	var out io.Writer = os.Stdout
	if cfg.LocalLogging && cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			slog.Warn("cannot open log file, logging to stdout only", "path", cfg.LogFile, "error", err)
		} else {
			out = io.MultiWriter(os.Stdout, f)
		}
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}
