package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/monitor"
	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/scan"
	"github.com/roman-kulish/spectrum-watch/internal/sdr"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
	"github.com/roman-kulish/spectrum-watch/internal/waterfall"
)

const shutdownTimeout = 5 * time.Second

// Run wires the pipeline from configuration and scans until ctx is cancelled
// or acquisition fails fatally.
func Run(ctx context.Context, config *Config, logger *slog.Logger) (err error) {
	handler, err := config.Device.Handler()
	if err != nil {
		return fmt.Errorf("creating device: %w", err)
	}

	deviceID := config.Device.Name
	if deviceID == "" {
		deviceID = uuid.NewString()
	}
	device := sdr.NewDevice(deviceID, handler, sdr.WithLogger(logger))
	logger = logger.With(slog.String("deviceID", deviceID))
	defer func() {
		err = errors.Join(err, device.Close())
	}()

	var m *metrics.Metrics
	if config.Metrics.Listen != "" {
		m = metrics.New()

		stop, sErr := serveMetrics(config.Metrics.Listen, m, logger)
		if sErr != nil {
			return fmt.Errorf("starting metrics server: %w", sErr)
		}
		defer stop()
	}

	adapter, err := spectrum.NewAdapter(spectrum.Welch{}, config.Scan.FFTSize, device.SampleRate(), config.Scan.Crop)
	if err != nil {
		return fmt.Errorf("creating spectrum adapter: %w", err)
	}

	bandwidth := config.Scan.SegmentBandwidth
	if bandwidth == 0 {
		bandwidth = adapter.Span()
	}
	if err = config.Scan.CheckStep(bandwidth); err != nil {
		return fmt.Errorf("planning segments: %w", err)
	}

	segments, err := scan.Segments(config.Scan.FrequencyStart, config.Scan.FrequencyEnd, bandwidth, config.Scan.Overlap)
	if err != nil {
		return fmt.Errorf("planning segments: %w", err)
	}

	acquirer, err := scan.NewAcquirer(device, adapter, config.Scan.NumSamples,
		scan.WithRetries(config.Acquisition.Retries),
		scan.WithRetryDelay(config.Acquisition.RetryDelay.Std()),
		scan.WithAttemptTimeout(config.Acquisition.AttemptTimeout.Std()),
		scan.WithLogger(logger),
		scan.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("creating acquirer: %w", err)
	}

	scanner, err := scan.NewScanner(segments, acquirer, config.Scan.NumSamples,
		scan.WithScannerLogger(logger),
		scan.WithScannerMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("creating scanner: %w", err)
	}

	eventLog, err := eventlog.Open(config.EventLog.Path)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, eventLog.Close())
	}()

	sinks := monitor.MultiSink{eventLog}
	var orchestratorOpts []func(*Orchestrator)

	if config.Storage.Enabled {
		store, sErr := createStorage(&config.Storage)
		if sErr != nil {
			return fmt.Errorf("creating storage: %w", sErr)
		}
		defer func() {
			err = errors.Join(err, store.Close())
		}()

		sessionID, sErr := store.CreateSession(ctx, device.Device(), device.DeviceID(), config.Device.Config)
		if sErr != nil {
			return fmt.Errorf("creating session: %w", sErr)
		}
		logger.Info("storage session created", slog.Int64("session", sessionID))

		// Recordings flushed at shutdown must still reach the store
		sinks = append(sinks, storage.NewEventRecorder(context.WithoutCancel(ctx), store, sessionID))
		orchestratorOpts = append(orchestratorOpts, WithStore(store, sessionID))
	}

	warmup := config.Detection.Cycles(config.Scan.Interval.Std())
	mon, err := monitor.New(segments, sinks, monitor.Config{
		WarmupCycles: warmup,
		Smoothing:    config.Detection.Smoothing,
		Threshold:    config.Detection.Threshold,
	}, monitor.WithLogger(logger), monitor.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("creating monitor: %w", err)
	}

	span := adapter.Span()
	buffer, err := waterfall.New(config.Waterfall.Depth, len(segments)*adapter.Bins(),
		waterfall.WithExtent(segments[0].CenterFrequency-span/2, segments[len(segments)-1].CenterFrequency+span/2),
		waterfall.WithLogger(logger),
		waterfall.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("creating waterfall: %w", err)
	}

	if config.Display.OutputFile != "" {
		renderer, format, dErr := createRenderer(&config.Display)
		if dErr != nil {
			return fmt.Errorf("creating display: %w", dErr)
		}
		orchestratorOpts = append(orchestratorOpts,
			WithDisplay(renderer, config.Display.OutputFile, format, config.Display.Interval.Std()))
	}

	orchestrator, err := NewOrchestrator(scanner, mon, buffer, config.Scan.Interval.Std(),
		append(orchestratorOpts, WithLogger(logger))...)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	logger.Info("scan started",
		slog.Int("segments", len(segments)),
		slog.String("band", fmt.Sprintf("%s - %s",
			render.FormatFrequency(config.Scan.FrequencyStart),
			render.FormatFrequency(config.Scan.FrequencyEnd))),
		slog.Int("warmupCycles", warmup),
		slog.Duration("interval", config.Scan.Interval.Std()))

	return orchestrator.Run(ctx)
}

func createStorage(config *StorageConfig) (*storage.SqliteStore, error) {
	dir := config.DataDirectory
	if !filepath.IsAbs(dir) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current working directory: %w", err)
		}
		dir = filepath.Join(wd, dir)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating storage directory '%s': %w", dir, err)
	}

	dbPath := filepath.Join(dir, fmt.Sprintf("spectrum_session_%s.sqlite", time.Now().UTC().Format("20060102_150405")))
	return storage.NewSqliteStore(dbPath), nil
}

func createRenderer(config *DisplayConfig) (*render.Renderer, render.Format, error) {
	format, err := render.FormatFromPath(config.OutputFile)
	if err != nil {
		return nil, "", err
	}

	theme, err := render.ParseTheme(config.Theme)
	if err != nil {
		return nil, "", err
	}

	normalization, err := render.ParseNormalization(config.Normalization)
	if err != nil {
		return nil, "", err
	}

	renderer, err := render.NewRenderer(render.Config{
		Theme:         theme,
		Normalization: normalization,
		NoAnnotations: config.NoAnnotations,
	})
	if err != nil {
		return nil, "", err
	}
	return renderer, format, nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) (func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	server := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server", slog.String("error", err.Error()))
		}
	}()
	logger.Info("metrics server listening", slog.String("address", listener.Addr().String()))

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = server.Shutdown(ctx)
	}, nil
}
