package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
	"github.com/roman-kulish/spectrum-watch/internal/waterfall"
)

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	snap, err := readSnapshot(ctx, store, config, logger)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(render.Config{
		Theme:         config.Theme,
		Normalization: config.Normalization,
		NoAnnotations: config.NoAnnotations,
		Location:      config.TimeZone,
	})
	if err != nil {
		return fmt.Errorf("creating renderer: %w", err)
	}

	logger.Info("rendering heatmap",
		slog.Group("image",
			slog.String("destination", config.OutputFile),
			slog.String("format", string(config.Format)),
			slog.String("theme", string(config.Theme)),
			slog.String("normalization", string(config.Normalization)),
			slog.Int("rows", len(snap.Rows)),
			slog.Int("columns", snap.Columns),
		))

	img, err := renderer.Render(snap)
	if err != nil {
		return fmt.Errorf("rendering heatmap: %w", err)
	}

	return render.WriteFile(config.OutputFile, img, config.Format)
}

func readerOptions(config *Config) ([]storage.ReaderOption, []any) {
	var opts []storage.ReaderOption
	var filters []any

	switch {
	case config.MinFrequency != nil && config.MaxFrequency != nil:
		opts = append(opts, storage.WithFreqRange(*config.MinFrequency, *config.MaxFrequency))
		filters = append(filters,
			slog.String("minFreq", render.FormatFrequency(*config.MinFrequency)),
			slog.String("maxFreq", render.FormatFrequency(*config.MaxFrequency)))

	case config.MinFrequency != nil:
		opts = append(opts, storage.WithMinFreq(*config.MinFrequency))
		filters = append(filters, slog.String("minFreq", render.FormatFrequency(*config.MinFrequency)))

	case config.MaxFrequency != nil:
		opts = append(opts, storage.WithMaxFreq(*config.MaxFrequency))
		filters = append(filters, slog.String("maxFreq", render.FormatFrequency(*config.MaxFrequency)))
	}

	switch {
	case config.MinTimestamp != nil && config.MaxTimestamp != nil:
		opts = append(opts, storage.WithTimeRange(*config.MinTimestamp, *config.MaxTimestamp))
		filters = append(filters,
			slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)),
			slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))

	case config.MinTimestamp != nil:
		opts = append(opts, storage.WithStartTime(*config.MinTimestamp))
		filters = append(filters, slog.String("minTimestamp", config.MinTimestamp.UTC().Format(time.DateTime)))

	case config.MaxTimestamp != nil:
		opts = append(opts, storage.WithEndTime(*config.MaxTimestamp))
		filters = append(filters, slog.String("maxTimestamp", config.MaxTimestamp.UTC().Format(time.DateTime)))
	}

	return opts, filters
}

// readSnapshot loads the selected cycles as waterfall rows, one column per segment.
func readSnapshot(ctx context.Context, store storage.Store, config *Config, logger *slog.Logger) (*waterfall.Snapshot, error) {
	opts, filters := readerOptions(config)
	logger.Info("reader configuration", filters...)

	reader, err := store.ReadCycles(ctx, config.SessionID, opts...)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	if session := reader.Session(); session != nil {
		logger.Info("reading session",
			slog.Int64("session", session.ID),
			slog.String("device", session.DeviceType),
			slog.String("started", session.StartTime.In(config.TimeZone).Format(time.DateTime)))
	}

	snap := waterfall.Snapshot{}
	var minCenter, maxCenter float64

	for reader.Next(ctx) {
		span := reader.Current()
		if len(span.Segments) == 0 {
			continue
		}

		first := span.Segments[0].CenterFrequency
		last := span.Segments[len(span.Segments)-1].CenterFrequency
		if len(snap.Rows) == 0 || first < minCenter {
			minCenter = first
		}
		if len(snap.Rows) == 0 || last > maxCenter {
			maxCenter = last
		}

		snap.Columns = max(snap.Columns, len(span.Segments))
		snap.Rows = append(snap.Rows, span.Powers())
		snap.Timestamps = append(snap.Timestamps, span.Timestamp)
	}
	if err = reader.Error(); err != nil {
		return nil, err
	}

	if len(snap.Rows) == 0 {
		return nil, fmt.Errorf("session %d: %w", config.SessionID, storage.ErrNoData)
	}

	// Cycles with missing segments are padded to the widest one
	for i, row := range snap.Rows {
		snap.Rows[i], _ = waterfall.Reconcile(row, snap.Columns)
	}
	snap.Depth = len(snap.Rows)

	// Each column covers one segment step centered on its frequency
	var halfStep float64
	if snap.Columns > 1 {
		halfStep = (maxCenter - minCenter) / float64(snap.Columns-1) / 2
	}
	snap.FrequencyStart = minCenter - halfStep
	snap.FrequencyEnd = maxCenter + halfStep

	logger.Info("finished reading cycles",
		slog.Group("stats",
			slog.Int("cycles", len(snap.Rows)),
			slog.String("minTimestamp", snap.Timestamps[0].In(config.TimeZone).Format(time.DateTime)),
			slog.String("maxTimestamp", snap.Timestamps[len(snap.Timestamps)-1].In(config.TimeZone).Format(time.DateTime)),
			slog.String("minFreq", render.FormatFrequency(snap.FrequencyStart)),
			slog.String("maxFreq", render.FormatFrequency(snap.FrequencyEnd)),
		))

	return &snap, nil
}
