package app

import (
	"cmp"
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
)

// frequencyTolerance matches -freq against segment centers printed with a
// limited precision in the event log.
const frequencyTolerance = 1.0

// summary is one event row, independent of where it was read from.
type summary struct {
	Frequency float64
	Start     time.Time
	Duration  time.Duration
	Readings  int
	Peak      float64
	Status    string
}

func Run(ctx context.Context, config *Config, logger *slog.Logger) error {
	return run(ctx, config, os.Stdout, logger)
}

func run(ctx context.Context, config *Config, out io.Writer, logger *slog.Logger) error {
	var events []summary
	var err error

	if config.LogPath != "" {
		events, err = fromLog(config.LogPath, logger)
	} else {
		events, err = fromStore(ctx, config, logger)
	}
	if err != nil {
		return err
	}

	events = filter(events, config)
	if len(events) == 0 {
		logger.Info("no events found")
		return nil
	}

	slices.SortStableFunc(events, func(a, b summary) int {
		return cmp.Compare(a.Start.UnixNano(), b.Start.UnixNano())
	})

	first, last := events[0].Start, events[len(events)-1].Start
	logger.Info("events loaded",
		slog.Int("events", len(events)),
		slog.String("spanning", humanize.RelTime(first, last, "", "")))

	return printTable(out, events, config.TimeZone)
}

func fromLog(path string, logger *slog.Logger) ([]summary, error) {
	events, err := eventlog.ReadFile(path, eventlog.WithReaderLogger(logger))
	if err != nil {
		return nil, err
	}

	result := make([]summary, 0, len(events))
	for _, e := range events {
		status := "closed"
		switch {
		case e.Truncated:
			status = "truncated"
		case e.Incomplete:
			status = "incomplete"
		}

		result = append(result, summary{
			Frequency: e.Frequency,
			Start:     e.Start(),
			Duration:  e.Duration(),
			Readings:  len(e.Readings),
			Peak:      e.PeakPower(),
			Status:    status,
		})
	}
	return result, nil
}

func fromStore(ctx context.Context, config *Config, logger *slog.Logger) ([]summary, error) {
	if _, err := os.Stat(config.DBPath); err != nil && os.IsNotExist(err) {
		return nil, fmt.Errorf("database file '%s' does not exist: %w", config.DBPath, err)
	}

	store := storage.NewSqliteStore(config.DBPath)
	defer store.Close()

	session, err := store.Session(ctx, config.SessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %d: %w", config.SessionID, err)
	}
	logger.Info("reading session",
		slog.Int64("session", session.ID),
		slog.String("device", session.DeviceType),
		slog.String("deviceID", session.DeviceID))

	records, err := store.Events(ctx, config.SessionID)
	if err != nil {
		return nil, err
	}

	result := make([]summary, 0, len(records))
	for _, r := range records {
		s := summary{
			Frequency: r.Frequency,
			Start:     r.OpenedAt,
			Readings:  len(r.Readings),
			Peak:      math.Inf(-1),
			Status:    "closed",
		}
		switch {
		case r.Open():
			s.Status = "open"
		case r.Incomplete:
			s.Status = "incomplete"
		}
		if r.ClosedAt != nil {
			s.Duration = r.ClosedAt.Sub(r.OpenedAt)
		}
		for _, reading := range r.Readings {
			s.Peak = math.Max(s.Peak, reading.Power)
		}

		result = append(result, s)
	}
	return result, nil
}

func filter(events []summary, config *Config) []summary {
	return slices.DeleteFunc(events, func(s summary) bool {
		if config.Frequency != nil && math.Abs(s.Frequency-*config.Frequency) > frequencyTolerance {
			return true
		}
		return s.Duration < config.MinDuration
	})
}

func printTable(out io.Writer, events []summary, loc *time.Location) error {
	table := tablewriter.NewWriter(out)

	headers := []string{"#", "Frequency", "Start", "Duration", "Readings", "Peak Power", "Status"}
	table.Header(headers)

	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Row.Alignment.Global = tw.AlignRight
	})

	var data [][]string
	for i, e := range events {
		peak := "n/a"
		if !math.IsInf(e.Peak, -1) {
			peak = humanize.FtoaWithDigits(e.Peak, 4) + " dB"
		}

		data = append(data, []string{
			strconv.Itoa(i + 1),
			render.FormatFrequency(e.Frequency),
			e.Start.In(loc).Format(time.DateTime),
			e.Duration.Round(time.Millisecond).String(),
			humanize.Comma(int64(e.Readings)),
			peak,
			e.Status,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
