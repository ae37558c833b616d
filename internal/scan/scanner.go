package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// SegmentAcquirer acquires the spectrum of one segment.
type SegmentAcquirer interface {
	Acquire(ctx context.Context, center float64) (*spectrum.PowerSpectrum, error)
}

// WithScannerLogger sets the logger for the scanner
func WithScannerLogger(logger *slog.Logger) func(*Scanner) {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithScannerMetrics sets the metrics the scanner reports cycle timings to
func WithScannerMetrics(m *metrics.Metrics) func(*Scanner) {
	return func(s *Scanner) {
		s.metrics = m
	}
}

// Scanner drives one acquisition per segment, sequentially and in index order.
type Scanner struct {
	segments   []Segment
	acquirer   SegmentAcquirer
	numSamples int

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewScanner creates a new Scanner over a fixed segment list
func NewScanner(segments []Segment, acquirer SegmentAcquirer, numSamples int, options ...func(*Scanner)) (*Scanner, error) {
	if len(segments) == 0 {
		return nil, errors.New("no segments to scan")
	}
	if acquirer == nil {
		return nil, errors.New("acquirer is required")
	}

	s := Scanner{
		segments:   segments,
		acquirer:   acquirer,
		numSamples: numSamples,
		now:        time.Now,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&s)
	}

	return &s, nil
}

// Segments returns the scan order.
func (s *Scanner) Segments() []Segment {
	return s.segments
}

// Cycle acquires every segment once. The first failure aborts the cycle and no
// partial cycle is returned.
func (s *Scanner) Cycle(ctx context.Context) (*spectrum.CycleSpan, error) {
	started := s.now()

	span := spectrum.CycleSpan{
		Timestamp: started,
		Segments:  make([]spectrum.SegmentReading, 0, len(s.segments)),
	}

	for i, seg := range s.segments {
		ps, err := s.acquirer.Acquire(ctx, seg.CenterFrequency)
		if err != nil {
			return nil, fmt.Errorf("segment %d: %w", seg.Index, err)
		}

		span.Segments = append(span.Segments, spectrum.SegmentReading{
			Index:           seg.Index,
			CenterFrequency: seg.CenterFrequency,
			Power:           ps.MeanPowerDB,
			BinWidth:        ps.BinWidth,
			NumSamples:      s.numSamples,
			Timestamp:       s.now(),
		})
		span.Row = append(span.Row, ps.PowerDB...)

		if n := len(ps.Frequencies); n > 0 {
			if i == 0 {
				span.FrequencyStart = ps.Frequencies[0]
			}
			span.FrequencyEnd = ps.Frequencies[n-1]
		}
	}

	elapsed := s.now().Sub(started)
	s.metrics.ObserveCycle(elapsed)
	s.logger.Debug("cycle complete",
		slog.Int("segments", len(span.Segments)),
		slog.Int("bins", len(span.Row)),
		slog.Duration("elapsed", elapsed))

	return &span, nil
}
