package monitor

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/scan"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// Config holds the detection parameters shared by every segment.
type Config struct {
	WarmupCycles int     // W, number of cycles averaged before tracking starts
	Smoothing    float64 // EMA factor alpha
	Threshold    float64 // dB above baseline that opens and keeps a recording
}

// SegmentState is a read-only view of one segment.
type SegmentState struct {
	Segment     scan.Segment
	Phase       Phase
	SamplesSeen int
	Baseline    float64
	State       State
	OpenedAt    time.Time
	Buffered    int
}

// WithLogger sets the logger for the monitor
func WithLogger(logger *slog.Logger) func(*Monitor) {
	return func(m *Monitor) {
		m.logger = logger
	}
}

// WithMetrics sets the metrics the monitor reports events and baselines to
func WithMetrics(mt *metrics.Metrics) func(*Monitor) {
	return func(m *Monitor) {
		m.metrics = mt
	}
}

type segmentMonitor struct {
	segment  scan.Segment
	baseline *Baseline
	detector *Detector
}

// Monitor owns the baseline and detector of every segment, indexed by segment index.
type Monitor struct {
	segments []segmentMonitor

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a monitor with every segment warming up and idle.
func New(segments []scan.Segment, sink EventSink, cfg Config, options ...func(*Monitor)) (*Monitor, error) {
	if len(segments) == 0 {
		return nil, errors.New("no segments to monitor")
	}
	if sink == nil {
		return nil, errors.New("event sink is required")
	}
	if cfg.Threshold <= 0 {
		return nil, fmt.Errorf("threshold must be positive: %f", cfg.Threshold)
	}

	m := Monitor{
		segments: make([]segmentMonitor, len(segments)),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&m)
	}

	for i, seg := range segments {
		b, err := NewBaseline(cfg.WarmupCycles, cfg.Smoothing)
		if err != nil {
			return nil, err
		}
		m.segments[i] = segmentMonitor{
			segment:  seg,
			baseline: b,
			detector: NewDetector(seg.CenterFrequency, cfg.Threshold, sink),
		}
	}

	return &m, nil
}

// Observe processes one cycle, one reading per segment in index order. Warming-up
// segments only feed their baseline. Tracking segments are compared against the
// previous baseline first, then the baseline is updated. Sink errors are collected
// and returned after every segment has been processed.
func (m *Monitor) Observe(readings []spectrum.SegmentReading) error {
	if len(readings) != len(m.segments) {
		return fmt.Errorf("expected %d segment readings, got %d", len(m.segments), len(readings))
	}

	var errs []error
	for i := range m.segments {
		s := &m.segments[i]
		r := readings[i]

		if s.baseline.Phase() == WarmingUp {
			s.baseline.Update(r.Power)
			if s.baseline.Phase() == Tracking {
				m.logger.Info("baseline established",
					slog.Float64("frequency", s.segment.CenterFrequency),
					slog.Float64("baseline", s.baseline.Value()))
			}
			m.metrics.SegmentPower(s.segment.CenterFrequency, r.Power, s.baseline.Value())
			continue
		}

		previous := s.baseline.Value()
		transition, err := s.detector.Observe(r.Timestamp, r.Power, previous)
		if err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", s.segment.Index, err))
		}
		m.report(s, transition, r.Power, previous)

		s.baseline.Update(r.Power)
		m.metrics.SegmentPower(s.segment.CenterFrequency, r.Power, s.baseline.Value())
	}

	return errors.Join(errs...)
}

func (m *Monitor) report(s *segmentMonitor, t Transition, power, baseline float64) {
	switch t {
	case Opened:
		m.metrics.Event(metrics.EventOpened)
		m.logger.Info("surge detected",
			slog.Float64("frequency", s.segment.CenterFrequency),
			slog.Float64("power", power),
			slog.Float64("baseline", baseline))

	case Closed:
		m.metrics.Event(metrics.EventClosed)
		m.logger.Info("surge ended",
			slog.Float64("frequency", s.segment.CenterFrequency),
			slog.Float64("power", power),
			slog.Float64("baseline", baseline))
	}
}

// Close flushes every open recording as incomplete.
func (m *Monitor) Close() error {
	var errs []error
	for i := range m.segments {
		s := &m.segments[i]
		buffered := s.detector.Buffered()

		flushed, err := s.detector.Flush()
		if err != nil {
			errs = append(errs, fmt.Errorf("segment %d: %w", s.segment.Index, err))
		}
		if flushed {
			m.metrics.Event(metrics.EventIncomplete)
			m.logger.Warn("recording still open at shutdown, flushed as incomplete",
				slog.Float64("frequency", s.segment.CenterFrequency),
				slog.Int("readings", buffered))
		}
	}
	return errors.Join(errs...)
}

// States returns a snapshot of every segment.
func (m *Monitor) States() []SegmentState {
	states := make([]SegmentState, len(m.segments))
	for i, s := range m.segments {
		states[i] = SegmentState{
			Segment:     s.segment,
			Phase:       s.baseline.Phase(),
			SamplesSeen: s.baseline.SamplesSeen(),
			Baseline:    s.baseline.Value(),
			State:       s.detector.State(),
			OpenedAt:    s.detector.OpenedAt(),
			Buffered:    s.detector.Buffered(),
		}
	}
	return states
}
