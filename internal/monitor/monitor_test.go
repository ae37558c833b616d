package monitor

import (
	"bytes"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/scan"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

type sinkCall struct {
	kind       string // "start" or "end"
	frequency  float64
	readings   []eventlog.Reading
	incomplete bool
}

type recordingSink struct {
	calls    []sinkCall
	startErr error
}

func (s *recordingSink) Start(frequency float64, _ time.Time) error {
	if s.startErr != nil {
		return s.startErr
	}
	s.calls = append(s.calls, sinkCall{kind: "start", frequency: frequency})
	return nil
}

func (s *recordingSink) End(frequency float64, readings []eventlog.Reading, incomplete bool) error {
	s.calls = append(s.calls, sinkCall{kind: "end", frequency: frequency, readings: readings, incomplete: incomplete})
	return nil
}

func TestWarmupCycles(t *testing.T) {
	tests := []struct {
		warmup, interval time.Duration
		want             int
	}{
		{30 * time.Second, 10 * time.Second, 3},
		{31 * time.Second, 10 * time.Second, 4},
		{time.Second, 10 * time.Second, 1},
		{0, 10 * time.Second, 1},
	}

	for _, tt := range tests {
		if got := WarmupCycles(tt.warmup, tt.interval); got != tt.want {
			t.Errorf("WarmupCycles(%s, %s) = %d, want %d", tt.warmup, tt.interval, got, tt.want)
		}
	}
}

func TestBaseline_WarmupTransitionsOnce(t *testing.T) {
	const w = 5
	b, err := NewBaseline(w, 0.01)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	transitions := 0
	prev := b.Phase()
	for i := 1; i <= 3*w; i++ {
		b.Update(float64(-90 - i))
		if b.Phase() != prev {
			transitions++
			if i != w {
				t.Errorf("transition after %d samples, want %d", i, w)
			}
		}
		prev = b.Phase()
	}

	if transitions != 1 {
		t.Errorf("expected exactly one transition, got %d", transitions)
	}
}

func TestBaseline_WarmupMean(t *testing.T) {
	b, _ := NewBaseline(4, 0.01)
	for _, p := range []float64{-90, -92, -88, -90} {
		b.Update(p)
	}

	if b.Phase() != Tracking {
		t.Fatal("expected tracking phase")
	}
	if b.Value() != -90 {
		t.Errorf("expected warm-up mean -90, got %f", b.Value())
	}
}

func TestBaseline_EMA(t *testing.T) {
	const alpha = 0.1
	b, _ := NewBaseline(1, alpha)
	b.Update(-90)

	for _, p := range []float64{-80, -85, -100, -60} {
		prev := b.Value()
		got := b.Update(p)
		want := prev*(1-alpha) + p*alpha
		if math.Abs(got-want) > 1e-12 {
			t.Errorf("Update(%f) = %f, want %f", p, got, want)
		}
	}
}

func TestBaseline_FixedPoint(t *testing.T) {
	b, _ := NewBaseline(3, 0.01)
	for i := 0; i < 3; i++ {
		b.Update(-90)
	}

	for i := 0; i < 100; i++ {
		if got := b.Update(-90); got != -90 {
			t.Fatalf("baseline drifted to %f after %d updates", got, i+1)
		}
	}
}

func TestNewBaseline_Validation(t *testing.T) {
	if _, err := NewBaseline(0, 0.01); err == nil {
		t.Error("expected error for zero warm-up cycles")
	}
	if _, err := NewBaseline(1, 0); err == nil {
		t.Error("expected error for zero smoothing")
	}
}

func TestDetector_Scenario(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(915e6, 5, sink)

	at := time.Unix(1700000000, 0)
	powers := []float64{-91, -84, -83, -89}
	want := []Transition{None, Opened, Extended, Closed}

	for i, p := range powers {
		got, err := d.Observe(at.Add(time.Duration(i)*time.Second), p, -90)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want[i] {
			t.Errorf("sample %d (%0.0f dB): got transition %d, want %d", i, p, got, want[i])
		}
	}

	if len(sink.calls) != 2 {
		t.Fatalf("expected one start and one end, got %+v", sink.calls)
	}
	if sink.calls[0].kind != "start" || sink.calls[1].kind != "end" {
		t.Fatalf("unexpected call order: %+v", sink.calls)
	}

	end := sink.calls[1]
	if end.incomplete {
		t.Error("end should not be incomplete")
	}
	if len(end.readings) != 2 || end.readings[0].Power != -84 || end.readings[1].Power != -83 {
		t.Errorf("unexpected flushed readings: %+v", end.readings)
	}
	if d.State() != Idle {
		t.Errorf("expected idle after close, got %s", d.State())
	}
}

func TestDetector_NeverDoubleOpens(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(100e6, 5, sink)

	for i := 0; i < 10; i++ {
		_, _ = d.Observe(time.Unix(int64(i), 0), -70, -90)
	}

	starts := 0
	for _, c := range sink.calls {
		if c.kind == "start" {
			starts++
		}
	}
	if starts != 1 {
		t.Errorf("expected a single start, got %d", starts)
	}
	if d.Buffered() != 10 {
		t.Errorf("expected 10 buffered readings, got %d", d.Buffered())
	}
}

func TestDetector_ThresholdIsExclusive(t *testing.T) {
	sink := &recordingSink{}
	d := NewDetector(100e6, 5, sink)

	if tr, _ := d.Observe(time.Unix(0, 0), -85, -90); tr != None {
		t.Errorf("delta equal to threshold must not open, got %d", tr)
	}
}

func TestDetector_StartErrorKeepsIdle(t *testing.T) {
	sink := &recordingSink{startErr: errors.New("disk full")}
	d := NewDetector(100e6, 5, sink)

	if _, err := d.Observe(time.Unix(0, 0), -70, -90); err == nil {
		t.Fatal("expected error")
	}
	if d.State() != Idle {
		t.Errorf("expected idle after failed start, got %s", d.State())
	}
}

func readings(segments []scan.Segment, at time.Time, powers ...float64) []spectrum.SegmentReading {
	out := make([]spectrum.SegmentReading, len(segments))
	for i, s := range segments {
		out[i] = spectrum.SegmentReading{
			Index:           s.Index,
			CenterFrequency: s.CenterFrequency,
			Power:           powers[i],
			Timestamp:       at,
		}
	}
	return out
}

func TestMonitor_DetectorInertDuringWarmup(t *testing.T) {
	segments := []scan.Segment{{Index: 0, CenterFrequency: 100e6}}
	sink := &recordingSink{}

	m, err := New(segments, sink, Config{WarmupCycles: 3, Smoothing: 0.01, Threshold: 5})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// a surge during warm-up must not open anything
	for i, p := range []float64{-90, -60, -90} {
		if err = m.Observe(readings(segments, time.Unix(int64(i), 0), p)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if len(sink.calls) != 0 {
		t.Errorf("expected no events during warm-up, got %+v", sink.calls)
	}
	if st := m.States()[0]; st.Phase != Tracking || st.SamplesSeen != 3 {
		t.Errorf("unexpected state after warm-up: %+v", st)
	}
}

func TestMonitor_ComparesBeforeUpdate(t *testing.T) {
	segments := []scan.Segment{{Index: 0, CenterFrequency: 100e6}}
	sink := &recordingSink{}

	// alpha 1 makes the baseline jump to the current value on update
	m, _ := New(segments, sink, Config{WarmupCycles: 1, Smoothing: 1, Threshold: 5})

	_ = m.Observe(readings(segments, time.Unix(0, 0), -90))
	_ = m.Observe(readings(segments, time.Unix(1, 0), -80))

	if len(sink.calls) != 1 || sink.calls[0].kind != "start" {
		t.Errorf("expected the surge to be compared against the previous baseline, got %+v", sink.calls)
	}
	if got := m.States()[0].Baseline; got != -80 {
		t.Errorf("expected baseline updated after comparison, got %f", got)
	}
}

func TestMonitor_SegmentsIndependent(t *testing.T) {
	segments := []scan.Segment{
		{Index: 0, CenterFrequency: 100e6},
		{Index: 1, CenterFrequency: 102e6},
	}
	sink := &recordingSink{}
	m, _ := New(segments, sink, Config{WarmupCycles: 1, Smoothing: 0.01, Threshold: 5})

	_ = m.Observe(readings(segments, time.Unix(0, 0), -90, -90))
	_ = m.Observe(readings(segments, time.Unix(1, 0), -80, -90))
	_ = m.Observe(readings(segments, time.Unix(2, 0), -80, -80))
	_ = m.Observe(readings(segments, time.Unix(3, 0), -90, -80))

	states := m.States()
	if states[0].State != Idle || states[1].State != Recording {
		t.Errorf("unexpected states: %s, %s", states[0].State, states[1].State)
	}

	for _, c := range sink.calls {
		for _, r := range c.readings {
			if r.Frequency != c.frequency {
				t.Errorf("reading at %0.0f Hz flushed for %0.0f Hz", r.Frequency, c.frequency)
			}
		}
	}
}

func TestMonitor_CloseFlushesIncomplete(t *testing.T) {
	segments := []scan.Segment{{Index: 0, CenterFrequency: 100e6}}
	sink := &recordingSink{}
	m, _ := New(segments, sink, Config{WarmupCycles: 1, Smoothing: 0.01, Threshold: 5})

	_ = m.Observe(readings(segments, time.Unix(0, 0), -90))
	_ = m.Observe(readings(segments, time.Unix(1, 0), -70))
	_ = m.Observe(readings(segments, time.Unix(2, 0), -71))

	if err := m.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	last := sink.calls[len(sink.calls)-1]
	if last.kind != "end" || !last.incomplete || len(last.readings) != 2 {
		t.Errorf("expected incomplete end with 2 readings, got %+v", last)
	}
	if m.States()[0].State != Idle {
		t.Error("expected idle after close")
	}

	// nothing left to flush
	calls := len(sink.calls)
	_ = m.Close()
	if len(sink.calls) != calls {
		t.Error("second close flushed again")
	}
}

func TestMonitor_ReadingCountMismatch(t *testing.T) {
	segments := []scan.Segment{{Index: 0, CenterFrequency: 100e6}}
	m, _ := New(segments, &recordingSink{}, Config{WarmupCycles: 1, Smoothing: 0.01, Threshold: 5})

	if err := m.Observe(nil); err == nil {
		t.Error("expected error for missing readings")
	}
}

// flakySink fails its first failStarts calls to Start and records the rest.
type flakySink struct {
	recordingSink
	failStarts int
}

func (s *flakySink) Start(frequency float64, at time.Time) error {
	if s.failStarts > 0 {
		s.failStarts--
		return errors.New("database is locked")
	}
	return s.recordingSink.Start(frequency, at)
}

func TestMultiSink_StartRollsBack(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{startErr: errors.New("boom")}
	c := &recordingSink{}
	sink := MultiSink{a, b, c}

	if err := sink.Start(1, time.Unix(0, 0)); err == nil {
		t.Fatal("expected error")
	}
	if len(a.calls) != 2 || a.calls[1].kind != "end" || !a.calls[1].incomplete || len(a.calls[1].readings) != 0 {
		t.Errorf("first sink calls = %+v, want start then empty incomplete end", a.calls)
	}
	if len(c.calls) != 0 {
		t.Errorf("sink after the failure was called: %+v", c.calls)
	}
}

func TestMultiSink_EndReachesEverySink(t *testing.T) {
	a, b := &recordingSink{}, &recordingSink{}
	sink := MultiSink{a, b}

	if err := sink.End(1, nil, false); err != nil {
		t.Fatalf("End() error = %v", err)
	}
	if len(a.calls) != 1 || len(b.calls) != 1 {
		t.Errorf("calls = %d and %d, want 1 each", len(a.calls), len(b.calls))
	}
}

func TestDetector_PartialStartFailureKeepsPairing(t *testing.T) {
	tests := []struct {
		name  string
		sinks func(log EventSink, flaky *flakySink) MultiSink
	}{
		{"store fails after log", func(log EventSink, flaky *flakySink) MultiSink { return MultiSink{log, flaky} }},
		{"store fails before log", func(log EventSink, flaky *flakySink) MultiSink { return MultiSink{flaky, log} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			flaky := &flakySink{failStarts: 1}
			d := NewDetector(100e6, 5, tt.sinks(eventlog.NewWriter(&buf), flaky))

			t0 := time.Unix(1700000000, 0)
			if _, err := d.Observe(t0, -80, -90); err == nil {
				t.Fatal("expected error from the failing sink")
			}
			if d.State() != Idle {
				t.Fatalf("State() = %s, want idle after a failed start", d.State())
			}
			for i, p := range []float64{-80, -90} {
				if _, err := d.Observe(t0.Add(time.Duration(i+1)*time.Second), p, -90); err != nil {
					t.Fatalf("Observe() error = %v", err)
				}
			}

			text := buf.String()
			starts := strings.Count(text, eventlog.StartMarker(100e6))
			ends := strings.Count(text, "=== Segment End")
			if starts != ends {
				t.Errorf("log has %d start markers and %d end markers:\n%s", starts, ends, text)
			}

			events, err := eventlog.NewReader(strings.NewReader(text)).ReadAll()
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			last := events[len(events)-1]
			if last.Incomplete || last.Truncated || len(last.Readings) != 1 {
				t.Errorf("last event = %+v, want one complete reading", last)
			}

			var flakyStarts, flakyEnds int
			for _, c := range flaky.calls {
				if c.kind == "start" {
					flakyStarts++
				} else {
					flakyEnds++
				}
			}
			if flakyStarts != 1 || flakyEnds != 1 {
				t.Errorf("second sink saw %d starts and %d ends, want 1 and 1", flakyStarts, flakyEnds)
			}
		})
	}
}
