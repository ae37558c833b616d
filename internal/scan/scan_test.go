package scan

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

type fakeFrontEnd struct {
	tuned    []float64
	reads    int
	failures int // number of leading ReadSamples calls that fail
	readErr  error
}

func (f *fakeFrontEnd) SetCenterFrequency(_ context.Context, hz float64) error {
	f.tuned = append(f.tuned, hz)
	return nil
}

func (f *fakeFrontEnd) ReadSamples(_ context.Context, n int) ([]complex128, error) {
	f.reads++
	if f.failures < 0 || f.reads <= f.failures {
		return nil, f.readErr
	}
	return make([]complex128, n), nil
}

func (f *fakeFrontEnd) SampleRate() float64 { return 2_400_000 }

func (f *fakeFrontEnd) Close() error { return nil }

// flatSpectrometer reports the same three bins around every center
type flatSpectrometer struct {
	power float64
}

func (s flatSpectrometer) Spectrum(_ []complex128, center float64) (*spectrum.PowerSpectrum, error) {
	return &spectrum.PowerSpectrum{
		CenterFrequency: center,
		Frequencies:     []float64{center - 1, center, center + 1},
		PowerDB:         []float64{s.power, s.power, s.power},
		MeanPowerDB:     s.power,
		BinWidth:        1,
	}, nil
}

func noSleep(a *Acquirer) {
	a.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
}

func TestSegments(t *testing.T) {
	segments, err := Segments(100e6, 104e6, 2e6, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{100e6, 101e6, 102e6, 103e6}
	if len(segments) != len(want) {
		t.Fatalf("expected %d segments, got %d", len(want), len(segments))
	}
	for i, f := range want {
		if segments[i].Index != i || segments[i].CenterFrequency != f {
			t.Errorf("segment %d: got %+v, want center %0.0f", i, segments[i], f)
		}
	}
}

func TestSegments_Deterministic(t *testing.T) {
	a, _ := Segments(88e6, 108e6, 2.4e6, 0.2)
	b, _ := Segments(88e6, 108e6, 2.4e6, 0.2)

	if len(a) != len(b) {
		t.Fatalf("segment count differs: %d vs %d", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Errorf("segment %d differs: %+v vs %+v", i, a[i], b[i])
		}
	}
}

func TestSegments_Validation(t *testing.T) {
	tests := []struct {
		name                          string
		start, end, bandwidth, overlap float64
	}{
		{"zero start", 0, 10, 1, 0},
		{"inverted range", 10, 5, 1, 0},
		{"zero bandwidth", 1, 10, 0, 0},
		{"full overlap", 1, 10, 1, 1},
		{"negative overlap", 1, 10, 1, -0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Segments(tt.start, tt.end, tt.bandwidth, tt.overlap); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAcquirer_FatalAfterRetries(t *testing.T) {
	fe := &fakeFrontEnd{failures: -1, readErr: errors.New("usb error")}

	a, err := NewAcquirer(fe, flatSpectrometer{-90}, 1024, WithRetries(3), noSleep)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ps, err := a.Acquire(context.Background(), 915e6)
	if ps != nil {
		t.Error("expected no data on fatal failure")
	}
	if fe.reads != 3 {
		t.Errorf("expected exactly 3 attempts, got %d", fe.reads)
	}
	if !IsFatal(err) {
		t.Fatalf("expected fatal error, got %v", err)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("expected ErrRetriesExhausted, got %v", err)
	}

	var ae *AcquireError
	if errors.As(err, &ae) && ae.Attempts != 3 {
		t.Errorf("expected 3 attempts recorded, got %d", ae.Attempts)
	}
}

func TestAcquirer_RecoversWithinBound(t *testing.T) {
	fe := &fakeFrontEnd{failures: 2, readErr: errors.New("timeout")}

	var slept []time.Duration
	a, _ := NewAcquirer(fe, flatSpectrometer{-80}, 1024,
		WithRetries(3),
		WithRetryDelay(250*time.Millisecond),
		func(a *Acquirer) {
			a.sleep = func(_ context.Context, d time.Duration) error {
				slept = append(slept, d)
				return nil
			}
		})

	ps, err := a.Acquire(context.Background(), 433e6)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ps.MeanPowerDB != -80 {
		t.Errorf("unexpected power %f", ps.MeanPowerDB)
	}
	if fe.reads != 3 {
		t.Errorf("expected 3 reads, got %d", fe.reads)
	}
	if len(slept) != 2 || slept[0] != 250*time.Millisecond {
		t.Errorf("expected two fixed delays, got %v", slept)
	}
}

func TestAcquirer_Validation(t *testing.T) {
	fe := &fakeFrontEnd{}

	if _, err := NewAcquirer(fe, flatSpectrometer{}, 1024, WithRetries(0)); err == nil {
		t.Error("expected error for zero retries")
	}
	if _, err := NewAcquirer(fe, nil, 1024); err == nil {
		t.Error("expected error for missing spectrometer")
	}
	if _, err := NewAcquirer(fe, flatSpectrometer{}, 0); err == nil {
		t.Error("expected error for zero samples")
	}
}

func TestScanner_Cycle(t *testing.T) {
	segments, _ := Segments(100, 106, 2, 0)
	fe := &fakeFrontEnd{}
	a, _ := NewAcquirer(fe, flatSpectrometer{-70}, 8, noSleep)

	s, err := NewScanner(segments, a, 8)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	span, err := s.Cycle(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(span.Segments) != 3 {
		t.Fatalf("expected 3 readings, got %d", len(span.Segments))
	}
	if len(span.Row) != 9 {
		t.Errorf("expected 9 bins in the row, got %d", len(span.Row))
	}
	if span.FrequencyStart != 99 || span.FrequencyEnd != 105 {
		t.Errorf("unexpected extent %0.0f-%0.0f", span.FrequencyStart, span.FrequencyEnd)
	}

	// sequential, index order
	want := []float64{100, 102, 104}
	for i, f := range want {
		if fe.tuned[i] != f {
			t.Errorf("tune %d: got %0.0f, want %0.0f", i, fe.tuned[i], f)
		}
	}
	for i, p := range span.Powers() {
		if p != -70 {
			t.Errorf("segment %d power %f", i, p)
		}
	}
}

func TestScanner_CycleAbortsOnFatal(t *testing.T) {
	segments, _ := Segments(100, 106, 2, 0)
	fe := &fakeFrontEnd{failures: -1, readErr: errors.New("gone")}
	a, _ := NewAcquirer(fe, flatSpectrometer{-70}, 8, WithRetries(2), noSleep)
	s, _ := NewScanner(segments, a, 8)

	span, err := s.Cycle(context.Background())
	if span != nil {
		t.Error("expected no partial cycle")
	}
	if !IsFatal(err) {
		t.Errorf("expected fatal error, got %v", err)
	}
	if len(fe.tuned) != 2 {
		t.Errorf("expected only the first segment to be attempted, tuned %v", fe.tuned)
	}
}
