package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/scan"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/waterfall"
)

type cyclerFunc func(ctx context.Context, n int) (*spectrum.CycleSpan, error)

type fakeCycler struct {
	mu    sync.Mutex
	calls int
	fn    cyclerFunc
}

func (c *fakeCycler) Cycle(ctx context.Context) (*spectrum.CycleSpan, error) {
	c.mu.Lock()
	c.calls++
	n := c.calls
	c.mu.Unlock()

	return c.fn(ctx, n)
}

func (c *fakeCycler) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

type fakeObserver struct {
	mu       sync.Mutex
	observed int
	closed   bool
}

func (o *fakeObserver) Observe([]spectrum.SegmentReading) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.observed++
	return nil
}

func (o *fakeObserver) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

func testSpan() *spectrum.CycleSpan {
	now := time.Now()
	return &spectrum.CycleSpan{
		Timestamp:      now,
		FrequencyStart: 100e6,
		FrequencyEnd:   102e6,
		Segments: []spectrum.SegmentReading{
			{Index: 0, CenterFrequency: 100.5e6, Power: -80, Timestamp: now},
			{Index: 1, CenterFrequency: 101.5e6, Power: -70, Timestamp: now},
		},
		Row: []float64{-81, -79, -71, -69},
	}
}

var errFatal = &scan.AcquireError{Outcome: scan.Fatal, Frequency: 100e6, Attempts: 3, Err: scan.ErrRetriesExhausted}

func newTestBuffer(t *testing.T) *waterfall.Buffer {
	t.Helper()

	b, err := waterfall.New(10, 4, waterfall.WithExtent(100e6, 102e6))
	if err != nil {
		t.Fatalf("waterfall.New() error = %v", err)
	}
	return b
}

func TestOrchestrator_CycleErrorStopsRun(t *testing.T) {
	errDecode := errors.New("decoding samples")

	tests := []struct {
		name    string
		failure error
		fatal   bool
	}{
		{name: "fatal acquisition", failure: errFatal, fatal: true},
		{name: "any other error", failure: errDecode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cycler := &fakeCycler{fn: func(_ context.Context, n int) (*spectrum.CycleSpan, error) {
				if n >= 3 {
					return nil, tt.failure
				}
				return testSpan(), nil
			}}
			observer := &fakeObserver{}
			buffer := newTestBuffer(t)

			o, err := NewOrchestrator(cycler, observer, buffer, time.Millisecond)
			if err != nil {
				t.Fatalf("NewOrchestrator() error = %v", err)
			}

			err = o.Run(context.Background())
			if !errors.Is(err, tt.failure) {
				t.Fatalf("Run() error = %v, want %v", err, tt.failure)
			}
			if scan.IsFatal(err) != tt.fatal {
				t.Errorf("IsFatal(%v) = %v, want %v", err, scan.IsFatal(err), tt.fatal)
			}

			if got := cycler.Calls(); got != 3 {
				t.Errorf("cycles = %d, want 3", got)
			}
			if observer.observed != 2 {
				t.Errorf("observed = %d, want 2", observer.observed)
			}
			if !observer.closed {
				t.Error("monitor not closed after a failed cycle")
			}
			if buffer.Len() != 2 {
				t.Errorf("waterfall rows = %d, want 2", buffer.Len())
			}
		})
	}
}

func TestOrchestrator_CancelBetweenCycles(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cycler := &fakeCycler{fn: func(cycleCtx context.Context, n int) (*spectrum.CycleSpan, error) {
		if n == 3 {
			cancel()
			// The cycle in flight keeps running after cancellation
			if cycleCtx.Err() != nil {
				return nil, errFatal
			}
		}
		return testSpan(), nil
	}}
	observer := &fakeObserver{}

	o, err := NewOrchestrator(cycler, observer, newTestBuffer(t), time.Millisecond)
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- o.Run(ctx)
	}()

	select {
	case err = <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not return after cancellation")
	}

	if err != nil {
		t.Errorf("Run() error = %v, want nil", err)
	}
	if cycler.Calls() < 3 {
		t.Errorf("cycles = %d, want at least 3", cycler.Calls())
	}
	if observer.observed < 3 {
		t.Errorf("observed = %d, want the cancelled cycle completed", observer.observed)
	}
	if !observer.closed {
		t.Error("monitor not closed on shutdown")
	}
}

func TestOrchestrator_Display(t *testing.T) {
	path := filepath.Join(t.TempDir(), "waterfall.png")

	renderer, err := render.NewRenderer(render.Config{NoAnnotations: true, MinWidth: 4, MaxWidth: 4, MinHeight: 4})
	if err != nil {
		t.Fatalf("NewRenderer() error = %v", err)
	}

	cycler := &fakeCycler{fn: func(_ context.Context, n int) (*spectrum.CycleSpan, error) {
		if n < 3 {
			return testSpan(), nil
		}

		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if _, err := os.Stat(path); err == nil {
				return nil, errFatal
			}
			time.Sleep(5 * time.Millisecond)
		}
		return nil, &scan.AcquireError{Outcome: scan.Fatal, Err: errors.New("display never written")}
	}}

	o, err := NewOrchestrator(cycler, &fakeObserver{}, newTestBuffer(t), time.Millisecond,
		WithDisplay(renderer, path, render.PNG, 10*time.Millisecond))
	if err != nil {
		t.Fatalf("NewOrchestrator() error = %v", err)
	}

	if err = o.Run(context.Background()); !errors.Is(err, scan.ErrRetriesExhausted) {
		t.Fatalf("Run() error = %v, want fatal error after the display was written", err)
	}
}

func TestNewOrchestrator_Errors(t *testing.T) {
	buffer := newTestBuffer(t)
	cycler := &fakeCycler{}

	if _, err := NewOrchestrator(nil, &fakeObserver{}, buffer, time.Second); err == nil {
		t.Error("expected error for missing scanner")
	}
	if _, err := NewOrchestrator(cycler, &fakeObserver{}, buffer, 0); err == nil {
		t.Error("expected error for zero interval")
	}
}
