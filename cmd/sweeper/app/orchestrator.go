package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
	"github.com/roman-kulish/spectrum-watch/internal/storage"
	"github.com/roman-kulish/spectrum-watch/internal/waterfall"
)

// Cycler runs one complete scan cycle.
type Cycler interface {
	Cycle(ctx context.Context) (*spectrum.CycleSpan, error)
}

// Observer consumes the per-segment readings of every cycle.
type Observer interface {
	Observe(readings []spectrum.SegmentReading) error
	Close() error
}

// WithLogger sets the logger for the orchestrator
func WithLogger(logger *slog.Logger) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithStore mirrors every cycle into the store under the given session
func WithStore(store storage.Store, sessionID int64) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.store = store
		o.sessionID = sessionID
	}
}

// WithDisplay periodically renders the waterfall to path
func WithDisplay(renderer *render.Renderer, path string, format render.Format, interval time.Duration) func(*Orchestrator) {
	return func(o *Orchestrator) {
		o.renderer = renderer
		o.displayPath = path
		o.displayFormat = format
		o.displayInterval = interval
	}
}

// Orchestrator runs scan cycles on a fixed interval and feeds every completed
// cycle to the monitor, the waterfall buffer and, optionally, the store. The
// display sink runs on its own goroutine from waterfall snapshots.
type Orchestrator struct {
	scanner   Cycler
	monitor   Observer
	waterfall *waterfall.Buffer
	interval  time.Duration

	store     storage.Store
	sessionID int64

	renderer        *render.Renderer
	displayPath     string
	displayFormat   render.Format
	displayInterval time.Duration

	logger *slog.Logger

	wg sync.WaitGroup
}

// NewOrchestrator creates a new Orchestrator
func NewOrchestrator(scanner Cycler, monitor Observer, buffer *waterfall.Buffer, interval time.Duration, options ...func(*Orchestrator)) (*Orchestrator, error) {
	if scanner == nil || monitor == nil || buffer == nil {
		return nil, errors.New("scanner, monitor and waterfall buffer are required")
	}
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be positive: %s", interval)
	}

	o := Orchestrator{
		scanner:   scanner,
		monitor:   monitor,
		waterfall: buffer,
		interval:  interval,
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&o)
	}

	return &o, nil
}

// Run scans until ctx is cancelled or a cycle fails. Cancellation is
// honored between cycles only; a started cycle always runs to completion. On
// return every open recording has been flushed as incomplete.
func (o *Orchestrator) Run(ctx context.Context) (err error) {
	displayCtx, stopDisplay := context.WithCancel(ctx)
	defer o.wg.Wait()
	defer stopDisplay()

	if o.renderer != nil {
		o.wg.Add(1)
		go o.display(displayCtx)
	}

	defer func() {
		if cErr := o.monitor.Close(); cErr != nil {
			err = errors.Join(err, fmt.Errorf("flushing recordings: %w", cErr))
		}
	}()

	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()

	for {
		if err = o.cycle(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			o.logger.Info("shutting down")
			return nil
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) cycle(ctx context.Context) error {
	// In-cycle work is bounded by the acquirer's attempt timeout and retry count
	// Retries happen inside the acquirer; any error reaching this point ends the run.
	span, err := o.scanner.Cycle(context.WithoutCancel(ctx))
	if err != nil {
		return fmt.Errorf("scan cycle: %w", err)
	}

	if err = o.monitor.Observe(span.Segments); err != nil {
		o.logger.Error("recording events", slog.String("error", err.Error()))
	}

	o.waterfall.Push(span.Row)

	if o.store != nil {
		if err = o.store.StoreCycle(context.WithoutCancel(ctx), o.sessionID, span); err != nil {
			o.logger.Error("storing cycle", slog.String("error", err.Error()))
		}
	}

	return nil
}

func (o *Orchestrator) display(ctx context.Context) {
	defer o.wg.Done()

	ticker := time.NewTicker(o.displayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := o.renderDisplay(); err != nil {
				o.logger.Warn("rendering display", slog.String("error", err.Error()))
			}
		}
	}
}

func (o *Orchestrator) renderDisplay() error {
	snap := o.waterfall.Snapshot()
	if len(snap.Rows) == 0 {
		return nil
	}

	img, err := o.renderer.Render(&snap)
	if err != nil {
		return err
	}
	return render.WriteFile(o.displayPath, img, o.displayFormat)
}
