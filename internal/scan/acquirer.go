package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/metrics"
	"github.com/roman-kulish/spectrum-watch/internal/sdr"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

const (
	DefaultRetries        = 3
	DefaultRetryDelay     = time.Second
	DefaultAttemptTimeout = 10 * time.Second
)

// ErrRetriesExhausted is wrapped by the fatal AcquireError returned once every attempt failed
var ErrRetriesExhausted = errors.New("acquisition retries exhausted")

// Outcome classifies an acquisition failure.
type Outcome int

const (
	// Retryable failures are transient and may succeed on the next attempt.
	Retryable Outcome = iota

	// Fatal failures end the monitoring run. Callers must not continue scanning.
	Fatal
)

func (o Outcome) String() string {
	switch o {
	case Retryable:
		return "retryable"
	case Fatal:
		return "fatal"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// AcquireError is returned by the Acquirer for a failed segment acquisition.
type AcquireError struct {
	Outcome   Outcome
	Frequency float64
	Attempts  int
	Err       error
}

func (e *AcquireError) Error() string {
	return fmt.Sprintf("%s acquisition failure at %0.0f Hz after %d attempt(s): %s", e.Outcome, e.Frequency, e.Attempts, e.Err)
}

func (e *AcquireError) Unwrap() error {
	return e.Err
}

// IsFatal reports whether err carries a fatal acquisition outcome.
func IsFatal(err error) bool {
	var ae *AcquireError
	return errors.As(err, &ae) && ae.Outcome == Fatal
}

// Spectrometer turns a captured sample block into a power spectrum.
type Spectrometer interface {
	Spectrum(samples []complex128, center float64) (*spectrum.PowerSpectrum, error)
}

// WithRetries sets the maximum number of attempts per acquisition
func WithRetries(retries int) func(*Acquirer) {
	return func(a *Acquirer) {
		a.retries = retries
	}
}

// WithRetryDelay sets the fixed delay between attempts
func WithRetryDelay(d time.Duration) func(*Acquirer) {
	return func(a *Acquirer) {
		a.delay = d
	}
}

// WithAttemptTimeout bounds a single attempt, so a hung capture tool counts as a failure
func WithAttemptTimeout(d time.Duration) func(*Acquirer) {
	return func(a *Acquirer) {
		a.attemptTimeout = d
	}
}

// WithLogger sets the logger for the acquirer
func WithLogger(logger *slog.Logger) func(*Acquirer) {
	return func(a *Acquirer) {
		a.logger = logger
	}
}

// WithMetrics sets the metrics the acquirer reports attempts and failures to
func WithMetrics(m *metrics.Metrics) func(*Acquirer) {
	return func(a *Acquirer) {
		a.metrics = m
	}
}

// Acquirer tunes the front end, captures a sample block and estimates its
// spectrum, retrying a bounded number of times with a fixed delay.
type Acquirer struct {
	frontEnd     sdr.FrontEnd
	spectrometer Spectrometer
	numSamples   int

	retries        int
	delay          time.Duration
	attemptTimeout time.Duration

	sleep   func(ctx context.Context, d time.Duration) error
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewAcquirer creates a new Acquirer
func NewAcquirer(frontEnd sdr.FrontEnd, spectrometer Spectrometer, numSamples int, options ...func(*Acquirer)) (*Acquirer, error) {
	a := Acquirer{
		frontEnd:       frontEnd,
		spectrometer:   spectrometer,
		numSamples:     numSamples,
		retries:        DefaultRetries,
		delay:          DefaultRetryDelay,
		attemptTimeout: DefaultAttemptTimeout,
		sleep:          sleep,
		logger:         slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&a)
	}

	switch {
	case frontEnd == nil:
		return nil, errors.New("front end is required")
	case spectrometer == nil:
		return nil, errors.New("spectrometer is required")
	case numSamples <= 0:
		return nil, fmt.Errorf("number of samples must be positive: %d", numSamples)
	case a.retries < 1:
		return nil, fmt.Errorf("retries must be at least 1: %d", a.retries)
	case a.delay < 0:
		return nil, fmt.Errorf("retry delay must not be negative: %s", a.delay)
	}

	return &a, nil
}

// Acquire returns the power spectrum of the segment centred at center. After the
// configured number of consecutive failures it returns a fatal *AcquireError and
// no data; it never substitutes stale or synthetic values.
func (a *Acquirer) Acquire(ctx context.Context, center float64) (*spectrum.PowerSpectrum, error) {
	var lastErr error

	for attempt := 1; attempt <= a.retries; attempt++ {
		a.metrics.AcquisitionAttempt()

		ps, err := a.attempt(ctx, center)
		if err == nil {
			return ps, nil
		}

		lastErr = err
		a.metrics.AcquisitionFailure(Retryable.String())
		a.logger.Warn("acquisition failed",
			slog.Float64("frequency", center),
			slog.Int("attempt", attempt),
			slog.Int("retries", a.retries),
			slog.String("error", err.Error()))

		if attempt == a.retries {
			break
		}

		if err = a.sleep(ctx, a.delay); err != nil {
			return nil, &AcquireError{
				Outcome:   Fatal,
				Frequency: center,
				Attempts:  attempt,
				Err:       errors.Join(err, lastErr),
			}
		}
	}

	a.metrics.AcquisitionFailure(Fatal.String())

	return nil, &AcquireError{
		Outcome:   Fatal,
		Frequency: center,
		Attempts:  a.retries,
		Err:       fmt.Errorf("%w: %w", ErrRetriesExhausted, lastErr),
	}
}

func (a *Acquirer) attempt(ctx context.Context, center float64) (*spectrum.PowerSpectrum, error) {
	if a.attemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.attemptTimeout)
		defer cancel()
	}

	if err := a.frontEnd.SetCenterFrequency(ctx, center); err != nil {
		return nil, fmt.Errorf("tuning: %w", err)
	}

	samples, err := a.frontEnd.ReadSamples(ctx, a.numSamples)
	if err != nil {
		return nil, fmt.Errorf("reading samples: %w", err)
	}

	ps, err := a.spectrometer.Spectrum(samples, center)
	if err != nil {
		return nil, err
	}

	return ps, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
