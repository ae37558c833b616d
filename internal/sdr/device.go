package sdr

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
)

var (
	// ErrNotTuned is returned when samples are requested before a center frequency is set
	ErrNotTuned = errors.New("center frequency is not set")

	// ErrClosed is returned when the device has been closed
	ErrClosed = errors.New("device is closed")

	// ErrShortRead is returned when the capture tool exits before delivering all samples
	ErrShortRead = errors.New("short read")

	// ErrBrokenPipe is returned when there's an error reading from stdout or stderr
	ErrBrokenPipe = errors.New("broken pipe")
)

// Handler interface defines the methods required for driving a vendor capture tool
type Handler interface {
	// Cmd returns the command capturing numSamples IQ samples at centerFreq to stdout.
	Cmd(ctx context.Context, centerFreq float64, numSamples int) (*exec.Cmd, error)

	// Decode converts raw interleaved IQ bytes into complex samples.
	Decode(raw []byte, dst []complex128) error

	// BytesPerSample is the size of one raw IQ pair.
	BytesPerSample() int

	// SampleRate returns the configured sample rate in Hz.
	SampleRate() float64

	// Device returns the device type.
	Device() string
}

// WithLogger sets the logger for the device
func WithLogger(logger *slog.Logger) func(d *Device) {
	return func(d *Device) {
		d.logger = logger.With(
			slog.String("device", d.handler.Device()),
			slog.String("deviceID", d.deviceID),
		)
	}
}

// Device represents an SDR driven by a vendor capture tool. Every ReadSamples call
// runs the tool once at the tuned frequency and collects its stdout.
type Device struct {
	deviceID string
	handler  Handler

	mu         sync.Mutex
	centerFreq float64
	closed     bool

	logger *slog.Logger
}

// NewDevice creates a new Device instance with a discard logger
func NewDevice(deviceID string, h Handler, options ...func(d *Device)) *Device {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // nil logger

	d := Device{
		deviceID: deviceID,
		handler:  h,
		logger:   logger,
	}

	for _, option := range options {
		option(&d)
	}

	return &d
}

// DeviceID returns the human-readable device identifier
func (d *Device) DeviceID() string {
	return d.deviceID
}

// Device returns the device type
func (d *Device) Device() string {
	return d.handler.Device()
}

// SampleRate returns the configured sample rate in Hz
func (d *Device) SampleRate() float64 {
	return d.handler.SampleRate()
}

// SetCenterFrequency records the frequency used by subsequent captures.
func (d *Device) SetCenterFrequency(_ context.Context, hz float64) error {
	if hz <= 0 {
		return fmt.Errorf("invalid center frequency: %0.0f", hz)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrClosed
	}

	d.centerFreq = hz
	return nil
}

// ReadSamples runs the capture tool and decodes exactly n samples from its output.
func (d *Device) ReadSamples(ctx context.Context, n int) ([]complex128, error) {
	if n <= 0 {
		return nil, fmt.Errorf("invalid number of samples: %d", n)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, ErrClosed
	}
	if d.centerFreq == 0 {
		return nil, ErrNotTuned
	}

	cmd, err := d.handler.Cmd(ctx, d.centerFreq, n)
	if err != nil {
		return nil, fmt.Errorf("error building command: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stdout pipe: %w", err)
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("error creating stderr pipe: %w", err)
	}

	if err = cmd.Start(); err != nil {
		return nil, fmt.Errorf("error starting command: %w", err)
	}

	stderrDone := make(chan error, 1)
	go d.handleStderr(stderr, stderrDone)

	raw := make([]byte, n*d.handler.BytesPerSample())
	readErr := d.handleStdout(stdout, raw)

	errs := []error{readErr, <-stderrDone}

	waitErr := cmd.Wait()
	switch {
	case ctx.Err() != nil:
		errs = append(errs, fmt.Errorf("command interrupted: %w", ctx.Err()))

	case waitErr != nil && readErr != nil:
		errs = append(errs, fmt.Errorf("command exited with error: %w", waitErr))

	case waitErr != nil:
		// all bytes were read, the exit status alone does not invalidate the block
		d.logger.Debug(fmt.Sprintf("%s exited: %s", d.handler.Device(), waitErr.Error()))
	}

	if err = errors.Join(errs...); err != nil {
		return nil, err
	}

	samples := make([]complex128, n)
	if err = d.handler.Decode(raw, samples); err != nil {
		return nil, fmt.Errorf("decoding samples: %w", err)
	}

	return samples, nil
}

// Close marks the device as closed. Subsequent calls fail with ErrClosed.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

// handleStdout reads the expected number of bytes from stdout and drains the rest.
func (d *Device) handleStdout(stdout io.Reader, raw []byte) error {
	if _, err := io.ReadFull(stdout, raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: expected %d bytes", ErrShortRead, len(raw))
		}
		return fmt.Errorf("%w: error reading stdout: %w", ErrBrokenPipe, err)
	}

	// Some tools overshoot the requested count, never block Wait on unread output.
	_, _ = io.Copy(io.Discard, stdout)
	return nil
}

// handleStderr reads from stderr and logs the tool diagnostics.
func (d *Device) handleStderr(stderr io.Reader, done chan<- error) {
	scanner := bufio.NewScanner(stderr)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" {
			continue
		}

		d.logger.Debug(fmt.Sprintf("%s >> %s", d.handler.Device(), line))
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, fs.ErrClosed) {
		done <- fmt.Errorf("%w: error reading stderr: %w", ErrBrokenPipe, err)
		return
	}

	done <- nil
}
