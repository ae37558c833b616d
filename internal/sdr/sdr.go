package sdr

import "context"

// FrontEnd is a tunable radio receiver delivering blocks of complex baseband samples.
// Retuning is exclusive: callers must not issue concurrent calls on the same FrontEnd.
type FrontEnd interface {
	// SetCenterFrequency tunes the receiver to the given center frequency in Hz.
	SetCenterFrequency(ctx context.Context, hz float64) error

	// ReadSamples reads exactly n complex samples at the current center frequency.
	// Any hardware or I/O problem is reported as an error and no samples are returned.
	ReadSamples(ctx context.Context, n int) ([]complex128, error)

	// SampleRate returns the configured sample rate in Hz.
	SampleRate() float64

	// Close releases the receiver.
	Close() error
}
