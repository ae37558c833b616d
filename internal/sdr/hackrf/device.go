package hackrf

import (
	"context"
	"fmt"
	"os/exec"

	"github.com/roman-kulish/spectrum-watch/internal/sdr"
)

const (
	Runtime = "hackrf_transfer"
	Device  = "HackRF"

	// hackrf_transfer emits signed 8-bit I/Q pairs
	bytesPerSample = 2
	fullScale      = 128.0
)

// handler struct represents a HackRF handler
type handler struct {
	binPath string
	config  Config
}

// New creates a new HackRF handler
func New(config *Config) (sdr.Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	binPath, err := sdr.FindRuntime(Runtime)
	if err != nil {
		return nil, fmt.Errorf("error finding runtime: %w", err)
	}

	return &handler{binPath, *config}, nil
}

// Cmd returns an exec.Cmd for the HackRF handler
func (h handler) Cmd(ctx context.Context, centerFreq float64, numSamples int) (*exec.Cmd, error) {
	args, err := h.config.Args(centerFreq, numSamples)
	if err != nil {
		return nil, err
	}
	return exec.CommandContext(ctx, h.binPath, args...), nil
}

// Decode converts signed 8-bit interleaved I/Q bytes into complex samples
func (h handler) Decode(raw []byte, dst []complex128) error {
	return DecodeS8(raw, dst)
}

func (h handler) BytesPerSample() int {
	return bytesPerSample
}

func (h handler) SampleRate() float64 {
	return float64(h.config.Rate())
}

// Device returns the device type
func (h handler) Device() string {
	return Device
}

// DecodeS8 converts signed 8-bit interleaved I/Q bytes into complex samples in [-1, 1)
func DecodeS8(raw []byte, dst []complex128) error {
	if len(raw) != len(dst)*bytesPerSample {
		return fmt.Errorf("hackrf: expected %d bytes, got %d", len(dst)*bytesPerSample, len(raw))
	}

	for i := range dst {
		re := float64(int8(raw[2*i])) / fullScale
		im := float64(int8(raw[2*i+1])) / fullScale
		dst[i] = complex(re, im)
	}
	return nil
}
