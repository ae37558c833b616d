package spectrum

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// powerFloor keeps log10 finite for empty bins
const powerFloor = 1e-20

// Adapter runs an Estimator and places its output on the absolute frequency axis.
type Adapter struct {
	estimator  Estimator
	fftSize    int
	sampleRate float64
	crop       float64
}

// NewAdapter creates an adapter. crop is the fraction of bins dropped from the
// spectrum edges, split evenly between both sides; 0 keeps every bin.
func NewAdapter(estimator Estimator, fftSize int, sampleRate, crop float64) (*Adapter, error) {
	if estimator == nil {
		return nil, fmt.Errorf("estimator is required")
	}
	if fftSize <= 0 {
		return nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate: %0.0f", sampleRate)
	}
	if crop < 0 || crop >= 1 {
		return nil, fmt.Errorf("crop must be in [0, 1): %0.3f given", crop)
	}

	return &Adapter{
		estimator:  estimator,
		fftSize:    fftSize,
		sampleRate: sampleRate,
		crop:       crop,
	}, nil
}

// Bins returns the number of bins every spectrum produced by this adapter carries.
func (a *Adapter) Bins() int {
	lo, hi := a.window(a.fftSize)
	return hi - lo
}

// Span returns the width in Hz covered by the kept bins.
func (a *Adapter) Span() float64 {
	return float64(a.Bins()) * a.sampleRate / float64(a.fftSize)
}

// Spectrum estimates the power spectrum of samples captured at center.
func (a *Adapter) Spectrum(samples []complex128, center float64) (*PowerSpectrum, error) {
	power, freq, err := a.estimator.Estimate(samples, a.fftSize, a.sampleRate)
	if err != nil {
		return nil, fmt.Errorf("estimating spectrum: %w", err)
	}
	if len(power) != len(freq) {
		return nil, fmt.Errorf("estimator returned %d power bins and %d frequencies", len(power), len(freq))
	}
	if len(power) == 0 {
		return nil, ErrNoSamples
	}

	lo, hi := a.window(len(power))
	power = power[lo:hi]
	freq = freq[lo:hi]

	ps := PowerSpectrum{
		CenterFrequency: center,
		Frequencies:     make([]float64, len(freq)),
		Power:           make([]float64, len(power)),
		PowerDB:         make([]float64, len(power)),
		MeanPowerDB:     ToDB(stat.Mean(power, nil)),
		BinWidth:        a.sampleRate / float64(a.fftSize),
	}

	copy(ps.Power, power)
	for i := range freq {
		ps.Frequencies[i] = center + freq[i]
		ps.PowerDB[i] = ToDB(power[i])
	}

	return &ps, nil
}

func (a *Adapter) window(n int) (int, int) {
	drop := int(math.Floor(float64(n) * a.crop / 2))
	return drop, n - drop
}

// ToDB converts a linear power value to decibels.
func ToDB(p float64) float64 {
	return 10 * math.Log10(math.Max(p, powerFloor))
}
