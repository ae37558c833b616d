package spectrum

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/dsp/window"
	"gonum.org/v1/gonum/floats"
)

// ErrNoSamples is returned when the estimator is handed an empty block
var ErrNoSamples = errors.New("no samples")

// Estimator converts a block of complex samples into a two-sided power spectral
// density and the matching baseband frequency axis, both ordered from -fs/2 upwards.
type Estimator interface {
	Estimate(samples []complex128, fftSize int, sampleRate float64) (power, freq []float64, err error)
}

// Welch averages Hann-windowed periodograms over consecutive non-overlapping
// blocks of fftSize samples. Short input is zero-padded to one block.
type Welch struct{}

func (Welch) Estimate(samples []complex128, fftSize int, sampleRate float64) ([]float64, []float64, error) {
	if len(samples) == 0 {
		return nil, nil, ErrNoSamples
	}
	if fftSize <= 0 {
		return nil, nil, fmt.Errorf("invalid FFT size: %d", fftSize)
	}
	if sampleRate <= 0 {
		return nil, nil, fmt.Errorf("invalid sample rate: %0.0f", sampleRate)
	}

	ones := make([]float64, fftSize)
	for i := range ones {
		ones[i] = 1
	}
	w := window.Hann(ones)
	norm := floats.Dot(w, w) * sampleRate

	fft := fourier.NewCmplxFFT(fftSize)
	seq := make([]complex128, fftSize)
	coeff := make([]complex128, fftSize)
	acc := make([]float64, fftSize)

	blocks := len(samples) / fftSize
	if blocks == 0 {
		blocks = 1
	}

	for b := 0; b < blocks; b++ {
		clear(seq)
		block := samples[b*fftSize : min((b+1)*fftSize, len(samples))]
		for i, s := range block {
			seq[i] = s * complex(w[i], 0)
		}

		coeff = fft.Coefficients(coeff, seq)
		for i, c := range coeff {
			acc[i] += real(c)*real(c) + imag(c)*imag(c)
		}
	}

	power := make([]float64, fftSize)
	freq := make([]float64, fftSize)
	half := fftSize / 2
	for i := range power {
		// fftshift: negative frequencies first
		src := (i - half + fftSize) % fftSize
		power[i] = acc[src] / (float64(blocks) * norm)
		freq[i] = float64(i-half) * sampleRate / float64(fftSize)
	}

	return power, freq, nil
}
