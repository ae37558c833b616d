package spectrum

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"
)

func tone(n int, bin int, fftSize int) []complex128 {
	samples := make([]complex128, n)
	for i := range samples {
		samples[i] = cmplx.Exp(complex(0, 2*math.Pi*float64(bin)*float64(i)/float64(fftSize)))
	}
	return samples
}

func argmax(v []float64) int {
	best := 0
	for i := range v {
		if v[i] > v[best] {
			best = i
		}
	}
	return best
}

func TestWelch_Axis(t *testing.T) {
	power, freq, err := Welch{}.Estimate(tone(1024, 0, 256), 256, 2_048_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(power) != 256 || len(freq) != 256 {
		t.Fatalf("expected 256 bins, got %d/%d", len(power), len(freq))
	}
	if freq[0] != -1_024_000 {
		t.Errorf("expected first bin at -fs/2, got %0.0f", freq[0])
	}
	if freq[128] != 0 {
		t.Errorf("expected DC at the middle bin, got %0.0f", freq[128])
	}
	if got := argmax(power); got != 128 {
		t.Errorf("expected DC tone at bin 128, got %d", got)
	}
}

func TestWelch_TonePosition(t *testing.T) {
	// +32 bins above DC
	power, freq, err := Welch{}.Estimate(tone(512, 32, 256), 256, 256_000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	peak := argmax(power)
	if freq[peak] != 32_000 {
		t.Errorf("expected peak at 32 kHz, got %0.0f", freq[peak])
	}
}

func TestWelch_Parseval(t *testing.T) {
	// a unit tone carries unit power: the density integrates back to 1
	fs := 1_000_000.0
	power, _, err := Welch{}.Estimate(tone(4096, 10, 1024), 1024, fs)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var total float64
	for _, p := range power {
		total += p * fs / 1024
	}
	if math.Abs(total-1) > 0.01 {
		t.Errorf("expected total power ~1, got %f", total)
	}
}

func TestWelch_Errors(t *testing.T) {
	if _, _, err := (Welch{}).Estimate(nil, 256, 1e6); !errors.Is(err, ErrNoSamples) {
		t.Errorf("expected ErrNoSamples, got %v", err)
	}
	if _, _, err := (Welch{}).Estimate(tone(8, 0, 8), 0, 1e6); err == nil {
		t.Error("expected error for zero FFT size")
	}
}

type stubEstimator struct {
	power, freq []float64
	err         error
}

func (s stubEstimator) Estimate([]complex128, int, float64) ([]float64, []float64, error) {
	return s.power, s.freq, s.err
}

func TestAdapter_Spectrum(t *testing.T) {
	est := stubEstimator{
		power: []float64{1e-9, 1e-9, 1e-6, 1e-6, 1e-6, 1e-6, 1e-9, 1e-9},
		freq:  []float64{-4, -3, -2, -1, 0, 1, 2, 3},
	}

	a, err := NewAdapter(est, 8, 8, 0.5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Bins() != 4 {
		t.Errorf("expected 4 bins, got %d", a.Bins())
	}

	ps, err := a.Spectrum(nil, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := []float64{98, 99, 100, 101}
	for i, f := range want {
		if ps.Frequencies[i] != f {
			t.Errorf("bin %d: got %0.0f, want %0.0f", i, ps.Frequencies[i], f)
		}
	}
	if math.Abs(ps.MeanPowerDB-(-60)) > 1e-9 {
		t.Errorf("expected -60 dB, got %f", ps.MeanPowerDB)
	}
	if ps.BinWidth != 1 {
		t.Errorf("expected 1 Hz bins, got %f", ps.BinWidth)
	}
}

func TestAdapter_EstimatorError(t *testing.T) {
	boom := errors.New("boom")
	a, _ := NewAdapter(stubEstimator{err: boom}, 8, 8, 0)

	if _, err := a.Spectrum(nil, 100); !errors.Is(err, boom) {
		t.Errorf("expected wrapped estimator error, got %v", err)
	}
}

func TestNewAdapter_Validation(t *testing.T) {
	if _, err := NewAdapter(Welch{}, 256, 1e6, 1); err == nil {
		t.Error("expected error for crop 1")
	}
	if _, err := NewAdapter(nil, 256, 1e6, 0); err == nil {
		t.Error("expected error for missing estimator")
	}
}

func TestToDB(t *testing.T) {
	if got := ToDB(0.001); math.Abs(got-(-30)) > 1e-9 {
		t.Errorf("expected -30, got %f", got)
	}
	if got := ToDB(0); math.IsInf(got, -1) {
		t.Error("expected finite value for zero power")
	}
}
