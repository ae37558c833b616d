package monitor

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const DefaultSmoothing = 0.01

// Phase of a segment baseline.
type Phase int

const (
	WarmingUp Phase = iota
	Tracking
)

func (p Phase) String() string {
	switch p {
	case WarmingUp:
		return "warming-up"
	case Tracking:
		return "tracking"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// WarmupCycles converts a warm-up duration into a number of scan cycles.
func WarmupCycles(warmup, interval time.Duration) int {
	if warmup <= 0 || interval <= 0 {
		return 1
	}
	return max(1, int(math.Ceil(float64(warmup)/float64(interval))))
}

// Baseline is the adaptive noise-floor estimate of one segment. It averages the
// first W values, then follows an exponential moving average.
type Baseline struct {
	phase  Phase
	warmup []float64 // fixed size W, allocated up front
	seen   int
	value  float64
	alpha  float64
}

// NewBaseline creates a baseline that warms up over cycles values and then
// tracks with smoothing factor alpha.
func NewBaseline(cycles int, alpha float64) (*Baseline, error) {
	if cycles < 1 {
		return nil, fmt.Errorf("warm-up cycles must be at least 1: %d", cycles)
	}
	if alpha <= 0 || alpha > 1 {
		return nil, fmt.Errorf("smoothing factor must be in (0, 1]: %f", alpha)
	}

	return &Baseline{
		phase:  WarmingUp,
		warmup: make([]float64, cycles),
		alpha:  alpha,
	}, nil
}

// Update folds the current cycle's power into the baseline and returns the new value.
func (b *Baseline) Update(power float64) float64 {
	b.seen++

	if b.phase == WarmingUp {
		n := b.seen
		b.warmup[n-1] = power
		b.value = stat.Mean(b.warmup[:n], nil)

		if n == len(b.warmup) {
			b.phase = Tracking
		}
		return b.value
	}

	// b*(1-a) + x*a, written so that x == b is an exact fixed point
	b.value += b.alpha * (power - b.value)
	return b.value
}

func (b *Baseline) Phase() Phase {
	return b.phase
}

// Value returns the current baseline. While warming up it is the mean of the values seen so far.
func (b *Baseline) Value() float64 {
	return b.value
}

func (b *Baseline) SamplesSeen() int {
	return b.seen
}

// WarmupCycles returns W.
func (b *Baseline) WarmupCycles() int {
	return len(b.warmup)
}
