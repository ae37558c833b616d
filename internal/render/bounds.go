package render

import (
	"math"
)

const (
	defaultMinPower = -120.0 // dB
	defaultMaxPower = -20.0  // dB

	// For 20 samples:
	// - 5% percentile  = 1 sample
	// - 95% percentile = 19th sample
	minimumSampleCount = 20

	minimumRange = 30 // dB
)

// PowerBounds represents the calculated power boundaries
type PowerBounds struct {
	Min  float64 // 5th percentile power level in dB, minus margin
	Max  float64 // 95th percentile power level in dB, plus margin
	Mean float64 // Mean power level in dB
}

func defaultPowerBounds() PowerBounds {
	return PowerBounds{
		Min:  defaultMinPower,
		Max:  defaultMaxPower,
		Mean: (defaultMinPower + defaultMaxPower) / 2,
	}
}

// Normalize maps power into [0, 1] relative to the bounds.
func (b PowerBounds) Normalize(power float64) float64 {
	if math.IsNaN(power) {
		return power
	}
	if b.Max <= b.Min {
		return 0
	}
	return clamp01((power - b.Min) / (b.Max - b.Min))
}

// PowerHistogram maintains a histogram of power values with 1 dB bins
type PowerHistogram struct {
	bins       map[int]uint32 // Map of bin index to count
	totalCount uint64
	minBin     int
	maxBin     int
}

func NewPowerHistogram() *PowerHistogram {
	return &PowerHistogram{
		bins:   make(map[int]uint32),
		minBin: math.MaxInt32,
		maxBin: math.MinInt32,
	}
}

// scaleDown halves all bin counts
func (h *PowerHistogram) scaleDown() {
	h.minBin = math.MaxInt32
	h.maxBin = math.MinInt32

	for bin := range h.bins {
		h.bins[bin] /= 2
		if h.bins[bin] == 0 {
			delete(h.bins, bin)
			continue
		}

		h.minBin = min(h.minBin, bin)
		h.maxBin = max(h.maxBin, bin)
	}
	h.totalCount /= 2
}

// Update adds a power reading to the histogram. NaN and infinite values are ignored.
func (h *PowerHistogram) Update(power float64) {
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return
	}

	bin := int(math.Floor(power))

	if h.bins[bin] == math.MaxUint32 || h.totalCount == math.MaxUint64 {
		h.scaleDown()
	}

	h.bins[bin]++
	h.totalCount++

	h.minBin = min(h.minBin, bin)
	h.maxBin = max(h.maxBin, bin)
}

func (h *PowerHistogram) Count() uint64 {
	return h.totalCount
}

// Bounds returns power bounds based on the 5th and 95th percentiles, widened to
// at least 30 dB and padded by a 10% margin. With fewer than 20 samples the
// default -120..-20 dB range is returned.
func (h *PowerHistogram) Bounds() PowerBounds {
	if h.totalCount < minimumSampleCount {
		return defaultPowerBounds()
	}

	target := h.totalCount * 5 / 100

	var count uint64
	var low, high int

	for bin := h.minBin; bin <= h.maxBin; bin++ {
		count += uint64(h.bins[bin])
		if count >= target {
			low = bin
			break
		}
	}

	count = 0
	for bin := h.maxBin; bin >= h.minBin; bin-- {
		count += uint64(h.bins[bin])
		if count >= target {
			high = bin
			break
		}
	}

	var sumProduct float64
	for bin, n := range h.bins {
		sumProduct += float64(bin) * float64(n)
	}
	mean := sumProduct / float64(h.totalCount)

	if high-low < minimumRange {
		center := (high + low) / 2
		low = center - minimumRange/2
		high = center + minimumRange/2
	}

	margin := (high - low) / 10
	return PowerBounds{
		Min:  float64(low - margin),
		Max:  float64(high + margin),
		Mean: mean,
	}
}
