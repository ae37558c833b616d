package scan

import (
	"fmt"
)

// Segment is one tuned sub-band of the scan range.
type Segment struct {
	Index           int
	CenterFrequency float64
}

// Segments enumerates the center frequencies start + i*step, step = bandwidth*(1-overlap),
// while they stay below end. The order is stable and reused for every cycle.
func Segments(start, end, bandwidth, overlap float64) ([]Segment, error) {
	switch {
	case start <= 0:
		return nil, fmt.Errorf("start frequency must be positive: %0.0f", start)
	case end <= start:
		return nil, fmt.Errorf("end frequency %0.0f must be above start frequency %0.0f", end, start)
	case bandwidth <= 0:
		return nil, fmt.Errorf("segment bandwidth must be positive: %0.0f", bandwidth)
	case overlap < 0 || overlap >= 1:
		return nil, fmt.Errorf("overlap must be in [0, 1): %0.3f", overlap)
	}

	step := bandwidth * (1 - overlap)

	var segments []Segment
	for i := 0; ; i++ {
		// computed from i, never accumulated
		f := start + float64(i)*step
		if f >= end {
			break
		}
		segments = append(segments, Segment{Index: i, CenterFrequency: f})
	}

	return segments, nil
}
