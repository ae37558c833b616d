package storage

import (
	"database/sql"
	"errors"
	"math"
	"strings"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

func closeWithError(cl interface{ Close() error }, err *error) {
	if cErr := cl.Close(); cErr != nil && *err == nil {
		*err = cErr
	}
}

func rollbackWithError(rb interface{ Rollback() error }, err *error) {
	if cErr := rb.Rollback(); cErr != nil && *err == nil && !errors.Is(cErr, sql.ErrTxDone) {
		*err = cErr
	}
}

func toSegmentReadingData(sessionID, cycleID int64, r spectrum.SegmentReading) *segmentReadingData {
	// NaN and ±Inf cannot be stored as REAL, they are kept as NULL
	var power sql.NullFloat64
	if !math.IsNaN(r.Power) && !math.IsInf(r.Power, 0) {
		power.Float64 = r.Power
		power.Valid = true
	}

	return &segmentReadingData{
		SessionID:  sessionID,
		CycleID:    cycleID,
		Segment:    r.Index,
		Timestamp:  r.Timestamp.UTC(),
		Frequency:  r.CenterFrequency,
		BinWidth:   r.BinWidth,
		Power:      power,
		NumSamples: r.NumSamples,
	}
}

// batchInsertSQL appends n placeholder tuples of the given width to a VALUES prefix.
func batchInsertSQL(prefix string, n, width int) string {
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", width), ", ") + ")"

	var sb strings.Builder
	sb.WriteString(prefix)
	for i := 0; i < n; i++ {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(tuple)
	}
	return sb.String()
}
