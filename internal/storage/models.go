package storage

import (
	"database/sql"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
)

type segmentReadingData struct {
	ID         int64
	SessionID  int64
	CycleID    int64
	Segment    int
	Timestamp  time.Time
	Frequency  float64
	BinWidth   float64
	Power      sql.NullFloat64
	NumSamples int
}

// EventRecord is a surge event as persisted in the database.
type EventRecord struct {
	ID         int64
	SessionID  int64
	Frequency  float64
	OpenedAt   time.Time
	ClosedAt   *time.Time // nil while the event is still open
	Incomplete bool
	Readings   []eventlog.Reading
}

// Open reports whether the event has not been closed yet.
func (e *EventRecord) Open() bool {
	return e.ClosedAt == nil
}
