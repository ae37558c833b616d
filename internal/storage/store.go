package storage

import (
	"context"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// Store provides an interface for managing spectrum monitoring data storage operations.
// It handles sessions, per-cycle segment readings, and surge events in a thread-safe manner.
// All operations that write to the database should be considered atomic.
type Store interface {
	// CreateSession initializes a new scanning session and returns its unique identifier.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - deviceType: Type of SDR device (e.g., "RTL-SDR", "HackRF")
	//   - deviceID: Identifier of the device (configured name or generated)
	//   - config: Optional session configuration. Can be string, []byte, or JSON-serializable object
	//
	// Returns:
	//   - sessionID: Unique identifier for the created session
	//   - error: If session creation fails or context is cancelled
	CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error)

	// Session retrieves a specific scanning session by its ID.
	Session(ctx context.Context, id int64) (session *spectrum.ScanSession, err error)

	// Sessions returns all scanning sessions stored in the database.
	// Results are ordered by start time in ascending order.
	Sessions(ctx context.Context) (sessions []*spectrum.ScanSession, err error)

	// StoreCycle saves the segment readings of one complete scan cycle.
	// All readings are stored in a single atomic transaction.
	//
	// Parameters:
	//   - ctx: Context for cancellation and timeouts
	//   - sessionID: ID of the session this cycle belongs to
	//   - span: Cycle containing one reading per segment
	//
	// Returns:
	//   - error: If storage fails or context is cancelled
	StoreCycle(ctx context.Context, sessionID int64, span *spectrum.CycleSpan) error

	// OpenEvent records the start of a surge event on a segment.
	//
	// Returns:
	//   - eventID: Unique identifier to pass to CloseEvent
	//   - error: If storage fails or context is cancelled
	OpenEvent(ctx context.Context, sessionID int64, frequency float64, at time.Time) (eventID int64, err error)

	// CloseEvent stores the buffered readings of an open event and marks it closed.
	// Incomplete marks events flushed on shutdown rather than closed by the detector.
	CloseEvent(ctx context.Context, eventID int64, readings []eventlog.Reading, incomplete bool) error

	// Events returns all events of a session, with their readings, ordered by opening time.
	Events(ctx context.Context, sessionID int64) ([]*EventRecord, error)

	// ReadCycles creates a reader over the stored cycles of a session.
	// The returned reader must be closed after use.
	ReadCycles(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteCycleReader, error)

	// Close releases all database connections and resources.
	// After Close is called, the store instance cannot be reused.
	// It is safe to call Close multiple times.
	Close() error
}

var _ Store = (*SqliteStore)(nil)
var _ CycleReader = (*SqliteCycleReader)(nil)
