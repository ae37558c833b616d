package storage

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
)

// EventRecorder persists event lifecycles of one session to a Store. It has the
// same Start/End shape as the text event log so both can receive the same events.
type EventRecorder struct {
	ctx       context.Context
	store     Store
	sessionID int64

	mu   sync.Mutex
	open map[uint64]int64 // frequency bits -> event ID
}

func NewEventRecorder(ctx context.Context, store Store, sessionID int64) *EventRecorder {
	return &EventRecorder{
		ctx:       ctx,
		store:     store,
		sessionID: sessionID,
		open:      make(map[uint64]int64),
	}
}

func (r *EventRecorder) Start(frequency float64, at time.Time) error {
	key := math.Float64bits(frequency)

	r.mu.Lock()
	defer r.mu.Unlock()

	// already open: the running event keeps its ID and opening time
	if _, ok := r.open[key]; ok {
		return nil
	}

	id, err := r.store.OpenEvent(r.ctx, r.sessionID, frequency, at)
	if err != nil {
		return fmt.Errorf("recording event start: %w", err)
	}
	r.open[key] = id
	return nil
}

func (r *EventRecorder) End(frequency float64, readings []eventlog.Reading, incomplete bool) error {
	key := math.Float64bits(frequency)

	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.open[key]
	if !ok {
		return fmt.Errorf("no open event on %.0f Hz", frequency)
	}
	delete(r.open, key)

	if err := r.store.CloseEvent(r.ctx, id, readings, incomplete); err != nil {
		return fmt.Errorf("recording event end: %w", err)
	}
	return nil
}

// Open returns the number of events started but not yet ended.
func (r *EventRecorder) Open() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.open)
}
