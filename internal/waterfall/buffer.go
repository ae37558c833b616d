package waterfall

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/metrics"
)

// Snapshot is an immutable copy of the buffer contents, oldest row first.
type Snapshot struct {
	Rows           [][]float64
	Timestamps     []time.Time
	Depth          int
	Columns        int
	FrequencyStart float64
	FrequencyEnd   float64
}

// WithLogger sets the logger for the buffer
func WithLogger(logger *slog.Logger) func(*Buffer) {
	return func(b *Buffer) {
		b.logger = logger
	}
}

// WithMetrics sets the metrics reconciled rows are counted in
func WithMetrics(m *metrics.Metrics) func(*Buffer) {
	return func(b *Buffer) {
		b.metrics = m
	}
}

// WithExtent sets the band covered by the columns, reported in snapshots
func WithExtent(start, end float64) func(*Buffer) {
	return func(b *Buffer) {
		b.frequencyStart = start
		b.frequencyEnd = end
	}
}

// Buffer is a fixed-depth rolling stack of full-band power rows. Rows are kept in
// a ring: once full, every push evicts exactly the oldest row.
type Buffer struct {
	mu sync.RWMutex

	depth   int
	columns int

	rows  [][]float64
	times []time.Time
	head  int // index of the oldest row
	count int

	frequencyStart float64
	frequencyEnd   float64

	now     func() time.Time
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a buffer holding at most depth rows of columns values each.
func New(depth, columns int, options ...func(*Buffer)) (*Buffer, error) {
	if depth <= 0 {
		return nil, fmt.Errorf("depth must be positive: %d", depth)
	}
	if columns <= 0 {
		return nil, errors.New("columns must be positive")
	}

	b := Buffer{
		depth:   depth,
		columns: columns,
		rows:    make([][]float64, depth),
		times:   make([]time.Time, depth),
		now:     time.Now,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&b)
	}

	return &b, nil
}

// Push appends a row at the newest end. A row of the wrong length is truncated or
// padded with its last value (zeros for an empty row); the return value reports
// whether that happened.
func (b *Buffer) Push(row []float64) bool {
	fitted, reconciled := Reconcile(row, b.columns)
	if reconciled {
		b.metrics.RowReconciled()
		b.logger.Warn("waterfall row reconciled",
			slog.Int("got", len(row)),
			slog.Int("columns", b.columns))
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var slot int
	if b.count < b.depth {
		slot = (b.head + b.count) % b.depth
		b.count++
	} else {
		slot = b.head
		b.head = (b.head + 1) % b.depth
	}

	b.rows[slot] = fitted
	b.times[slot] = b.now()

	return reconciled
}

// Len returns the number of rows currently held.
func (b *Buffer) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.count
}

// Snapshot returns a deep copy of the rows, oldest first.
func (b *Buffer) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := Snapshot{
		Rows:           make([][]float64, b.count),
		Timestamps:     make([]time.Time, b.count),
		Depth:          b.depth,
		Columns:        b.columns,
		FrequencyStart: b.frequencyStart,
		FrequencyEnd:   b.frequencyEnd,
	}

	for i := 0; i < b.count; i++ {
		slot := (b.head + i) % b.depth
		s.Rows[i] = append([]float64(nil), b.rows[slot]...)
		s.Timestamps[i] = b.times[slot]
	}

	return s
}

// Reconcile fits row to exactly columns values.
func Reconcile(row []float64, columns int) ([]float64, bool) {
	fitted := make([]float64, columns)
	n := copy(fitted, row)

	if len(row) == columns {
		return fitted, false
	}

	if n > 0 && n < columns {
		last := row[n-1]
		for i := n; i < columns; i++ {
			fitted[i] = last
		}
	}

	return fitted, true
}

// NormalizeRow maps a row to [0, 1] using that row's own minimum and maximum.
// A constant row maps to all zeros.
func NormalizeRow(row []float64) []float64 {
	out := make([]float64, len(row))
	if len(row) == 0 {
		return out
	}

	lo, hi := row[0], row[0]
	for _, v := range row[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	span := hi - lo
	if span == 0 {
		return out
	}

	for i, v := range row {
		out[i] = (v - lo) / span
	}
	return out
}
