package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// ErrNoData indicates either that no cycle data exists for the given parameters,
// or that all available data has been read from the cycle reader.
var ErrNoData = fmt.Errorf("no data available")

// Open-ended time range used when no time filter is set.
var (
	minTime = time.Time{}
	maxTime = time.Date(9999, time.December, 31, 23, 59, 59, 0, time.UTC)
)

// CycleReader provides an iterator-based interface for reading stored scan cycles
// with optional time and frequency filtering.
type CycleReader interface {
	// Session returns metadata about the scan session this reader is accessing.
	Session() *spectrum.ScanSession

	// Next advances the iterator and returns true if there is another cycle
	// to read, false when the iteration is complete or if an error occurred.
	Next(context.Context) bool

	// Current returns the current cycle in the iteration.
	// If called after Next() returns false, the behavior is undefined.
	Current() *spectrum.CycleSpan

	// Error returns any error that occurred during iteration.
	// If Next() returns false, Error() should be checked to distinguish between
	// end of data and an error condition.
	Error() error

	// Close releases any resources associated with the reader.
	Close() error
}

// ReaderOption configures a SqliteCycleReader with specific filtering criteria.
type ReaderOption func(*SqliteCycleReader)

// WithMinFreq excludes segments centred below f.
func WithMinFreq(f float64) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.minFreq = &f
	}
}

// WithMaxFreq excludes segments centred above f.
func WithMaxFreq(f float64) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.maxFreq = &f
	}
}

// WithFreqRange sets both minimum and maximum frequency filters.
func WithFreqRange(minFreq, maxFreq float64) ReaderOption {
	return func(r *SqliteCycleReader) {
		r.minFreq = &minFreq
		r.maxFreq = &maxFreq
	}
}

// WithStartTime excludes cycles started before t.
func WithStartTime(t time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		t = t.UTC()
		r.startTime = &t
	}
}

// WithEndTime excludes cycles started after t.
func WithEndTime(t time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		t = t.UTC()
		r.endTime = &t
	}
}

// WithTimeRange sets both start and end time filters.
func WithTimeRange(startTime, endTime time.Time) ReaderOption {
	return func(r *SqliteCycleReader) {
		startTime, endTime = startTime.UTC(), endTime.UTC()
		r.startTime = &startTime
		r.endTime = &endTime
	}
}

func newSqliteCycleReader(ctx context.Context, db *sql.DB, sessionID int64, opts ...ReaderOption) (*SqliteCycleReader, error) {
	cr := &SqliteCycleReader{
		db:        db,
		sessionID: sessionID,
	}
	for _, opt := range opts {
		opt(cr)
	}
	if err := cr.init(ctx); err != nil {
		return nil, fmt.Errorf("initializing reader: %w", err)
	}
	return cr, nil
}

// SqliteCycleReader implements CycleReader for SQLite database backend.
type SqliteCycleReader struct {
	db *sql.DB

	sessionID   int64
	session     *spectrum.ScanSession
	numSegments int

	startTime *time.Time // Optional start of time range filter
	endTime   *time.Time // Optional end of time range filter
	minFreq   *float64   // Optional minimum frequency filter
	maxFreq   *float64   // Optional maximum frequency filter

	currentSpan *spectrum.CycleSpan
	currentID   int64

	next       cycleRow // First row of the next cycle
	nextExists bool

	rows *sql.Rows
	err  error
}

type cycleRow struct {
	cycleID        int64
	timestamp      time.Time
	frequencyStart float64
	frequencyEnd   float64
	reading        spectrum.SegmentReading
}

func (cr *SqliteCycleReader) init(ctx context.Context) error {
	if cr.db == nil {
		return errors.New("database connection required")
	}
	if cr.sessionID <= 0 {
		return errors.New("session ID required")
	}

	steps := []struct {
		msg string
		fn  func(context.Context) error
	}{
		{msg: "loading session", fn: cr.loadSession},
		{msg: "initializing filters", fn: cr.initFilters},
		{msg: "initializing query", fn: cr.initQuery},
	}
	for _, s := range steps {
		if err := s.fn(ctx); err != nil {
			return fmt.Errorf("%s: %w", s.msg, err)
		}
	}
	return nil
}

func (cr *SqliteCycleReader) loadSession(ctx context.Context) (err error) {
	cr.session, err = loadSession(ctx, cr.db, cr.sessionID)
	return
}

func (cr *SqliteCycleReader) initFilters(ctx context.Context) (err error) {
	if cr.startTime != nil && cr.endTime != nil && cr.startTime.After(*cr.endTime) {
		return fmt.Errorf("start time %s is after end time %s", cr.startTime, cr.endTime)
	}
	if cr.minFreq != nil && cr.maxFreq != nil && *cr.minFreq > *cr.maxFreq {
		return fmt.Errorf("min frequency %f is greater than max frequency %f", *cr.minFreq, *cr.maxFreq)
	}

	if cr.startTime == nil {
		cr.startTime = &minTime
	}
	if cr.endTime == nil {
		cr.endTime = &maxTime
	}

	stmt, err := cr.db.PrepareContext(ctx, selectFilterValuesSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	var minFreq, maxFreq float64
	if err = stmt.QueryRowContext(ctx, cr.sessionID).Scan(&minFreq, &maxFreq, &cr.numSegments); err != nil {
		return fmt.Errorf("scanning filters data: %w", err)
	}

	if cr.minFreq == nil {
		cr.minFreq = &minFreq
	}
	if cr.maxFreq == nil {
		cr.maxFreq = &maxFreq
	}

	return nil
}

func (cr *SqliteCycleReader) initQuery(ctx context.Context) (err error) {
	stmt, err := cr.db.PrepareContext(ctx, selectCycleReadingsSQL)
	if err != nil {
		return fmt.Errorf("preparing statement: %w", err)
	}
	defer closeWithError(stmt, &err)

	if cr.rows, err = stmt.QueryContext(ctx, cr.sessionID, *cr.startTime, *cr.endTime, *cr.minFreq, *cr.maxFreq); err != nil {
		return err
	}
	return nil
}

func (cr *SqliteCycleReader) scanRow() (cycleRow, error) {
	var row cycleRow
	var power sql.NullFloat64

	err := cr.rows.Scan(
		&row.cycleID,
		&row.timestamp,
		&row.frequencyStart,
		&row.frequencyEnd,
		&row.reading.Index,
		&row.reading.Timestamp,
		&row.reading.CenterFrequency,
		&row.reading.BinWidth,
		&power,
		&row.reading.NumSamples,
	)
	if err != nil {
		return cycleRow{}, fmt.Errorf("scanning segment reading: %w", err)
	}

	row.reading.Power = math.NaN()
	if power.Valid {
		row.reading.Power = power.Float64
	}
	return row, nil
}

func (cr *SqliteCycleReader) startSpan(row cycleRow) {
	cr.currentID = row.cycleID
	cr.currentSpan = &spectrum.CycleSpan{
		Timestamp:      row.timestamp,
		FrequencyStart: row.frequencyStart,
		FrequencyEnd:   row.frequencyEnd,
		Segments:       make([]spectrum.SegmentReading, 0, cr.numSegments),
	}
	cr.currentSpan.Segments = append(cr.currentSpan.Segments, row.reading)
}

func (cr *SqliteCycleReader) Session() *spectrum.ScanSession {
	return cr.session
}

func (cr *SqliteCycleReader) Next(ctx context.Context) bool {
	if cr.err != nil || cr.rows == nil {
		return false
	}

	cr.currentSpan = nil
	if cr.nextExists {
		cr.startSpan(cr.next)
		cr.nextExists = false
	}

	for {
		select {
		case <-ctx.Done():
			cr.err = ctx.Err()
			return false
		default:
		}

		if !cr.rows.Next() {
			if cr.currentSpan != nil {
				cr.err = ErrNoData
				return true
			}
			return false
		}

		row, err := cr.scanRow()
		if err != nil {
			cr.err = err
			return false
		}

		if cr.currentSpan == nil {
			cr.startSpan(row)
			continue
		}

		// Rows arrive grouped by cycle; a new ID completes the current span
		if row.cycleID != cr.currentID {
			cr.next = row
			cr.nextExists = true
			return true
		}

		cr.currentSpan.Segments = append(cr.currentSpan.Segments, row.reading)
	}
}

func (cr *SqliteCycleReader) Current() *spectrum.CycleSpan {
	return cr.currentSpan
}

func (cr *SqliteCycleReader) Error() error {
	if cr.err != nil && !errors.Is(cr.err, ErrNoData) {
		return cr.err
	}
	if cr.rows != nil {
		return cr.rows.Err()
	}
	return nil
}

func (cr *SqliteCycleReader) Close() error {
	if cr.rows != nil {
		err := cr.rows.Close()
		cr.currentSpan = nil
		cr.nextExists = false
		cr.rows = nil
		return err
	}
	return nil
}
