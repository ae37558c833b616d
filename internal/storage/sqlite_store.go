package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/spectrum"
)

// maxBatchSize keeps multi-row inserts well below the sqlite bound parameter limit
const maxBatchSize = 500

// SqliteStore handles database operations
type SqliteStore struct {
	dbPath string

	writeDB     *sql.DB
	writeDBOnce sync.Once
	writeDBErr  error

	readDB     *sql.DB
	readDBOnce sync.Once
	readDBErr  error

	closeOnce sync.Once
	closeErr  error
}

// NewSqliteStore creates a new database connection and initializes the schema
// using the Sqlite database
func NewSqliteStore(dbPath string) *SqliteStore {
	return &SqliteStore{dbPath: dbPath}
}

func runSQLCommand(db *sql.DB, sql string) error {
	_, err := db.Exec(sql)
	return err
}

func (s *SqliteStore) getWriteDB() (*sql.DB, error) {
	s.writeDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "_journal_mode=WAL&_synchronous=NORMAL&_foreign_keys=on"))
		if err != nil {
			s.writeDBErr = fmt.Errorf("opening write connection: %w", err)
			return
		}
		db.SetMaxOpenConns(1) // sqlite allows a single writer

		if err = runSQLCommand(db, initSchemaSQL); err != nil {
			_ = db.Close()
			s.writeDBErr = fmt.Errorf("initializing schema: %w", err)
			return
		}

		s.writeDB = db
	})

	return s.writeDB, s.writeDBErr
}

func (s *SqliteStore) getReadDB() (*sql.DB, error) {
	s.readDBOnce.Do(func() {
		db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?%s", s.dbPath, "mode=ro"))
		if err != nil {
			s.readDBErr = fmt.Errorf("opening read connection: %w", err)
			return
		}
		s.readDB = db
	})

	return s.readDB, s.readDBErr
}

func (s *SqliteStore) CreateSession(ctx context.Context, deviceType, deviceID string, config any) (sessionID int64, err error) {
	var configData sql.NullString

	if config != nil {
		switch v := config.(type) {
		case string:
			configData.Valid = true
			configData.String = v

		case []byte:
			configData.Valid = true
			configData.String = string(v)

		default:
			var p []byte
			if p, err = json.Marshal(config); err != nil {
				err = fmt.Errorf("marshaling config: %w", err)
				return
			}

			configData.Valid = true
			configData.String = string(p)
		}
	}

	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	stmt, err := db.PrepareContext(ctx, insertSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	result, err := stmt.ExecContext(ctx, time.Now().UTC(), deviceType, deviceID, configData)
	if err != nil {
		err = fmt.Errorf("inserting session: %w", err)
		return
	}

	sessionID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting session ID: %w", err)
	}
	return
}

func (s *SqliteStore) Session(ctx context.Context, id int64) (session *spectrum.ScanSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	return loadSession(ctx, db, id)
}

func (s *SqliteStore) Sessions(ctx context.Context) (sessions []*spectrum.ScanSession, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectSessionsSQL)
	if err != nil {
		err = fmt.Errorf("querying sessions: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	for rows.Next() {
		var sess spectrum.ScanSession
		var config sql.NullString
		if err = rows.Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
			err = fmt.Errorf("scanning session: %w", err)
			return
		}
		if config.Valid {
			sess.Config = &config.String
		}
		sessions = append(sessions, &sess)
	}
	err = rows.Err()
	return
}

// StoreCycle saves the per-segment readings of one scan cycle in a single transaction.
func (s *SqliteStore) StoreCycle(ctx context.Context, sessionID int64, span *spectrum.CycleSpan) (err error) {
	if len(span.Segments) == 0 {
		return
	}

	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	result, err := tx.ExecContext(ctx, insertCycleSQL, sessionID, span.Timestamp.UTC(), span.FrequencyStart, span.FrequencyEnd)
	if err != nil {
		return fmt.Errorf("inserting cycle: %w", err)
	}

	cycleID, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting cycle ID: %w", err)
	}

	for chunk := range slices.Chunk(span.Segments, maxBatchSize) {
		values := make([]any, 0, len(chunk)*8)
		for _, r := range chunk {
			data := toSegmentReadingData(sessionID, cycleID, r)
			values = append(values,
				data.SessionID,
				data.CycleID,
				data.Segment,
				data.Timestamp,
				data.Frequency,
				data.BinWidth,
				data.Power,
				data.NumSamples,
			)
		}

		if _, err = tx.ExecContext(ctx, batchInsertSQL(insertSegmentReadingSQL, len(chunk), 8), values...); err != nil {
			return fmt.Errorf("batch inserting segment readings: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// OpenEvent records the start of a surge event and returns its ID.
func (s *SqliteStore) OpenEvent(ctx context.Context, sessionID int64, frequency float64, at time.Time) (eventID int64, err error) {
	db, err := s.getWriteDB()
	if err != nil {
		err = fmt.Errorf("getting write connection: %w", err)
		return
	}

	result, err := db.ExecContext(ctx, insertEventSQL, sessionID, frequency, at.UTC())
	if err != nil {
		err = fmt.Errorf("inserting event: %w", err)
		return
	}

	eventID, err = result.LastInsertId()
	if err != nil {
		err = fmt.Errorf("getting event ID: %w", err)
	}
	return
}

// CloseEvent stores the readings of an event and marks it closed, in a single transaction.
func (s *SqliteStore) CloseEvent(ctx context.Context, eventID int64, readings []eventlog.Reading, incomplete bool) (err error) {
	db, err := s.getWriteDB()
	if err != nil {
		return fmt.Errorf("getting write connection: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer rollbackWithError(tx, &err)

	closedAt := time.Now().UTC()
	if n := len(readings); n > 0 {
		closedAt = readings[n-1].Timestamp.UTC()
	}

	result, err := tx.ExecContext(ctx, closeEventSQL, closedAt, incomplete, eventID)
	if err != nil {
		return fmt.Errorf("closing event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("event %d is not open", eventID)
	}

	for chunk := range slices.Chunk(readings, maxBatchSize) {
		values := make([]any, 0, len(chunk)*4)
		for _, r := range chunk {
			values = append(values, eventID, r.Timestamp.UTC(), r.Frequency, r.Power)
		}

		if _, err = tx.ExecContext(ctx, batchInsertSQL(insertEventReadingSQL, len(chunk), 4), values...); err != nil {
			return fmt.Errorf("batch inserting event readings: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	return nil
}

// Events returns every event of a session with its readings, ordered by opening time.
func (s *SqliteStore) Events(ctx context.Context, sessionID int64) (events []*EventRecord, err error) {
	db, err := s.getReadDB()
	if err != nil {
		err = fmt.Errorf("getting read connection: %w", err)
		return
	}

	rows, err := db.QueryContext(ctx, selectEventsSQL, sessionID)
	if err != nil {
		err = fmt.Errorf("querying events: %w", err)
		return
	}
	defer closeWithError(rows, &err)

	var current *EventRecord
	for rows.Next() {
		var (
			id           int64
			frequency    float64
			openedAt     time.Time
			closedAt     sql.NullTime
			incomplete   bool
			readingTime  sql.NullTime
			readingFreq  sql.NullFloat64
			readingPower sql.NullFloat64
		)
		if err = rows.Scan(&id, &frequency, &openedAt, &closedAt, &incomplete, &readingTime, &readingFreq, &readingPower); err != nil {
			err = fmt.Errorf("scanning event: %w", err)
			return
		}

		if current == nil || current.ID != id {
			current = &EventRecord{
				ID:         id,
				SessionID:  sessionID,
				Frequency:  frequency,
				OpenedAt:   openedAt,
				Incomplete: incomplete,
			}
			if closedAt.Valid {
				current.ClosedAt = &closedAt.Time
			}
			events = append(events, current)
		}

		if readingTime.Valid {
			current.Readings = append(current.Readings, eventlog.Reading{
				Timestamp: readingTime.Time,
				Frequency: readingFreq.Float64,
				Power:     readingPower.Float64,
			})
		}
	}
	err = rows.Err()
	return
}

// ReadCycles creates a reader iterating over the stored scan cycles of a session.
// The returned reader must be closed after use to release database resources.
func (s *SqliteStore) ReadCycles(ctx context.Context, sessionID int64, opts ...ReaderOption) (*SqliteCycleReader, error) {
	db, err := s.getReadDB()
	if err != nil {
		return nil, fmt.Errorf("getting read connection: %w", err)
	}
	return newSqliteCycleReader(ctx, db, sessionID, opts...)
}

func (s *SqliteStore) Close() error {
	s.closeOnce.Do(func() {
		var writeErr, readErr error

		if s.writeDB != nil {
			_ = runSQLCommand(s.writeDB, initIndexesSQL)

			writeErr = s.writeDB.Close()
			s.writeDB = nil
		}

		if s.readDB != nil {
			readErr = s.readDB.Close()
			s.readDB = nil
		}

		s.closeErr = errors.Join(writeErr, readErr)
	})

	return s.closeErr
}

func loadSession(ctx context.Context, db *sql.DB, id int64) (session *spectrum.ScanSession, err error) {
	stmt, err := db.PrepareContext(ctx, selectSessionSQL)
	if err != nil {
		err = fmt.Errorf("preparing statement: %w", err)
		return
	}
	defer closeWithError(stmt, &err)

	var sess spectrum.ScanSession
	var config sql.NullString
	if err = stmt.QueryRowContext(ctx, id).Scan(&sess.ID, &sess.StartTime, &sess.DeviceType, &sess.DeviceID, &config); err != nil {
		err = fmt.Errorf("scanning session: %w", err)
		return
	}
	if config.Valid {
		sess.Config = &config.String
	}

	return &sess, nil
}
