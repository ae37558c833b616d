package storage

import (
	_ "embed"
)

var (
	//go:embed schema.sql
	initSchemaSQL string

	//go:embed indexes.sql
	initIndexesSQL string
)

const (
	insertSessionSQL = `
INSERT INTO sessions (
                      start_time,
                      device_type,
                      device_id,
                      config)
VALUES (?, ?, ?, ?)`

	selectSessionSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
WHERE
    id = ?`

	selectSessionsSQL = `
SELECT
    id,
    start_time,
    device_type,
    device_id,
    config
FROM sessions
ORDER BY start_time, id`

	insertCycleSQL = `
INSERT INTO cycles (session_id,
                    timestamp,
                    frequency_start,
                    frequency_end)
VALUES (?, ?, ?, ?)`

	insertSegmentReadingSQL = `
INSERT INTO segment_readings (
        session_id,
        cycle_id,
        segment,
        timestamp,
        frequency,
        bin_width,
        power,
        num_samples
    )
    VALUES `

	selectFilterValuesSQL = `
SELECT
    COALESCE(MIN(r.frequency), 0),
    COALESCE(MAX(r.frequency), 0),
    COUNT(DISTINCT r.segment)
FROM segment_readings r
WHERE
    r.session_id = ?`

	selectCycleReadingsSQL = `
SELECT
    c.id,
    c.timestamp,
    c.frequency_start,
    c.frequency_end,
    r.segment,
    r.timestamp,
    r.frequency,
    r.bin_width,
    r.power,
    r.num_samples
FROM cycles c
    JOIN segment_readings r ON r.cycle_id = c.id
WHERE
    c.session_id = ?
    AND c.timestamp >= ?
    AND c.timestamp <= ?
    AND r.frequency >= ?
    AND r.frequency <= ?
ORDER BY c.timestamp, c.id, r.segment`

	insertEventSQL = `
INSERT INTO events (session_id,
                    frequency,
                    opened_at)
VALUES (?, ?, ?)`

	closeEventSQL = `
UPDATE events
SET closed_at  = ?,
    incomplete = ?
WHERE id = ?
  AND closed_at IS NULL`

	insertEventReadingSQL = `
INSERT INTO event_readings (
        event_id,
        timestamp,
        frequency,
        power
    )
    VALUES `

	selectEventsSQL = `
SELECT
    e.id,
    e.frequency,
    e.opened_at,
    e.closed_at,
    e.incomplete,
    r.timestamp,
    r.frequency,
    r.power
FROM events e
    LEFT JOIN event_readings r ON r.event_id = e.id
WHERE
    e.session_id = ?
ORDER BY e.opened_at, e.id, r.timestamp, r.id`
)
