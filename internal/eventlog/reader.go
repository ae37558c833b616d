package eventlog

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// Event is one surge event parsed back from the log.
type Event struct {
	Frequency  float64 // Segment center frequency in Hz
	Readings   []Reading
	Incomplete bool // Flushed at shutdown while still recording
	Truncated  bool // Start marker without an end marker at the end of the file
}

// Start returns the timestamp of the first reading.
func (e *Event) Start() time.Time {
	if len(e.Readings) == 0 {
		return time.Time{}
	}
	return e.Readings[0].Timestamp
}

// Duration returns the time between the first and the last reading.
func (e *Event) Duration() time.Duration {
	if len(e.Readings) == 0 {
		return 0
	}
	return e.Readings[len(e.Readings)-1].Timestamp.Sub(e.Readings[0].Timestamp)
}

// PeakPower returns the highest recorded power in dB.
func (e *Event) PeakPower() float64 {
	peak := math.Inf(-1)
	for _, r := range e.Readings {
		peak = math.Max(peak, r.Power)
	}
	return peak
}

// WithReaderLogger sets the logger used to report skipped lines
func WithReaderLogger(logger *slog.Logger) func(*Reader) {
	return func(r *Reader) {
		r.logger = logger
	}
}

// Reader parses an event log. Events of different segments may interleave; lines
// are grouped by the segment frequency in the markers. Malformed lines are
// skipped with a warning and never abort the read.
type Reader struct {
	src    io.Reader
	logger *slog.Logger
}

func NewReader(src io.Reader, options ...func(*Reader)) *Reader {
	r := Reader{
		src:    src,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&r)
	}

	return &r
}

// ReadFile parses the event log at path.
func ReadFile(path string, options ...func(*Reader)) ([]Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}
	defer f.Close()

	return NewReader(f, options...).ReadAll()
}

// ReadAll returns the events in the order they were closed, followed by any
// events left open at the end of the input.
func (r *Reader) ReadAll() ([]Event, error) {
	var (
		events []Event
		open   = make(map[string]*Event)
		order  []string
	)

	scanner := bufio.NewScanner(r.src)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())

		switch {
		case text == "":
			continue

		case strings.HasPrefix(text, startPrefix):
			key, ok := parseMarker(text, startPrefix, markerSuffix)
			if !ok {
				r.skip(line, text, "malformed start marker")
				continue
			}
			if _, exists := open[key]; exists {
				r.skip(line, text, "start marker for a segment that is already open")
				continue
			}
			freq, _ := strconv.ParseFloat(key, 64)
			open[key] = &Event{Frequency: freq * 1e6}
			order = append(order, key)

		case strings.HasPrefix(text, endPrefix):
			incomplete := strings.HasSuffix(text, incompleteSuffix)
			suffix := markerSuffix
			if incomplete {
				suffix = incompleteSuffix
			}
			key, ok := parseMarker(text, endPrefix, suffix)
			if !ok {
				r.skip(line, text, "malformed end marker")
				continue
			}
			ev, exists := open[key]
			if !exists {
				r.skip(line, text, "end marker without a start marker")
				continue
			}
			ev.Incomplete = incomplete
			if len(ev.Readings) > 0 {
				ev.Frequency = ev.Readings[0].Frequency
			}
			events = append(events, *ev)
			delete(open, key)

		default:
			reading, err := ParseReading(text)
			if err != nil {
				r.skip(line, text, err.Error())
				continue
			}
			ev, exists := open[formatMHz(reading.Frequency)]
			if !exists {
				r.skip(line, text, "reading outside of an event")
				continue
			}
			ev.Readings = append(ev.Readings, reading)
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("reading event log: %w", err)
	}

	for _, key := range order {
		if ev, exists := open[key]; exists {
			r.logger.Warn("event without end marker", slog.String("frequency", key+" MHz"))
			ev.Truncated = true
			events = append(events, *ev)
			delete(open, key)
		}
	}

	return events, nil
}

func (r *Reader) skip(line int, text, reason string) {
	r.logger.Warn("skipping malformed line",
		slog.Int("line", line),
		slog.String("reason", reason),
		slog.String("text", text))
}

// ParseReading parses a unix_timestamp,frequency_hz,power_db line.
func ParseReading(text string) (Reading, error) {
	parts := strings.Split(text, ",")
	if len(parts) != 3 {
		return Reading{}, fmt.Errorf("expected 3 fields, got %d", len(parts))
	}

	var values [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Reading{}, fmt.Errorf("field %d: %w", i+1, err)
		}
		values[i] = v
	}

	sec, frac := math.Modf(values[0])
	return Reading{
		Timestamp: time.Unix(int64(sec), int64(math.Round(frac*1e6))*1e3),
		Frequency: values[1],
		Power:     values[2],
	}, nil
}

// parseMarker extracts the MHz field of a marker line, normalised to three decimals.
func parseMarker(text, prefix, suffix string) (string, bool) {
	if !strings.HasSuffix(text, suffix) {
		return "", false
	}

	field := strings.TrimSuffix(strings.TrimPrefix(text, prefix), suffix)
	mhz, err := strconv.ParseFloat(field, 64)
	if err != nil {
		return "", false
	}

	return strconv.FormatFloat(mhz, 'f', 3, 64), true
}
