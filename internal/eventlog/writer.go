package eventlog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync"
	"time"
)

const (
	startPrefix      = "=== Segment Start: Frequency "
	endPrefix        = "=== Segment End: Frequency "
	markerSuffix     = " MHz ==="
	incompleteSuffix = " MHz (incomplete) ==="
)

// MarkerResolution is the smallest frequency difference, in Hz, that marker
// lines keep apart. Markers print MHz with three decimals.
const MarkerResolution = 1e3

// Reading is a single recorded measurement of a segment during an event.
type Reading struct {
	Timestamp time.Time
	Frequency float64 // Segment center frequency in Hz
	Power     float64 // Mean segment power in dB
}

// Writer appends event lifecycles to a line-oriented text log. Every marker and
// every closing batch goes out in a single Write call. The log is designed for a
// single writer process; the mutex only serialises goroutines within it.
type Writer struct {
	mu     sync.Mutex
	w      io.Writer
	closer io.Closer
}

// Open opens (or creates) the log file at path for appending.
func Open(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening event log: %w", err)
	}

	return &Writer{w: f, closer: f}, nil
}

// NewWriter wraps an arbitrary writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Start writes the start marker of an event on the segment at frequency (Hz).
func (w *Writer) Start(frequency float64, _ time.Time) error {
	return w.write([]byte(StartMarker(frequency) + "\n"))
}

// End writes the buffered readings followed by the end marker, as one batch.
func (w *Writer) End(frequency float64, readings []Reading, incomplete bool) error {
	var buf bytes.Buffer
	for _, r := range readings {
		buf.WriteString(FormatReading(r))
		buf.WriteByte('\n')
	}
	buf.WriteString(EndMarker(frequency, incomplete))
	buf.WriteByte('\n')

	return w.write(buf.Bytes())
}

// Close closes the underlying file, if the writer owns one.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closer == nil {
		return nil
	}

	err := w.closer.Close()
	w.closer = nil
	return err
}

func (w *Writer) write(p []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, err := w.w.Write(p); err != nil {
		return fmt.Errorf("writing event log: %w", err)
	}
	return nil
}

// StartMarker formats the start marker line for a segment frequency in Hz.
func StartMarker(frequency float64) string {
	return startPrefix + formatMHz(frequency) + markerSuffix
}

// EndMarker formats the end marker line for a segment frequency in Hz.
func EndMarker(frequency float64, incomplete bool) string {
	if incomplete {
		return endPrefix + formatMHz(frequency) + incompleteSuffix
	}
	return endPrefix + formatMHz(frequency) + markerSuffix
}

// FormatReading formats a reading as unix_timestamp,frequency_hz,power_db.
func FormatReading(r Reading) string {
	ts := float64(r.Timestamp.UnixNano()) / 1e9
	return strconv.FormatFloat(ts, 'f', 6, 64) + "," +
		strconv.FormatFloat(r.Frequency, 'f', -1, 64) + "," +
		strconv.FormatFloat(r.Power, 'f', 4, 64)
}

func formatMHz(hz float64) string {
	return strconv.FormatFloat(hz/1e6, 'f', 3, 64)
}
