package monitor

import (
	"errors"
	"fmt"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
)

const DefaultThreshold = 5.0

// EventSink receives event lifecycles. Start is called as soon as an event opens;
// End receives every buffered reading in capture order when it closes.
type EventSink interface {
	Start(frequency float64, at time.Time) error
	End(frequency float64, readings []eventlog.Reading, incomplete bool) error
}

// MultiSink fans out to several sinks. End reaches every sink even if an earlier
// one fails; Start is all-or-nothing.
type MultiSink []EventSink

// Start opens the event on every sink in order. If one fails, the sinks that
// already accepted it are closed as incomplete without readings, so that no sink
// holds a start the detector never recorded.
func (m MultiSink) Start(frequency float64, at time.Time) error {
	for i, s := range m {
		err := s.Start(frequency, at)
		if err == nil {
			continue
		}

		errs := []error{err}
		for _, started := range m[:i] {
			if rerr := started.End(frequency, nil, true); rerr != nil {
				errs = append(errs, fmt.Errorf("rolling back event start: %w", rerr))
			}
		}
		return errors.Join(errs...)
	}
	return nil
}

func (m MultiSink) End(frequency float64, readings []eventlog.Reading, incomplete bool) error {
	var errs []error
	for _, s := range m {
		errs = append(errs, s.End(frequency, readings, incomplete))
	}
	return errors.Join(errs...)
}

// State of a segment detector.
type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Transition reports what an observation did to the detector.
type Transition int

const (
	None Transition = iota
	Opened
	Extended
	Closed
)

// Detector is the recording state machine of one segment. A single threshold
// both opens and closes a recording.
type Detector struct {
	frequency float64
	threshold float64
	sink      EventSink

	state    State
	openedAt time.Time
	readings []eventlog.Reading
}

func NewDetector(frequency, threshold float64, sink EventSink) *Detector {
	return &Detector{
		frequency: frequency,
		threshold: threshold,
		sink:      sink,
	}
}

// Observe compares power against baseline and advances the state machine.
//
// A sink error on open leaves the detector idle, so no end marker is ever owed
// for a start marker that was not written. A sink error on close still clears
// the recording.
func (d *Detector) Observe(at time.Time, power, baseline float64) (Transition, error) {
	above := power-baseline > d.threshold
	reading := eventlog.Reading{Timestamp: at, Frequency: d.frequency, Power: power}

	switch {
	case d.state == Idle && above:
		if err := d.sink.Start(d.frequency, at); err != nil {
			return None, fmt.Errorf("opening event: %w", err)
		}
		d.state = Recording
		d.openedAt = at
		d.readings = []eventlog.Reading{reading}
		return Opened, nil

	case d.state == Recording && above:
		d.readings = append(d.readings, reading)
		return Extended, nil

	case d.state == Recording:
		readings := d.readings
		d.reset()
		if err := d.sink.End(d.frequency, readings, false); err != nil {
			return Closed, fmt.Errorf("closing event: %w", err)
		}
		return Closed, nil
	}

	return None, nil
}

// Flush closes an open recording as incomplete. It reports whether there was one.
func (d *Detector) Flush() (bool, error) {
	if d.state != Recording {
		return false, nil
	}

	readings := d.readings
	d.reset()
	if err := d.sink.End(d.frequency, readings, true); err != nil {
		return true, fmt.Errorf("flushing event: %w", err)
	}
	return true, nil
}

func (d *Detector) reset() {
	d.state = Idle
	d.openedAt = time.Time{}
	d.readings = nil
}

func (d *Detector) State() State {
	return d.state
}

// OpenedAt returns when the current recording opened, zero while idle.
func (d *Detector) OpenedAt() time.Time {
	return d.openedAt
}

// Buffered returns the number of readings held by the open recording.
func (d *Detector) Buffered() int {
	return len(d.readings)
}
