package spectrum

import (
	"time"
)

// ScanSession represents a single monitoring session with a specific device.
// Each session captures metadata about when and how the scanning was performed.
type ScanSession struct {
	ID         int64     `json:"ID"`                      // Unique identifier for the session
	StartTime  time.Time `json:"startTime"`               // When the monitoring session began
	DeviceType string    `json:"deviceType"`              // Type of SDR device used (e.g., "RTL-SDR", "HackRF")
	DeviceID   string    `json:"deviceID"`                // Identifier of the specific device (configured name or generated)
	Config     *string   `json:"config,string,omitempty"` // Optional session configuration in JSON format
}

// PowerSpectrum is the estimated power spectrum of one segment, with the frequency
// axis re-centred on the tuned center frequency.
type PowerSpectrum struct {
	CenterFrequency float64   `json:"centerFrequency"` // Tuned center frequency in Hz
	Frequencies     []float64 `json:"frequencies"`     // Absolute bin frequencies in Hz, ascending
	Power           []float64 `json:"power"`           // Power spectral density per bin, linear
	PowerDB         []float64 `json:"powerDB"`         // Power spectral density per bin, dB
	MeanPowerDB     float64   `json:"meanPowerDB"`     // Mean of the linear density expressed in dB
	BinWidth        float64   `json:"binWidth"`        // Frequency bin width in Hz
}

// SegmentReading is a single segment measurement taken during a scan cycle.
type SegmentReading struct {
	Index           int       `json:"index"`           // Segment index in scan order
	CenterFrequency float64   `json:"centerFrequency"` // Center frequency in Hz
	Power           float64   `json:"power"`           // Mean power in dB
	BinWidth        float64   `json:"binWidth"`        // Frequency bin width in Hz
	NumSamples      int       `json:"numSamples"`      // Number of samples used for this measurement
	Timestamp       time.Time `json:"timestamp"`       // When the segment was acquired
}

// CycleSpan represents one complete pass over every segment of the band.
type CycleSpan struct {
	Timestamp      time.Time        `json:"timestamp"`          // When the cycle started
	FrequencyStart float64          `json:"frequencyStart"`     // Lowest frequency covered by the row in Hz
	FrequencyEnd   float64          `json:"frequencyEnd"`       // Highest frequency covered by the row in Hz
	Segments       []SegmentReading `json:"segments,omitempty"` // One reading per segment, in index order
	Row            []float64        `json:"row,omitempty"`      // Concatenated per-bin dB values across the band
}

// Powers returns the per-segment mean powers in index order.
func (c *CycleSpan) Powers() []float64 {
	powers := make([]float64, len(c.Segments))
	for i, s := range c.Segments {
		powers[i] = s.Power
	}
	return powers
}
