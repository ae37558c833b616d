package app

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roman-kulish/spectrum-watch/internal/config"
	"github.com/roman-kulish/spectrum-watch/internal/eventlog"
	"github.com/roman-kulish/spectrum-watch/internal/monitor"
	"github.com/roman-kulish/spectrum-watch/internal/render"
	"github.com/roman-kulish/spectrum-watch/internal/scan"
	"github.com/roman-kulish/spectrum-watch/internal/sdr"
	"github.com/roman-kulish/spectrum-watch/internal/sdr/hackrf"
	"github.com/roman-kulish/spectrum-watch/internal/sdr/rtl"
)

const (
	DeviceRTLSDR DeviceType = "rtl-sdr"
	DeviceHackRF DeviceType = "hackrf"

	defaultNumSamples    = 16 * 1024
	defaultFFTSize       = 1024
	defaultInterval      = time.Second
	defaultWarmup        = 30 * time.Second
	defaultDepth         = 200
	defaultEventLogPath  = "segment_power_data.txt"
	defaultDisplayPeriod = 5 * time.Second
	defaultDataDirectory = "data"
)

type DeviceType string

// Config represents the main application configuration
type Config struct {
	Settings    Settings          `yaml:"settings"`
	Device      DeviceConfig      `yaml:"device"`
	Scan        ScanConfig        `yaml:"scan"`
	Acquisition AcquisitionConfig `yaml:"acquisition"`
	Detection   DetectionConfig   `yaml:"detection"`
	Waterfall   WaterfallConfig   `yaml:"waterfall"`
	EventLog    EventLogConfig    `yaml:"eventLog"`
	Display     DisplayConfig     `yaml:"display"`
	Storage     StorageConfig     `yaml:"storage"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// Settings represents global application settings
type Settings struct {
	LogLevel slog.Level `yaml:"logLevel"`
}

// DeviceConfig represents the radio front end. Config holds *rtl.Config or
// *hackrf.Config depending on Type.
type DeviceConfig struct {
	Type   DeviceType `yaml:"type"`
	Name   string     `yaml:"name"`
	Config any        `yaml:"-"`
}

func (d *DeviceConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		Type   DeviceType `yaml:"type"`
		Name   string     `yaml:"name"`
		Config yaml.Node  `yaml:"config"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}

	d.Type = raw.Type
	d.Name = raw.Name

	switch raw.Type {
	case DeviceRTLSDR:
		var c rtl.Config
		if !raw.Config.IsZero() {
			if err := raw.Config.Decode(&c); err != nil {
				return fmt.Errorf("decoding %s config: %w", raw.Type, err)
			}
		}
		d.Config = &c

	case DeviceHackRF:
		var c hackrf.Config
		if !raw.Config.IsZero() {
			if err := raw.Config.Decode(&c); err != nil {
				return fmt.Errorf("decoding %s config: %w", raw.Type, err)
			}
		}
		d.Config = &c

	default:
		return fmt.Errorf("unknown device type '%s'", raw.Type)
	}

	return nil
}

// Handler creates the capture tool handler for the configured device
func (d *DeviceConfig) Handler() (sdr.Handler, error) {
	switch c := d.Config.(type) {
	case *rtl.Config:
		return rtl.New(c)
	case *hackrf.Config:
		return hackrf.New(c)
	default:
		return nil, fmt.Errorf("unknown device type '%s'", d.Type)
	}
}

func (d *DeviceConfig) Validate() error {
	switch c := d.Config.(type) {
	case *rtl.Config:
		return c.Validate()
	case *hackrf.Config:
		return c.Validate()
	default:
		return errors.New("device type is required")
	}
}

// ScanConfig describes the band and how each segment is captured. Frequencies are in Hz.
type ScanConfig struct {
	FrequencyStart   float64         `yaml:"frequencyStart"`
	FrequencyEnd     float64         `yaml:"frequencyEnd"`
	SegmentBandwidth float64         `yaml:"segmentBandwidth"` // defaults to the usable span of one capture
	Overlap          float64         `yaml:"overlap"`
	Interval         config.Duration `yaml:"interval"`
	NumSamples       int             `yaml:"numSamples"`
	FFTSize          int             `yaml:"fftSize"`
	Crop             float64         `yaml:"crop"` // fraction of edge bins dropped from each segment
}

func (c *ScanConfig) Validate() error {
	if c.FrequencyStart <= 0 || c.FrequencyEnd <= c.FrequencyStart {
		return fmt.Errorf("invalid band %0.0f - %0.0f Hz", c.FrequencyStart, c.FrequencyEnd)
	}
	if c.SegmentBandwidth < 0 {
		return fmt.Errorf("segment bandwidth must not be negative: %0.0f", c.SegmentBandwidth)
	}
	if c.Overlap < 0 || c.Overlap >= 1 {
		return fmt.Errorf("overlap must be in [0, 1): %0.3f", c.Overlap)
	}
	if c.SegmentBandwidth > 0 {
		if err := c.CheckStep(c.SegmentBandwidth); err != nil {
			return err
		}
	}
	if err := c.Interval.Positive("interval"); err != nil {
		return err
	}
	if c.FFTSize <= 0 || c.NumSamples < c.FFTSize {
		return fmt.Errorf("numSamples %d must be at least fftSize %d", c.NumSamples, c.FFTSize)
	}
	if c.Crop < 0 || c.Crop >= 1 {
		return fmt.Errorf("crop must be in [0, 1): %0.3f", c.Crop)
	}
	return nil
}

// CheckStep rejects segment centers closer than the event log can tell apart.
func (c *ScanConfig) CheckStep(bandwidth float64) error {
	if step := bandwidth * (1 - c.Overlap); step < eventlog.MarkerResolution {
		return fmt.Errorf("segment step %0.0f Hz is below the %0.0f Hz event log resolution", step, eventlog.MarkerResolution)
	}
	return nil
}

type AcquisitionConfig struct {
	Retries        int             `yaml:"retries"`
	RetryDelay     config.Duration `yaml:"retryDelay"`
	AttemptTimeout config.Duration `yaml:"attemptTimeout"`
}

func (c *AcquisitionConfig) Validate() error {
	if c.Retries < 1 {
		return fmt.Errorf("retries must be at least 1: %d", c.Retries)
	}
	if c.RetryDelay < 0 {
		return fmt.Errorf("retry delay must not be negative: %s", c.RetryDelay)
	}
	return c.AttemptTimeout.Positive("attempt timeout")
}

type DetectionConfig struct {
	WarmupDuration config.Duration `yaml:"warmupDuration"`
	WarmupCycles   int             `yaml:"warmupCycles"` // overrides warmupDuration when set
	Smoothing      float64         `yaml:"smoothing"`
	Threshold      float64         `yaml:"threshold"`
}

func (c *DetectionConfig) Validate() error {
	if c.WarmupCycles < 0 {
		return fmt.Errorf("warm-up cycles must not be negative: %d", c.WarmupCycles)
	}
	if c.Smoothing <= 0 || c.Smoothing > 1 {
		return fmt.Errorf("smoothing must be in (0, 1]: %f", c.Smoothing)
	}
	if c.Threshold <= 0 {
		return fmt.Errorf("threshold must be positive: %f", c.Threshold)
	}
	return nil
}

// Cycles returns W for the given scan interval
func (c *DetectionConfig) Cycles(interval time.Duration) int {
	if c.WarmupCycles > 0 {
		return c.WarmupCycles
	}
	return monitor.WarmupCycles(c.WarmupDuration.Std(), interval)
}

type WaterfallConfig struct {
	Depth int `yaml:"depth"`
}

type EventLogConfig struct {
	Path string `yaml:"path"`
}

// DisplayConfig controls the periodic heatmap image. An empty OutputFile disables it.
type DisplayConfig struct {
	OutputFile    string          `yaml:"outputFile"`
	Interval      config.Duration `yaml:"interval"`
	Theme         string          `yaml:"theme"`
	Normalization string          `yaml:"normalization"`
	NoAnnotations bool            `yaml:"noAnnotations"`
}

func (c *DisplayConfig) Validate() error {
	if c.OutputFile == "" {
		return nil
	}
	if _, err := render.FormatFromPath(c.OutputFile); err != nil {
		return err
	}
	if _, err := render.ParseTheme(c.Theme); err != nil {
		return err
	}
	if _, err := render.ParseNormalization(c.Normalization); err != nil {
		return err
	}
	return c.Interval.Positive("display interval")
}

// StorageConfig represents storage settings
type StorageConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DataDirectory string `yaml:"dataDirectory"`
}

// MetricsConfig sets the address of the Prometheus endpoint. Empty disables it.
type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// NewConfig returns a configuration with every default applied
func NewConfig() *Config {
	return &Config{
		Scan: ScanConfig{
			Interval:   config.NewDuration(defaultInterval),
			NumSamples: defaultNumSamples,
			FFTSize:    defaultFFTSize,
		},
		Acquisition: AcquisitionConfig{
			Retries:        scan.DefaultRetries,
			RetryDelay:     config.NewDuration(scan.DefaultRetryDelay),
			AttemptTimeout: config.NewDuration(scan.DefaultAttemptTimeout),
		},
		Detection: DetectionConfig{
			WarmupDuration: config.NewDuration(defaultWarmup),
			Smoothing:      monitor.DefaultSmoothing,
			Threshold:      monitor.DefaultThreshold,
		},
		Waterfall: WaterfallConfig{Depth: defaultDepth},
		EventLog:  EventLogConfig{Path: defaultEventLogPath},
		Display: DisplayConfig{
			Interval: config.NewDuration(defaultDisplayPeriod),
			Theme:    string(render.EnhancedTheme),
		},
		Storage: StorageConfig{DataDirectory: defaultDataDirectory},
	}
}

// LoadConfig reads the yaml configuration at path over the defaults and validates it
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	c := NewConfig()
	if err = yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err = c.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return c, nil
}

func (c *Config) Validate() error {
	sections := []struct {
		name string
		fn   func() error
	}{
		{"device", c.Device.Validate},
		{"scan", c.Scan.Validate},
		{"acquisition", c.Acquisition.Validate},
		{"detection", c.Detection.Validate},
		{"display", c.Display.Validate},
	}
	for _, s := range sections {
		if err := s.fn(); err != nil {
			return fmt.Errorf("%s: %w", s.name, err)
		}
	}

	if c.Waterfall.Depth <= 0 {
		return fmt.Errorf("waterfall: depth must be positive: %d", c.Waterfall.Depth)
	}
	if c.EventLog.Path == "" {
		return errors.New("eventLog: path is required")
	}
	return nil
}
