package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/render"
)

type Config struct {
	DBPath        string
	SessionID     int64
	OutputFile    string
	Format        render.Format
	Theme         render.ColorTheme
	Normalization render.Normalization
	TimeZone      *time.Location
	MinFrequency  *float64
	MaxFrequency  *float64
	MinTimestamp  *time.Time
	MaxTimestamp  *time.Time
	Verbose       bool
	NoAnnotations bool
}

func NewConfig() *Config {
	return &Config{
		Format:        render.PNG,
		Theme:         render.EnhancedTheme,
		Normalization: render.PerRow,
		TimeZone:      time.Local,
	}
}

// ParseArgs builds the configuration from command line arguments. Timestamps are
// read as time.DateTime in the -tz location.
func ParseArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var imageFormat, theme, normalization, tz, minTime, maxTime string
	var minFreq, maxFreq float64
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID")
	fs.StringVar(&c.OutputFile, "o", "", "Path to the output file, the extension is added from -f when missing")
	fs.StringVar(&imageFormat, "f", string(render.PNG), "Output image format. [png, jpeg]")
	fs.StringVar(&theme, "theme", string(render.EnhancedTheme), "Color theme. [enhanced, classic, grayscale, jungle, thermal, marine]")
	fs.StringVar(&normalization, "normalization", string(render.PerRow), "Power normalization. [row, global]")
	fs.StringVar(&tz, "tz", "Local", "Time zone for timestamps, e.g. UTC or Europe/Berlin")
	fs.Float64Var(&minFreq, "min-freq", 0, "Lowest segment center frequency in Hz")
	fs.Float64Var(&maxFreq, "max-freq", 0, "Highest segment center frequency in Hz")
	fs.StringVar(&minTime, "from", "", "Earliest cycle time (format 2006-01-02 15:04:05)")
	fs.StringVar(&maxTime, "to", "", "Latest cycle time (format 2006-01-02 15:04:05)")
	fs.BoolVar(&c.Verbose, "verbose", false, "Enable more verbose output")
	fs.BoolVar(&c.NoAnnotations, "no-annotations", false, "Disable annotations such as time and frequency scales")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.TimeZone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "min-freq":
			c.MinFrequency = &minFreq
		case "max-freq":
			c.MaxFrequency = &maxFreq
		}
	})

	if c.MinTimestamp, err = parseTime(minTime, c.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid -from: %w", err)
	}
	if c.MaxTimestamp, err = parseTime(maxTime, c.TimeZone); err != nil {
		return nil, fmt.Errorf("invalid -to: %w", err)
	}

	switch {
	case c.DBPath == "":
		err = errors.New("db path is required")
	case c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.OutputFile == "":
		err = errors.New("output file is required")
	}
	if err != nil {
		fs.Usage()
		return nil, err
	}

	if c.Format, err = render.ParseFormat(imageFormat); err != nil {
		return nil, err
	}
	if c.Theme, err = render.ParseTheme(theme); err != nil {
		return nil, err
	}
	if c.Normalization, err = render.ParseNormalization(normalization); err != nil {
		return nil, err
	}

	if filepath.Ext(c.OutputFile) == "" {
		c.OutputFile = fmt.Sprintf("%s.%s", c.OutputFile, c.Format)
	} else if c.Format, err = render.FormatFromPath(c.OutputFile); err != nil {
		return nil, err
	}

	return c, nil
}

func parseTime(value string, loc *time.Location) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation(time.DateTime, value, loc)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
