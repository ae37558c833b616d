package app

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"time"
)

type Config struct {
	LogPath     string
	DBPath      string
	SessionID   int64
	Frequency   *float64
	MinDuration time.Duration
	TimeZone    *time.Location
}

func NewConfig() *Config {
	return &Config{TimeZone: time.Local}
}

// ParseArgs builds the configuration from command line arguments. Exactly one
// of -log and -db selects the event source.
func ParseArgs(name string, args []string, output io.Writer) (*Config, error) {
	c := NewConfig()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	var tz string
	var frequency float64
	fs.StringVar(&c.LogPath, "log", "", "Path to the event log file")
	fs.StringVar(&c.DBPath, "db", "", "Path to the database file")
	fs.Int64Var(&c.SessionID, "s", 1, "Session ID, used with -db")
	fs.Float64Var(&frequency, "freq", 0, "Only show events of the segment at this center frequency in Hz")
	fs.DurationVar(&c.MinDuration, "min-duration", 0, "Hide events shorter than this")
	fs.StringVar(&tz, "tz", "Local", "Time zone for timestamps, e.g. UTC or Europe/Berlin")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var err error
	if c.TimeZone, err = time.LoadLocation(tz); err != nil {
		return nil, fmt.Errorf("invalid time zone: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		if f.Name == "freq" {
			c.Frequency = &frequency
		}
	})

	switch {
	case c.LogPath == "" && c.DBPath == "":
		err = errors.New("either -log or -db is required")
	case c.LogPath != "" && c.DBPath != "":
		err = errors.New("-log and -db are mutually exclusive")
	case c.DBPath != "" && c.SessionID <= 0:
		err = errors.New("session id is required")
	case c.MinDuration < 0:
		err = fmt.Errorf("minimum duration must not be negative: %s", c.MinDuration)
	}
	if err != nil {
		fs.Usage()
		return nil, err
	}

	return c, nil
}
