package hackrf

import (
	"fmt"
	"strconv"

	"github.com/roman-kulish/spectrum-watch/internal/sdr/driver"
)

const (
	DefaultSampleRate = 10_000_000
	MinSampleRate     = 2_000_000
	MaxSampleRate     = 20_000_000
	MaxLNAGain        = 40
	MaxVGAGain        = 62
	LNAGainStep       = 8
	VGAGainStep       = 2
)

// Usage examples from man page:
// https://manpages.debian.org/bookworm/hackrf/hackrf_transfer.1.en.html

/*
	hackrfConfig := hackrf.Config{
        SampleRate: 10_000_000, // 10 MS/s
        LNAGain:    16,
        VGAGain:    20,
    }
    args, _ := hackrfConfig.Args(2_437_000_000, 16384)
    // Executes: hackrf_transfer -r - -f 2437000000 -s 10000000 -n 16384 -l 16 -g 20
*/

// Config is a struct for configuring the `hackrf_transfer` tool
type Config struct {
	SampleRate int64 `yaml:"sampleRate" json:"sampleRate"` // -s sample_rate_hz (2-20 MS/s)

	LNAGain *int `yaml:"lnaGain" json:"lnaGain"` // -l gain_db LNA (IF) gain, 0-40dB, 8dB steps
	VGAGain *int `yaml:"vgaGain" json:"vgaGain"` // -g gain_db VGA (baseband) gain, 0-62dB, 2dB steps

	SerialNumber string `yaml:"serialNumber" json:"serialNumber"` // -d serial_number Serial number of desired HackRF

	EnableAmp    bool `yaml:"enableAmp" json:"enableAmp"`       // -a amp_enable RX RF amplifier 1=Enable, 0=Disable
	AntennaPower bool `yaml:"antennaPower" json:"antennaPower"` // -p antenna_enable Antenna port power, 1=Enable, 0=Disable
}

// Rate returns the sample rate, falling back to the default
func (c *Config) Rate() int64 {
	if c.SampleRate == 0 {
		return DefaultSampleRate
	}
	return c.SampleRate
}

func (c *Config) Validate() error {
	if rate := c.Rate(); rate < MinSampleRate || rate > MaxSampleRate {
		return driver.NewConfigError(fmt.Sprintf("hackrf.Config: sample rate must be between 2 and 20 MS/s: %d given", rate))
	}

	// LNA gain validation (0-40dB in 8dB steps)
	if c.LNAGain != nil {
		if *c.LNAGain < 0 || *c.LNAGain > MaxLNAGain {
			return driver.NewConfigError(fmt.Sprintf("hackrf.Config: LNA gain must be between 0 and 40 dB: %d given", *c.LNAGain))
		}
		if *c.LNAGain%LNAGainStep != 0 {
			return driver.NewConfigError("hackrf.Config: LNA gain must be a multiple of 8 dB")
		}
	}

	// VGA gain validation (0-62dB in 2dB steps)
	if c.VGAGain != nil {
		if *c.VGAGain < 0 || *c.VGAGain > MaxVGAGain {
			return driver.NewConfigError(fmt.Sprintf("hackrf.Config: VGA gain must be between 0 and 62 dB: %d given", *c.VGAGain))
		}
		if *c.VGAGain%VGAGainStep != 0 {
			return driver.NewConfigError("hackrf.Config: VGA gain must be a multiple of 2 dB")
		}
	}

	return nil
}

// Args builds the command line arguments for `hackrf_transfer`
// See `man hackrf_transfer` for more information:
// https://manpages.debian.org/bookworm/hackrf/hackrf_transfer.1.en.html
func (c *Config) Args(centerFreq float64, numSamples int) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if centerFreq <= 0 {
		return nil, fmt.Errorf("hackrf.Config: center frequency must be positive: %0.0f", centerFreq)
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("hackrf.Config: number of samples must be positive: %d", numSamples)
	}

	args := []string{
		"-r", "-", // Always dump to stdout
		"-f", strconv.FormatFloat(centerFreq, 'f', 0, 64),
		"-s", strconv.FormatInt(c.Rate(), 10),
		"-n", strconv.Itoa(numSamples),
	}

	if c.SerialNumber != "" {
		args = append(args, "-d", c.SerialNumber)
	}

	if c.LNAGain != nil {
		args = append(args, "-l", strconv.Itoa(*c.LNAGain))
	}

	if c.VGAGain != nil {
		args = append(args, "-g", strconv.Itoa(*c.VGAGain))
	}

	if c.EnableAmp {
		args = append(args, "-a", "1")
	}

	if c.AntennaPower {
		args = append(args, "-p", "1")
	}

	return args, nil
}
