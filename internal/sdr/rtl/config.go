package rtl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roman-kulish/spectrum-watch/internal/sdr/driver"
)

const (
	DefaultSampleRate = 2_400_000

	// rtl_sdr accepts two sample rate windows, see `man rtl_sdr`
	SampleRateLowMin  = 225_001
	SampleRateLowMax  = 300_000
	SampleRateHighMin = 900_001
	SampleRateHighMax = 3_200_000

	MaxGain = 49.6
)

// Usage examples from man page:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html

/*
Example: capture 16k samples at 915 MHz
    rtlConfig := rtl.Config{
        SampleRate: 2_400_000, // 2.4 MS/s
        PPMError:   60,
    }
    args, _ := rtlConfig.Args(915_000_000, 16*1024)
    // Executes: rtl_sdr -f 915000000 -s 2400000 -n 16384 -d 0 -p 60 -
*/

// Config is the `rtl_sdr` tool configuration
type Config struct {
	SampleRate  int64   `yaml:"sampleRate" json:"sampleRate"`   // -s samplerate (default: 2.4 MS/s)
	DeviceIndex int     `yaml:"deviceIndex" json:"deviceIndex"` // -d device_index (default: 0)
	Gain        float64 `yaml:"gain" json:"gain"`               // -g gain in dB (default: automatic)
	PPMError    int     `yaml:"ppmError" json:"ppmError"`       // -p ppm_error (default: 0)
}

// Rate returns the sample rate, falling back to the default
func (c *Config) Rate() int64 {
	if c.SampleRate == 0 {
		return DefaultSampleRate
	}
	return c.SampleRate
}

func (c *Config) Validate() error {
	rate := c.Rate()
	if !(rate >= SampleRateLowMin && rate <= SampleRateLowMax) && !(rate >= SampleRateHighMin && rate <= SampleRateHighMax) {
		return driver.NewConfigError(fmt.Sprintf("rtl.Config: invalid sample rate: %d", rate))
	}

	if c.DeviceIndex < 0 {
		return driver.NewConfigError(fmt.Sprintf("rtl.Config: device index must not be negative: %d", c.DeviceIndex))
	}

	if c.Gain < 0 || c.Gain > MaxGain {
		return driver.NewConfigError(fmt.Sprintf("rtl.Config: gain must be between 0 and %0.1f dB: %0.1f given", MaxGain, c.Gain))
	}

	return nil
}

// Args returns the command line arguments for `rtl_sdr`
// See `man rtl_sdr` for more information:
// https://manpages.debian.org/bookworm/rtl-sdr/rtl_sdr.1.en.html
func (c *Config) Args(centerFreq float64, numSamples int) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if centerFreq <= 0 {
		return nil, fmt.Errorf("rtl.Config: center frequency must be positive: %0.0f", centerFreq)
	}
	if numSamples <= 0 {
		return nil, fmt.Errorf("rtl.Config: number of samples must be positive: %d", numSamples)
	}

	args := []string{
		"-f", strconv.FormatFloat(centerFreq, 'f', 0, 64),
		"-s", strconv.FormatInt(c.Rate(), 10),
		"-n", strconv.Itoa(numSamples),
		"-d", strconv.Itoa(c.DeviceIndex), // 0 is the default device index
	}

	if c.Gain > 0 {
		args = append(args, "-g", strconv.FormatFloat(c.Gain, 'f', 1, 64))
	}

	if c.PPMError != 0 {
		args = append(args, "-p", strconv.Itoa(c.PPMError))
	}

	args = append(args, "-") // Always dump to stdout

	return args, nil
}

func (c *Config) String() string {
	args, err := c.Args(1, 1)
	if err != nil {
		return fmt.Sprintf("rtl.Config: failed to build args: %s", err)
	}
	return fmt.Sprintf("%s %s", Runtime, strings.Join(args, " "))
}
