package rtl

import (
	"errors"
	"slices"
	"testing"

	"github.com/roman-kulish/spectrum-watch/internal/sdr/driver"
)

func TestConfig_Args(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		want    []string
		wantErr bool
	}{
		{
			name:   "defaults",
			config: Config{},
			want:   []string{"-f", "100000000", "-s", "2400000", "-n", "1024", "-d", "0", "-"},
		},
		{
			name:   "gain and ppm",
			config: Config{SampleRate: 2_048_000, Gain: 20.7, PPMError: 60, DeviceIndex: 1},
			want:   []string{"-f", "100000000", "-s", "2048000", "-n", "1024", "-d", "1", "-g", "20.7", "-p", "60", "-"},
		},
		{
			name:    "rate in the gap",
			config:  Config{SampleRate: 500_000},
			wantErr: true,
		},
		{
			name:    "gain too high",
			config:  Config{Gain: 60},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.config.Args(100e6, 1024)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !slices.Equal(got, tt.want) {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestDecodeU8(t *testing.T) {
	raw := []byte{0, 255, 127, 128}
	dst := make([]complex128, 2)

	if err := DecodeU8(raw, dst); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if real(dst[0]) != -1 || imag(dst[0]) != 1 {
		t.Errorf("unexpected first sample: %v", dst[0])
	}
	if real(dst[1]) >= 0 || imag(dst[1]) <= 0 {
		t.Errorf("expected samples around zero to straddle it: %v", dst[1])
	}

	if err := DecodeU8(raw[:3], dst); err == nil {
		t.Error("expected error for odd length")
	}
}

func TestConfig_ValidateErrorType(t *testing.T) {
	c := Config{SampleRate: 500_000}

	var configErr *driver.ConfigError
	if err := c.Validate(); !errors.As(err, &configErr) {
		t.Errorf("Validate() error = %v, want *driver.ConfigError", err)
	}
}
