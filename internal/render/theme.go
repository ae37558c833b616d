package render

import (
	"fmt"
	"image/color"
	"math"
)

// ColorTheme represents a predefined color scheme for power visualization.
type ColorTheme string

const (
	EnhancedTheme  ColorTheme = "enhanced"  // Black to blue to cyan to yellow to red
	ClassicTheme   ColorTheme = "classic"   // Blue to red transition
	GrayscaleTheme ColorTheme = "grayscale" // Black to white transition
	JungleTheme    ColorTheme = "jungle"    // Dark green to yellow transition
	ThermalTheme   ColorTheme = "thermal"   // Black to red to yellow to white
	MarineTheme    ColorTheme = "marine"    // Deep blue to cyan to white
)

var themes = map[ColorTheme]func(float64) color.Color{
	EnhancedTheme:  enhanced,
	ClassicTheme:   classic,
	GrayscaleTheme: grayscale,
	JungleTheme:    jungle,
	ThermalTheme:   thermal,
	MarineTheme:    marine,
}

// ParseTheme validates a theme name. The empty name selects EnhancedTheme.
func ParseTheme(name string) (ColorTheme, error) {
	if name == "" {
		return EnhancedTheme, nil
	}
	if _, ok := themes[ColorTheme(name)]; !ok {
		return "", fmt.Errorf("unknown color theme: %s", name)
	}
	return ColorTheme(name), nil
}

func themeFunc(theme ColorTheme) func(float64) color.Color {
	if fn, ok := themes[theme]; ok {
		return fn
	}
	return enhanced
}

// HSV represents a color in HSV color space
type HSV struct {
	H float64 // Hue [0-360]
	S float64 // Saturation [0-1]
	V float64 // Value [0-1]
}

// RGB converts HSV color space to RGB
func (hsv HSV) RGB() color.Color {
	s := clamp01(hsv.S)
	v := clamp01(hsv.V)

	if s <= 0.0 {
		rgb := uint8(v * 255)
		return color.RGBA{R: rgb, G: rgb, B: rgb, A: 0xff}
	}

	h := math.Mod(hsv.H, 360)
	if h < 0 {
		h += 360
	}
	h /= 60
	i := math.Floor(h)
	f := h - i

	p := v * (1 - s)
	q := v * (1 - s*f)
	t := v * (1 - s*(1-f))

	var r, g, b float64

	switch int(i) {
	case 0:
		r, g, b = v, t, p
	case 1:
		r, g, b = q, v, p
	case 2:
		r, g, b = p, v, t
	case 3:
		r, g, b = p, q, v
	case 4:
		r, g, b = t, p, v
	default:
		r, g, b = v, p, q
	}

	return color.RGBA{R: uint8(r * 255), G: uint8(g * 255), B: uint8(b * 255), A: 0xff}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// enhanced gives better differentiation in the lower power ranges
func enhanced(power float64) color.Color {
	power = clamp01(power)
	boosted := math.Pow(power, 0.7)

	switch {
	case power < 0.25: // black -> blue
		return HSV{H: 240, S: 1.0, V: boosted * 4}.RGB()
	case power < 0.5: // blue -> cyan
		return HSV{H: 240 - ((power - 0.25) * 240), S: 1.0, V: boosted * 1.5}.RGB()
	case power < 0.75: // cyan -> yellow
		p := (power - 0.5) * 4
		return HSV{H: 180 - (p * 120), S: 1.0, V: boosted * 1.5}.RGB()
	default: // yellow -> red
		p := (power - 0.75) * 4
		return HSV{H: 60 - (p * 60), S: 1.0, V: 1.0}.RGB()
	}
}

func classic(power float64) color.Color {
	power = clamp01(power)
	return HSV{
		H: 240 - (power * 240),
		S: 0.9 + (power * 0.1),
		V: math.Pow(power, 0.7),
	}.RGB()
}

func grayscale(power float64) color.Color {
	v := uint8(math.Pow(clamp01(power), 0.7) * 255)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

func jungle(power float64) color.Color {
	power = clamp01(power)
	return HSV{
		H: 120 - (power * 60),
		S: 1.0,
		V: 0.3 + (math.Pow(power, 0.6) * 0.7),
	}.RGB()
}

func thermal(power float64) color.Color {
	power = clamp01(power)
	switch {
	case power < 0.33:
		return color.RGBA{R: uint8(power * 3 * 255), A: 0xff}
	case power < 0.66:
		return color.RGBA{R: 255, G: uint8((power - 0.33) * 3 * 255), A: 0xff}
	default:
		return color.RGBA{R: 255, G: 255, B: uint8(math.Min(1, (power-0.66)*3) * 255), A: 0xff}
	}
}

func marine(power float64) color.Color {
	power = clamp01(power)
	return HSV{
		H: 240 - (power * 60),
		S: 1.0 - (power * 0.8),
		V: 0.3 + (math.Pow(power, 0.6) * 0.7),
	}.RGB()
}
