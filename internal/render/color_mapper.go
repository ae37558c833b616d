package render

import (
	"image/color"
	"math"
)

const DefaultColorMapSize = 256

// NoDataColor is used for cells without a valid power value.
var NoDataColor = color.Black

// ColorMapper maps a normalized level in [0, 1] to a pre-computed theme color.
type ColorMapper struct {
	colorMap []color.Color
	theme    ColorTheme
}

// NewColorMapper creates a color mapper with size pre-computed colors. A
// non-positive size selects DefaultColorMapSize.
func NewColorMapper(theme ColorTheme, size int) *ColorMapper {
	if size <= 1 {
		size = DefaultColorMapSize
	}

	fn := themeFunc(theme)
	cm := &ColorMapper{
		colorMap: make([]color.Color, size),
		theme:    theme,
	}
	for i := range cm.colorMap {
		cm.colorMap[i] = fn(float64(i) / float64(size-1))
	}
	return cm
}

// Color returns the color of a normalized level. Levels outside [0, 1] are clamped.
func (cm *ColorMapper) Color(level float64) color.Color {
	if math.IsNaN(level) {
		return NoDataColor
	}

	index := int(clamp01(level) * float64(len(cm.colorMap)-1))
	return cm.colorMap[index]
}

func (cm *ColorMapper) Theme() ColorTheme {
	return cm.theme
}

func (cm *ColorMapper) Size() int {
	return len(cm.colorMap)
}
