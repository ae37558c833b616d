// Package render draws waterfall snapshots as annotated heatmap images.
package render

import (
	"errors"
	"fmt"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"github.com/roman-kulish/spectrum-watch/internal/waterfall"
)

const (
	DefaultMinWidth  = 512
	DefaultMaxWidth  = 2048
	DefaultMinHeight = 256
	DefaultFontSize  = 10.0

	defaultTimeFormat     = "15:04:05"
	defaultDatetimeFormat = time.DateTime
)

// Normalization selects how power values map to colors.
type Normalization string

const (
	// PerRow scales every row by its own minimum and maximum.
	PerRow Normalization = "row"

	// Global scales every row by the percentile bounds of the whole snapshot.
	Global Normalization = "global"
)

// ParseNormalization validates a normalization name. The empty name selects PerRow.
func ParseNormalization(name string) (Normalization, error) {
	switch Normalization(name) {
	case "", PerRow:
		return PerRow, nil
	case Global:
		return Global, nil
	default:
		return "", fmt.Errorf("unknown normalization: %s", name)
	}
}

// Config holds all configuration options for waterfall rendering
type Config struct {
	Theme         ColorTheme
	ColorMapSize  int
	Normalization Normalization

	// MinWidth and MaxWidth bound the plot width; columns are resampled to fit
	MinWidth  int
	MaxWidth  int
	MinHeight int // rows are stretched vertically up to this height

	NoAnnotations  bool
	FontSize       float64
	TimeFormat     string
	DatetimeFormat string
	Location       *time.Location
	Borders        Borders
}

func (c *Config) setDefaults() {
	if c.Theme == "" {
		c.Theme = EnhancedTheme
	}
	if c.Normalization == "" {
		c.Normalization = PerRow
	}
	if c.MinWidth <= 0 {
		c.MinWidth = DefaultMinWidth
	}
	if c.MaxWidth <= 0 {
		c.MaxWidth = DefaultMaxWidth
	}
	if c.MaxWidth < c.MinWidth {
		c.MaxWidth = c.MinWidth
	}
	if c.MinHeight <= 0 {
		c.MinHeight = DefaultMinHeight
	}
	if c.FontSize <= 0 {
		c.FontSize = DefaultFontSize
	}
	if c.TimeFormat == "" {
		c.TimeFormat = defaultTimeFormat
	}
	if c.DatetimeFormat == "" {
		c.DatetimeFormat = defaultDatetimeFormat
	}
	if c.Location == nil {
		c.Location = time.Local
	}
	if c.NoAnnotations {
		c.Borders = Borders{}
		return
	}
	if c.Borders == (Borders{}) {
		c.Borders = Borders{Top: 30, Left: 70, Bottom: 30, Right: 20}
	}
}

// Renderer draws waterfall snapshots. Render does not modify the renderer, so one
// renderer may serve several goroutines.
type Renderer struct {
	config   Config
	colorMap *ColorMapper
}

func NewRenderer(config Config) (*Renderer, error) {
	config.setDefaults()

	if _, err := ParseTheme(string(config.Theme)); err != nil {
		return nil, err
	}
	if _, err := ParseNormalization(string(config.Normalization)); err != nil {
		return nil, err
	}

	return &Renderer{
		config:   config,
		colorMap: NewColorMapper(config.Theme, config.ColorMapSize),
	}, nil
}

var defaultRenderer = sync.OnceValue(func() *Renderer {
	r, _ := NewRenderer(Config{})
	return r
})

// Waterfall renders a snapshot with the default configuration: per-row
// normalization, enhanced theme and full annotations.
func Waterfall(snap *waterfall.Snapshot) (*image.RGBA, error) {
	return defaultRenderer().Render(snap)
}

// Render draws the snapshot oldest row first, top to bottom.
func (r *Renderer) Render(snap *waterfall.Snapshot) (*image.RGBA, error) {
	if snap == nil || len(snap.Rows) == 0 {
		return nil, errors.New("nothing to render: snapshot is empty")
	}

	columns := snap.Columns
	if columns <= 0 {
		columns = len(snap.Rows[0])
	}
	if columns <= 0 {
		return nil, errors.New("nothing to render: rows are empty")
	}

	width := min(max(columns, r.config.MinWidth), r.config.MaxWidth)
	rowHeight := max(1, r.config.MinHeight/len(snap.Rows))
	height := rowHeight * len(snap.Rows)

	b := r.config.Borders
	img := image.NewRGBA(image.Rect(0, 0, width+b.Left+b.Right, height+b.Top+b.Bottom))
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	area := image.Rect(b.Left, b.Top, b.Left+width, b.Top+height)

	if !r.config.NoAnnotations {
		ann, err := newAnnotator(r.config)
		if err != nil {
			return nil, fmt.Errorf("creating annotator: %w", err)
		}
		defer ann.Close()

		err = ann.annotate(img, layout{
			area:           area,
			rowHeight:      rowHeight,
			frequencyStart: snap.FrequencyStart,
			frequencyEnd:   snap.FrequencyEnd,
			timestamps:     snap.Timestamps,
		})
		if err != nil {
			return nil, fmt.Errorf("drawing annotations: %w", err)
		}
	}

	levels := r.normalize(snap.Rows)
	for y, row := range levels {
		resampled := resample(row, width)
		for dy := 0; dy < rowHeight; dy++ {
			imgY := area.Min.Y + y*rowHeight + dy
			for x, level := range resampled {
				img.Set(area.Min.X+x, imgY, r.colorMap.Color(level))
			}
		}
	}

	return img, nil
}

func (r *Renderer) normalize(rows [][]float64) [][]float64 {
	levels := make([][]float64, len(rows))

	if r.config.Normalization == Global {
		hist := NewPowerHistogram()
		for _, row := range rows {
			for _, v := range row {
				hist.Update(v)
			}
		}
		bounds := hist.Bounds()

		for i, row := range rows {
			levels[i] = make([]float64, len(row))
			for j, v := range row {
				levels[i][j] = bounds.Normalize(v)
			}
		}
		return levels
	}

	for i, row := range rows {
		levels[i] = normalizeFinite(row)
	}
	return levels
}

// normalizeFinite normalizes a row per row, keeping non-finite cells as NaN so
// they render as no data.
func normalizeFinite(row []float64) []float64 {
	finite := make([]float64, 0, len(row))
	for _, v := range row {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			finite = append(finite, v)
		}
	}
	if len(finite) == len(row) {
		return waterfall.NormalizeRow(row)
	}

	scaled := waterfall.NormalizeRow(finite)
	out := make([]float64, len(row))
	var k int
	for i, v := range row {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			out[i] = math.NaN()
			continue
		}
		out[i] = scaled[k]
		k++
	}
	return out
}

// resample maps a row onto width pixels by nearest neighbour.
func resample(row []float64, width int) []float64 {
	if len(row) == width {
		return row
	}

	out := make([]float64, width)
	if len(row) == 0 {
		for x := range out {
			out[x] = math.NaN()
		}
		return out
	}
	for x := range out {
		out[x] = row[x*len(row)/width]
	}
	return out
}
