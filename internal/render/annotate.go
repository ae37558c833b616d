package render

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/freetype"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
)

const (
	dpi            = 96.0
	tickMarkHeight = 5
	pixelsPerLabel = 150.0
)

var parseFont = sync.OnceValues(func() (*truetype.Font, error) {
	return freetype.ParseFont(goregular.TTF)
})

// Borders defines the sizes of white space around the waterfall
type Borders struct {
	Top    int // Space for frequency scale
	Left   int // Space for time scale
	Bottom int // Space for information bar
	Right  int // Right padding
}

type annotator struct {
	context  *freetype.Context
	fontFace font.Face
	borders  Borders
	location *time.Location
	timeFmt  string
	dateFmt  string
}

func newAnnotator(cfg Config) (*annotator, error) {
	parsedFont, err := parseFont()
	if err != nil {
		return nil, fmt.Errorf("parsing font: %w", err)
	}

	ctx := freetype.NewContext()
	ctx.SetDPI(dpi)
	ctx.SetFont(parsedFont)
	ctx.SetFontSize(cfg.FontSize)
	ctx.SetHinting(font.HintingNone)
	ctx.SetSrc(image.Black)

	return &annotator{
		context: ctx,
		fontFace: truetype.NewFace(parsedFont, &truetype.Options{
			Size:    cfg.FontSize,
			DPI:     dpi,
			Hinting: font.HintingNone,
		}),
		borders:  cfg.Borders,
		location: cfg.Location,
		timeFmt:  cfg.TimeFormat,
		dateFmt:  cfg.DatetimeFormat,
	}, nil
}

func (a *annotator) Close() error {
	return a.fontFace.Close()
}

// layout describes where the waterfall sits inside the image
type layout struct {
	area           image.Rectangle
	rowHeight      int
	frequencyStart float64
	frequencyEnd   float64
	timestamps     []time.Time
}

func (a *annotator) annotate(img *image.RGBA, l layout) error {
	a.context.SetClip(img.Bounds())
	a.context.SetDst(img)

	ops := []struct {
		msg string
		fn  func(*image.RGBA, layout) error
	}{
		{"drawing frequency scale", a.drawFrequencyScale},
		{"drawing time scale", a.drawTimeScale},
		{"drawing info bar", a.drawInfoBar},
	}
	for _, op := range ops {
		if err := op.fn(img, l); err != nil {
			return fmt.Errorf("%s: %w", op.msg, err)
		}
	}

	return nil
}

func (a *annotator) fontHeight() int {
	metrics := a.fontFace.Metrics()
	return (metrics.Ascent + metrics.Descent).Round()
}

func (a *annotator) drawFrequencyScale(img *image.RGBA, l layout) error {
	span := l.frequencyEnd - l.frequencyStart
	if span <= 0 {
		return nil
	}

	width := l.area.Dx()
	step := niceFrequencyStep(span, width)
	textY := l.area.Min.Y - tickMarkHeight - a.fontHeight()/2

	for freq := math.Ceil(l.frequencyStart/step) * step; freq <= l.frequencyEnd; freq += step {
		x := l.area.Min.X + int((freq-l.frequencyStart)/span*float64(width))

		for y := l.area.Min.Y - tickMarkHeight; y < l.area.Min.Y; y++ {
			img.Set(x, y, color.Black)
		}

		label := FormatFrequency(freq)
		w := font.MeasureString(a.fontFace, label).Round()
		if _, err := a.context.DrawString(label, freetype.Pt(x-w/2, textY)); err != nil {
			return fmt.Errorf("drawing frequency label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawTimeScale(img *image.RGBA, l layout) error {
	if len(l.timestamps) == 0 {
		return nil
	}

	fh := a.fontHeight()
	every := max(1, (fh*3)/max(1, l.rowHeight))

	for i := 0; i < len(l.timestamps); i += every {
		y := l.area.Min.Y + i*l.rowHeight

		for x := l.area.Min.X - tickMarkHeight; x < l.area.Min.X; x++ {
			img.Set(x, y, color.Black)
		}

		label := l.timestamps[i].In(a.location).Format(a.timeFmt)
		if _, err := a.context.DrawString(label, freetype.Pt(4, y+fh/2)); err != nil {
			return fmt.Errorf("drawing time label: %w", err)
		}
	}
	return nil
}

func (a *annotator) drawInfoBar(img *image.RGBA, l layout) error {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Freq: %s - %s", FormatFrequency(l.frequencyStart), FormatFrequency(l.frequencyEnd))

	if n := len(l.timestamps); n > 0 {
		fmt.Fprintf(&sb, "; Time: %s - %s",
			l.timestamps[0].In(a.location).Format(a.dateFmt),
			l.timestamps[n-1].In(a.location).Format(a.dateFmt))
	}

	if width := l.area.Dx(); width > 0 && l.frequencyEnd > l.frequencyStart {
		fmt.Fprintf(&sb, "; 1px = %s", FormatFrequency((l.frequencyEnd-l.frequencyStart)/float64(width)))
	}

	textY := img.Bounds().Max.Y - (a.borders.Bottom-a.fontHeight())/2 - a.fontFace.Metrics().Descent.Round()
	if _, err := a.context.DrawString(sb.String(), freetype.Pt(a.borders.Left, textY)); err != nil {
		return fmt.Errorf("drawing info text: %w", err)
	}

	return nil
}

// FormatFrequency renders a frequency in Hz with an SI prefix, e.g. "433.92 MHz".
func FormatFrequency(hz float64) string {
	value, prefix := humanize.ComputeSI(hz)
	return humanize.FtoaWithDigits(value, 3) + " " + prefix + "Hz"
}

func niceFrequencyStep(span float64, width int) float64 {
	steps := []float64{
		1_000,         // 1 kHz
		10_000,        // 10 kHz
		100_000,       // 100 kHz
		250_000,       // 250 kHz
		500_000,       // 500 kHz
		1_000_000,     // 1 MHz
		2_500_000,     // 2.5 MHz
		5_000_000,     // 5 MHz
		10_000_000,    // 10 MHz
		25_000_000,    // 25 MHz
		50_000_000,    // 50 MHz
		100_000_000,   // 100 MHz
		1_000_000_000, // 1 GHz
	}

	target := span / max(1, float64(width)/pixelsPerLabel)
	for _, step := range steps {
		if step >= target {
			return step
		}
	}
	return span / 2
}
