package render

import (
	"image"
	"image/color"
	"strconv"

	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"pulse/internal/telemetry"
)

var (
	colorBG          = color.RGBA{R: 0x00, G: 0x00, B: 0x00, A: 0xff}
	colorValue       = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorPlaceholder = color.RGBA{R: 0xaa, G: 0xaa, B: 0xaa, A: 0xff}
	colorLine        = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	colorMarker      = color.RGBA{R: 0xff, G: 0x55, B: 0x55, A: 0xff}
	colorMarkerRing  = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Placeholder is shown instead of a value when there is none.
const Placeholder = "--"

// Layout positions everything on a size×size canvas. Text positions are the
// vertical centre of the line.
type Layout struct {
	CentreX int

	ValueY, UnitY, StatusY int

	Band         Band
	LineWidth    int
	MarkerRadius int
}

// LayoutFor scales the 240 pixel reference layout to size.
func LayoutFor(size int) Layout {
	s := func(v int) int { return v * size / 240 }
	return Layout{
		CentreX: s(120),
		ValueY:  s(95),
		UnitY:   s(130),
		StatusY: s(160),
		Band: Band{
			Left:     s(10),
			Width:    s(220),
			Baseline: s(190),
			Height:   s(30),
		},
		LineWidth:    max(1, s(2)),
		MarkerRadius: max(1, s(3)),
	}
}

type textStyle struct {
	font *tinyfont.Font
	// ascent is the height of a digit above the baseline.
	ascent int16
}

var (
	valueStyle  = textStyle{font: &freemono.Bold24pt7b, ascent: 22}
	unitStyle   = textStyle{font: &freemono.Bold12pt7b, ascent: 11}
	statusStyle = textStyle{font: &freemono.Regular9pt7b, ascent: 9}
)

// Renderer draws one frame from a snapshot. The backdrop is prepared once and
// copied in at the start of each frame.
type Renderer struct {
	size     int
	layout   Layout
	backdrop []byte
}

// NewRenderer flattens backdrop (usually the heart mask) onto the
// background once. A nil backdrop leaves the background plain.
func NewRenderer(size int, backdrop *image.RGBA) *Renderer {
	if backdrop == nil {
		backdrop = image.NewRGBA(image.Rect(0, 0, size, size))
	}
	return &Renderer{
		size:     size,
		layout:   LayoutFor(size),
		backdrop: Flatten(backdrop, size, size, colorBG),
	}
}

func (r *Renderer) Layout() Layout { return r.layout }

// Draw renders s into c. It never fails; missing data renders as
// placeholders.
func (r *Renderer) Draw(c *Canvas, s telemetry.Snapshot) {
	c.Load(r.backdrop)

	text, fg := Placeholder, colorPlaceholder
	if s.HasLatest {
		text, fg = strconv.Itoa(int(s.Latest)), colorValue
	}
	l := r.layout
	centred(c, valueStyle, l.CentreX, l.ValueY, text, fg)
	centred(c, unitStyle, l.CentreX, l.UnitY, "BPM", fg)
	centred(c, statusStyle, l.CentreX, l.StatusY, Classify(s), fg)

	p := PlotHistory(s.History, l.Band)
	if len(p.Points) < 2 {
		return
	}
	c.Polyline(p.Points, l.LineWidth, colorLine)
	last := p.Points[len(p.Points)-1]
	c.Disc(last.X, last.Y, l.MarkerRadius, colorMarker, colorMarkerRing)
}

func centred(c *Canvas, st textStyle, cx, cy int, s string, fg color.RGBA) {
	_, w := tinyfont.LineWidth(st.font, s)
	x := int16(cx) - int16(w)/2
	y := int16(cy) + st.ascent/2
	tinyfont.WriteLine(c, st.font, x, y, s, fg)
}
