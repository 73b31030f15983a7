package render

import (
	"image"

	"pulse/internal/heartrate"
)

// MinSpan keeps a flat history from dividing by zero and from magnifying
// noise into full-height swings.
const MinSpan = 10

// Band is the box a sparkline is drawn in. Baseline is the y of the lowest
// value; the line rises Height pixels above it.
type Band struct {
	Left, Width      int
	Baseline, Height int
}

type Plot struct {
	Points   []image.Point
	Min, Max heartrate.Sample
	Span     int
}

// PlotHistory maps history onto b: x = left + i·width/n and
// y = baseline − (v − min)/span·height, with span = max(max − min, MinSpan).
// Fewer than two samples give an empty plot.
func PlotHistory(history []heartrate.Sample, b Band) Plot {
	n := len(history)
	if n < 2 {
		return Plot{}
	}

	lo, hi := history[0], history[0]
	for _, v := range history[1:] {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	span := max(int(hi)-int(lo), MinSpan)

	pts := make([]image.Point, n)
	for i, v := range history {
		x := float64(b.Left) + float64(i)*float64(b.Width)/float64(n)
		y := float64(b.Baseline) - float64(int(v)-int(lo))/float64(span)*float64(b.Height)
		pts[i] = image.Point{X: round(x), Y: round(y)}
	}
	return Plot{Points: pts, Min: lo, Max: hi, Span: span}
}

func round(f float64) int {
	if f < 0 {
		return int(f - 0.5)
	}
	return int(f + 0.5)
}
