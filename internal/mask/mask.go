// Package mask builds the heart-shaped backdrop: a silhouette plus a stack of
// shrinking, fading layers that give it depth.
package mask

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"
)

const (
	DefaultSize   = 240
	DefaultLayers = 60
	DefaultSteps  = 200
	DefaultFloor  = 50

	// The unit curve spans roughly ±17; 5.6 fits it into a 240 canvas.
	unitScale = 5.6
	// Layer i is scaled by 1 - i/shrinkDivisor.
	shrinkDivisor = 150.0
)

// Outer is the silhouette colour.
var Outer = color.NRGBA{R: 0xff, G: 0x22, B: 0x55, A: 0xff}

type Point struct {
	X, Y float64
}

// Layer is one filled polygon.
type Layer struct {
	Polygon []Point
	Fill    color.NRGBA
}

type Config struct {
	Size   int
	Layers int
	Steps  int
	// AlphaFloor is the minimum alpha of an inner layer.
	AlphaFloor int
}

func DefaultConfig() Config {
	return Config{
		Size:       DefaultSize,
		Layers:     DefaultLayers,
		Steps:      DefaultSteps,
		AlphaFloor: DefaultFloor,
	}
}

func (c Config) withDefaults() Config {
	if c.Size <= 0 {
		c.Size = DefaultSize
	}
	if c.Layers < 0 {
		c.Layers = 0
	}
	if c.Steps < 3 {
		c.Steps = DefaultSteps
	}
	if c.AlphaFloor <= 0 {
		c.AlphaFloor = DefaultFloor
	}
	return c
}

// Heart samples the heart curve at steps points over [0, 2π], scaled to a
// size×size canvas with y pointing down and the origin at its centre.
func Heart(size, steps int) []Point {
	scale := unitScale * float64(size) / DefaultSize
	c := float64(size) / 2

	pts := make([]Point, steps)
	for k := 0; k < steps; k++ {
		t := 2 * math.Pi * float64(k) / float64(steps-1)
		s := math.Sin(t)
		x := 16 * s * s * s
		y := 13*math.Cos(t) - 5*math.Cos(2*t) - 2*math.Cos(3*t) - math.Cos(4*t)
		pts[k] = Point{X: x*scale + c, Y: -y*scale + c}
	}
	return pts
}

// Generate returns the outer silhouette followed by cfg.Layers inner layers.
// The result depends only on cfg.
func Generate(cfg Config) []Layer {
	cfg = cfg.withDefaults()
	outline := Heart(cfg.Size, cfg.Steps)
	c := float64(cfg.Size) / 2

	layers := make([]Layer, 0, cfg.Layers+1)
	layers = append(layers, Layer{Polygon: outline, Fill: Outer})

	for i := 0; i < cfg.Layers; i++ {
		s := 1 - float64(i)/shrinkDivisor
		poly := make([]Point, len(outline))
		for k, p := range outline {
			poly[k] = Point{X: c + (p.X-c)*s, Y: c + (p.Y-c)*s}
		}
		layers = append(layers, Layer{Polygon: poly, Fill: layerColor(i, cfg.AlphaFloor)})
	}
	return layers
}

func layerColor(i, floor int) color.NRGBA {
	return color.NRGBA{
		R: channel(255 - i),
		G: channel(70 - i/2),
		B: channel(100 - i/2),
		A: channel(max(floor, 255-4*i)),
	}
}

func channel(v int) uint8 {
	return uint8(min(255, max(0, v)))
}

// Rasterize composites layers in order onto a transparent size×size image.
func Rasterize(layers []Layer, size int) *image.RGBA {
	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	r := vector.NewRasterizer(size, size)
	r.DrawOp = draw.Over
	for _, l := range layers {
		if len(l.Polygon) < 3 {
			continue
		}
		r.Reset(size, size)
		r.MoveTo(float32(l.Polygon[0].X), float32(l.Polygon[0].Y))
		for _, p := range l.Polygon[1:] {
			r.LineTo(float32(p.X), float32(p.Y))
		}
		r.ClosePath()
		r.Draw(dst, dst.Bounds(), image.NewUniform(l.Fill), image.Point{})
	}
	return dst
}

// Build generates and rasterizes in one go.
func Build(cfg Config) *image.RGBA {
	cfg = cfg.withDefaults()
	return Rasterize(Generate(cfg), cfg.Size)
}
