package render

import (
	"image"
	"image/color"
	"math"

	"tinygo.org/x/drivers"

	"pulse/hal"
)

// Canvas draws into an RGB565 framebuffer. It satisfies drivers.Displayer so
// tinyfont can write straight into it.
type Canvas struct {
	fb hal.Framebuffer
}

var _ drivers.Displayer = (*Canvas)(nil)

func NewCanvas(fb hal.Framebuffer) *Canvas {
	return &Canvas{fb: fb}
}

func (d *Canvas) usable() bool {
	return d.fb != nil && d.fb.Format() == hal.PixelFormatRGB565 && d.fb.Buffer() != nil
}

func (d *Canvas) Size() (x, y int16) {
	if d.fb == nil {
		return 0, 0
	}
	return int16(d.fb.Width()), int16(d.fb.Height())
}

func (d *Canvas) offset(x, y int) (int, bool) {
	if x < 0 || x >= d.fb.Width() || y < 0 || y >= d.fb.Height() {
		return 0, false
	}
	off := y*d.fb.StrideBytes() + x*2
	if off+1 >= len(d.fb.Buffer()) {
		return 0, false
	}
	return off, true
}

func (d *Canvas) SetPixel(x, y int16, c color.RGBA) {
	if !d.usable() {
		return
	}
	off, ok := d.offset(int(x), int(y))
	if !ok {
		return
	}
	put(d.fb.Buffer(), off, hal.RGB565(c.R, c.G, c.B))
}

// Pixel reads back a pixel; out of range reads are black.
func (d *Canvas) Pixel(x, y int) color.RGBA {
	if !d.usable() {
		return color.RGBA{}
	}
	off, ok := d.offset(x, y)
	if !ok {
		return color.RGBA{}
	}
	buf := d.fb.Buffer()
	r, g, b := hal.RGB888(uint16(buf[off]) | uint16(buf[off+1])<<8)
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

func (d *Canvas) Display() error {
	if d.fb == nil {
		return nil
	}
	return d.fb.Present()
}

func (d *Canvas) FillRectangle(x, y, width, height int16, c color.RGBA) error {
	if !d.usable() {
		return nil
	}
	w := d.fb.Width()
	h := d.fb.Height()

	x0 := clampInt(int(x), 0, w)
	y0 := clampInt(int(y), 0, h)
	x1 := clampInt(int(x)+int(width), 0, w)
	y1 := clampInt(int(y)+int(height), 0, h)
	if x0 >= x1 || y0 >= y1 {
		return nil
	}

	pixel := hal.RGB565(c.R, c.G, c.B)
	buf := d.fb.Buffer()
	stride := d.fb.StrideBytes()
	for py := y0; py < y1; py++ {
		row := py * stride
		for px := x0; px < x1; px++ {
			put(buf, row+px*2, pixel)
		}
	}
	return nil
}

func (d *Canvas) SetRotation(drivers.Rotation) error { return nil }

// Load copies a prepared RGB565 frame of the same geometry into the buffer.
func (d *Canvas) Load(frame []byte) {
	if !d.usable() {
		return
	}
	copy(d.fb.Buffer(), frame)
}

// Line draws a Bresenham line.
func (d *Canvas) Line(x0, y0, x1, y1 int, c color.RGBA) {
	dx := absInt(x1 - x0)
	sx := -1
	if x0 < x1 {
		sx = 1
	}
	dy := -absInt(y1 - y0)
	sy := -1
	if y0 < y1 {
		sy = 1
	}
	err := dx + dy
	for {
		d.SetPixel(int16(x0), int16(y0), c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

// Polyline joins pts with lines of the given width in pixels.
func (d *Canvas) Polyline(pts []image.Point, width int, c color.RGBA) {
	if width < 1 {
		width = 1
	}
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		// Thicken across the minor axis so steep segments keep their width.
		step := image.Pt(0, 1)
		if absInt(b.Y-a.Y) > absInt(b.X-a.X) {
			step = image.Pt(1, 0)
		}
		for o := 0; o < width; o++ {
			off := step.Mul(o)
			d.Line(a.X+off.X, a.Y+off.Y, b.X+off.X, b.Y+off.Y, c)
		}
	}
}

// Disc fills a circle of radius r and rings it with outline.
func (d *Canvas) Disc(cx, cy, r int, fill, outline color.RGBA) {
	for y := -r; y <= r; y++ {
		dx := int(math.Sqrt(float64(r*r - y*y)))
		_ = d.FillRectangle(int16(cx-dx), int16(cy+y), int16(dx*2+1), 1, fill)
	}

	x, y, err := r, 0, 0
	for x >= y {
		d.SetPixel(int16(cx+x), int16(cy+y), outline)
		d.SetPixel(int16(cx+y), int16(cy+x), outline)
		d.SetPixel(int16(cx-x), int16(cy+y), outline)
		d.SetPixel(int16(cx-y), int16(cy+x), outline)
		d.SetPixel(int16(cx-x), int16(cy-y), outline)
		d.SetPixel(int16(cx-y), int16(cy-x), outline)
		d.SetPixel(int16(cx+x), int16(cy-y), outline)
		d.SetPixel(int16(cx+y), int16(cy-x), outline)
		y++
		if err <= 0 {
			err += 2*y + 1
		}
		if err > 0 {
			x--
			err -= 2*x + 1
		}
	}
}

// Flatten composites src (premultiplied RGBA) over an opaque background and
// returns it as an RGB565 frame of size w×h.
func Flatten(src *image.RGBA, w, h int, bg color.RGBA) []byte {
	out := make([]byte, w*h*2)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.RGBA{}
			if (image.Point{X: x, Y: y}).In(src.Bounds()) {
				c = src.RGBAAt(x, y)
			}
			inv := 255 - uint32(c.A)
			r := uint32(c.R) + uint32(bg.R)*inv/255
			g := uint32(c.G) + uint32(bg.G)*inv/255
			b := uint32(c.B) + uint32(bg.B)*inv/255
			put(out, (y*w+x)*2, hal.RGB565(uint8(min(r, 255)), uint8(min(g, 255)), uint8(min(b, 255))))
		}
	}
	return out
}

func put(buf []byte, off int, pixel uint16) {
	buf[off] = byte(pixel)
	buf[off+1] = byte(pixel >> 8)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
