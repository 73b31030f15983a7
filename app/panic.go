package app

import (
	"fmt"
	"image/color"
	"runtime/debug"
	"strings"
	"unicode/utf8"

	"github.com/rs/zerolog"
	"tinygo.org/x/tinyfont"
	"tinygo.org/x/tinyfont/freemono"

	"pulse/internal/render"
)

// guard turns a panic inside step into a logged error and a panic screen.
// The runner stops on the returned error.
func guard(c *render.Canvas, log zerolog.Logger, step func() error) func() error {
	return func() (err error) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}
			stack := debug.Stack()
			log.Error().Interface("panic", v).Bytes("stack", stack).Msg("render step panicked")
			drawPanic(c, v, stack)
			err = fmt.Errorf("render step panicked: %v", v)
		}()
		return step()
	}
}

func drawPanic(c *render.Canvas, v any, stack []byte) {
	w, h := c.Size()
	_ = c.FillRectangle(0, 0, w, h, color.RGBA{R: 255, G: 255, B: 255, A: 255})

	font := &freemono.Regular9pt7b
	fontHeight, fontOffset := int16(18), int16(12)
	_, outboxWidth := tinyfont.LineWidth(font, "0")
	fontWidth := int16(outboxWidth)
	if fontWidth <= 0 || fontHeight <= 0 {
		_ = c.Display()
		return
	}

	lines := []string{"Pulse Panic:", fmt.Sprintf("panic: %v", v), "stack:"}
	for _, line := range strings.Split(string(stack), "\n") {
		if line != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}

	fg := color.RGBA{R: 0, G: 0, B: 0, A: 255}
	cols := w / fontWidth
	if cols <= 0 {
		cols = 1
	}

	y := int16(0)
	for _, line := range lines {
		for len(line) > 0 {
			if y+fontHeight > h {
				_ = c.Display()
				return
			}
			chunk, rest := takeRunes(line, cols)
			tinyfont.WriteLine(c, font, 0, y+fontOffset, chunk, fg)
			y += fontHeight
			line = strings.TrimLeft(rest, " ")
		}
	}
	_ = c.Display()
}

func takeRunes(s string, n int16) (prefix, rest string) {
	if n <= 0 || s == "" {
		return "", s
	}
	if int64(len(s)) <= int64(n) {
		return s, ""
	}
	var i int
	var count int16
	for i < len(s) && count < n {
		_, size := utf8.DecodeRuneInString(s[i:])
		if size <= 0 {
			break
		}
		i += size
		count++
	}
	if i >= len(s) {
		return s, ""
	}
	return s[:i], s[i:]
}
