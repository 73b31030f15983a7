//go:build !tinygo && cgo

package hal

import (
	"context"
	"image"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"pulse/internal/buildinfo"
)

// WindowConfig controls the desktop window runner.
type WindowConfig struct {
	HostConfig

	// Scale multiplies the framebuffer size for the initial window size.
	Scale int
	Title string
}

// RunWindow starts a desktop window that displays the framebuffer and calls
// the app step once per interval. It blocks until the window closes or ctx
// ends; the latter closes the window and returns nil.
func RunWindow(ctx context.Context, cfg WindowConfig, newApp func(HAL) func() error) error {
	cfg.HostConfig = cfg.HostConfig.withDefaults()
	if cfg.Scale <= 0 {
		cfg.Scale = 1
	}
	if cfg.Title == "" {
		cfg.Title = "Pulse"
	}

	h := newHost(cfg.HostConfig)
	step := newApp(h)

	g := &hostGame{ctx: ctx, h: h, step: step}
	ebiten.SetWindowTitle(cfg.Title + " (" + buildinfo.Short() + ")")
	ebiten.SetWindowSize(h.fb.width*cfg.Scale, h.fb.height*cfg.Scale)
	ebiten.SetWindowFloating(true)
	ebiten.SetTPS(tps(cfg.Interval))
	h.log.Debug().Int("tps", ebiten.TPS()).Msg("window started")
	return ebiten.RunGame(g)
}

func tps(interval time.Duration) int {
	n := int((time.Second + interval/2) / interval)
	if n < 1 {
		return 1
	}
	return n
}

type hostGame struct {
	ctx     context.Context
	h       *hostHAL
	img     *image.RGBA
	fbImg   *ebiten.Image
	scratch []byte
	step    func() error
}

func (g *hostGame) Update() error {
	if err := stepOnce(g.ctx, g.step); err != nil {
		if g.ctx.Err() != nil {
			return ebiten.Termination
		}
		return err
	}
	return nil
}

func (g *hostGame) Draw(screen *ebiten.Image) {
	fb := g.h.fb
	if g.img == nil || g.img.Bounds().Dx() != fb.width || g.img.Bounds().Dy() != fb.height {
		g.img = image.NewRGBA(image.Rect(0, 0, fb.width, fb.height))
		g.scratch = make([]byte, len(fb.buf))
		if g.fbImg != nil {
			g.fbImg.Deallocate()
		}
		g.fbImg = ebiten.NewImage(fb.width, fb.height)
	}

	fb.snapshotRGB565(g.scratch)
	ToRGBA(g.img.Pix, g.scratch)

	g.fbImg.WritePixels(g.img.Pix)
	screen.DrawImage(g.fbImg, nil)
}

func (g *hostGame) Layout(outsideWidth, outsideHeight int) (int, int) {
	return g.h.fb.width, g.h.fb.height
}
