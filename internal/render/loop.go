package render

import (
	"github.com/rs/zerolog"

	"pulse/internal/telemetry"
)

// Source is where frames come from. telemetry.Store implements it.
type Source interface {
	Snapshot() telemetry.Snapshot
}

// Loop renders one frame per Step. Step reads only in-memory state, so it is
// safe to call from a window's update callback.
type Loop struct {
	src    Source
	r      *Renderer
	canvas *Canvas
	log    zerolog.Logger

	frames uint64
	status string
}

func NewLoop(src Source, r *Renderer, c *Canvas, log zerolog.Logger) *Loop {
	return &Loop{src: src, r: r, canvas: c, log: log}
}

// Step draws the current snapshot and presents it.
func (l *Loop) Step() error {
	s := l.src.Snapshot()
	l.r.Draw(l.canvas, s)

	if st := Classify(s); st != l.status {
		l.log.Debug().Str("from", l.status).Str("to", st).Uint64("frame", l.frames).Msg("status changed")
		l.status = st
	}
	l.frames++
	return l.canvas.Display()
}

// Frames returns how many frames were drawn.
func (l *Loop) Frames() uint64 { return l.frames }

// Status returns the label drawn on the last frame.
func (l *Loop) Status() string { return l.status }
