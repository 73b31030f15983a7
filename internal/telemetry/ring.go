package telemetry

import "pulse/internal/heartrate"

// ring is a fixed-capacity FIFO; Append overwrites the oldest sample when full.
type ring struct {
	buf   []heartrate.Sample
	head  int
	count int
}

func newRing(n int) *ring {
	if n < 1 {
		n = 1
	}
	return &ring{buf: make([]heartrate.Sample, n)}
}

func (r *ring) Len() int { return r.count }
func (r *ring) Cap() int { return len(r.buf) }

func (r *ring) Append(v heartrate.Sample) {
	r.buf[r.head] = v
	r.head++
	if r.head >= len(r.buf) {
		r.head = 0
	}
	if r.count < len(r.buf) {
		r.count++
	}
}

func (r *ring) At(i int) heartrate.Sample {
	if i < 0 || i >= r.count {
		return 0
	}
	start := r.head - r.count
	if start < 0 {
		start += len(r.buf)
	}
	idx := start + i
	if idx >= len(r.buf) {
		idx -= len(r.buf)
	}
	return r.buf[idx]
}

// Slice copies the contents out, oldest first.
func (r *ring) Slice() []heartrate.Sample {
	if r.count == 0 {
		return nil
	}
	out := make([]heartrate.Sample, r.count)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

func (r *ring) Clear() {
	r.head = 0
	r.count = 0
}
