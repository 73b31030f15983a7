// Package telemetry holds the live heart-rate state shared by the link and
// render goroutines.
package telemetry

import (
	"sync"

	"pulse/internal/heartrate"
)

// DefaultCapacity is the number of samples kept for the sparkline.
const DefaultCapacity = 50

// Snapshot is a point-in-time copy of the store.
//
// Connected == false always comes with an empty History and HasLatest == false.
type Snapshot struct {
	Latest    heartrate.Sample
	HasLatest bool
	History   []heartrate.Sample
	Connected bool

	// Version increases on every mutation.
	Version uint64
}

// Store is a mutex-guarded ring of recent samples plus the latest value and
// the link flag. The zero value is not usable; call NewStore.
type Store struct {
	mu        sync.Mutex
	hist      *ring
	latest    heartrate.Sample
	hasLatest bool
	connected bool
	version   uint64
}

func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{hist: newRing(capacity)}
}

// Capacity returns the history bound.
func (s *Store) Capacity() int { return s.hist.Cap() }

// Push records a sample and marks the link connected.
func (s *Store) Push(v heartrate.Sample) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hist.Append(v)
	s.latest = v
	s.hasLatest = true
	s.connected = true
	s.version++
}

// MarkConnected flags the link as up without touching history, so a freshly
// subscribed link reads as "awaiting data" until the first sample.
func (s *Store) MarkConnected() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.connected {
		return
	}
	s.connected = true
	s.version++
}

// Reset drops all samples and marks the link down.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.hist.Clear()
	s.latest = 0
	s.hasLatest = false
	s.connected = false
	s.version++
}

// Snapshot returns a copy that later mutations do not affect.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Snapshot{
		Latest:    s.latest,
		HasLatest: s.hasLatest,
		History:   s.hist.Slice(),
		Connected: s.connected,
		Version:   s.version,
	}
}
