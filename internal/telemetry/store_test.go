package telemetry

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pulse/internal/heartrate"
)

func samples(vs ...int) []heartrate.Sample {
	out := make([]heartrate.Sample, len(vs))
	for i, v := range vs {
		out[i] = heartrate.Sample(v)
	}
	return out
}

func TestPushKeepsArrivalOrder(t *testing.T) {
	s := NewStore(DefaultCapacity)
	for _, v := range []int{72, 75, 80} {
		s.Push(heartrate.Sample(v))
	}

	snap := s.Snapshot()
	assert.True(t, snap.Connected)
	assert.True(t, snap.HasLatest)
	assert.Equal(t, heartrate.Sample(80), snap.Latest)
	assert.Equal(t, samples(72, 75, 80), snap.History)
}

func TestPushEvictsOldestAtCapacity(t *testing.T) {
	s := NewStore(DefaultCapacity)
	for i := 0; i < 110; i++ {
		s.Push(heartrate.Sample(i))
		require.LessOrEqual(t, len(s.Snapshot().History), DefaultCapacity)
	}

	hist := s.Snapshot().History
	require.Len(t, hist, DefaultCapacity)
	for i, v := range hist {
		require.Equal(t, heartrate.Sample(60+i), v)
	}
}

func TestResetClearsEverything(t *testing.T) {
	s := NewStore(4)
	s.Reset()
	assertCleared(t, s.Snapshot())

	for i := 0; i < 9; i++ {
		s.Push(heartrate.Sample(100 + i))
	}
	s.Reset()
	assertCleared(t, s.Snapshot())

	s.MarkConnected()
	s.Reset()
	assertCleared(t, s.Snapshot())
}

func assertCleared(t *testing.T, snap Snapshot) {
	t.Helper()
	assert.False(t, snap.Connected)
	assert.False(t, snap.HasLatest)
	assert.Zero(t, snap.Latest)
	assert.Empty(t, snap.History)
}

func TestMarkConnectedAwaitsData(t *testing.T) {
	s := NewStore(DefaultCapacity)
	s.MarkConnected()

	snap := s.Snapshot()
	assert.True(t, snap.Connected)
	assert.False(t, snap.HasLatest)
	assert.Empty(t, snap.History)

	v := snap.Version
	s.MarkConnected()
	assert.Equal(t, v, s.Snapshot().Version)
}

func TestSnapshotIsACopy(t *testing.T) {
	s := NewStore(3)
	s.Push(1)
	s.Push(2)

	snap := s.Snapshot()
	snap.History[0] = 99
	assert.Equal(t, samples(1, 2), s.Snapshot().History)

	s.Push(3)
	s.Push(4)
	assert.Equal(t, samples(99, 2), snap.History, "later pushes do not reach an old snapshot")
	assert.Equal(t, samples(2, 3, 4), s.Snapshot().History)
}

func TestVersionAdvances(t *testing.T) {
	s := NewStore(2)
	v0 := s.Snapshot().Version
	s.Push(60)
	v1 := s.Snapshot().Version
	s.Reset()
	v2 := s.Snapshot().Version
	assert.Less(t, v0, v1)
	assert.Less(t, v1, v2)
}

func TestConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := NewStore(DefaultCapacity)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			if i%97 == 0 {
				s.Reset()
				continue
			}
			s.Push(heartrate.Sample(i % 200))
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 2000; i++ {
			snap := s.Snapshot()
			if !snap.Connected {
				assert.Empty(t, snap.History)
				assert.False(t, snap.HasLatest)
				continue
			}
			assert.LessOrEqual(t, len(snap.History), DefaultCapacity)
			if snap.HasLatest {
				assert.Equal(t, snap.Latest, snap.History[len(snap.History)-1])
			}
		}
	}()
	wg.Wait()
}
