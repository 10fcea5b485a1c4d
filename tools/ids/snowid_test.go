package ids

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenerator_MonotonicAndUnique(t *testing.T) {
	g := NewGenerator(7)
	seen := make(map[int64]struct{}, 10000)
	var last int64
	for i := 0; i < 10000; i++ {
		id := g.Next()
		require.Greater(t, id, last)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
		last = id
	}
	require.Equal(t, int64(7), Node(last))
}

func TestGenerator_Concurrent(t *testing.T) {
	g := NewGenerator(3)
	var (
		mu   sync.Mutex
		seen = make(map[int64]struct{})
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]int64, 0, 500)
			for i := 0; i < 500; i++ {
				local = append(local, g.Next())
			}
			mu.Lock()
			for _, id := range local {
				seen[id] = struct{}{}
			}
			mu.Unlock()
		}()
	}
	wg.Wait()
	require.Len(t, seen, 4000)
}

func TestGenerator_SequenceOverflowWaitsForNextMillisecond(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	g := NewGenerator(1)
	g.now = func() time.Time {
		calls++
		// the clock only advances after the first 4096 ids
		if calls <= 4097 {
			return base
		}
		return base.Add(time.Millisecond)
	}
	var last int64
	for i := 0; i < 4097; i++ {
		last = g.Next()
	}
	require.Equal(t, base.Add(time.Millisecond).UnixMilli(), Time(last).UnixMilli())
}

func TestGenerator_InvalidNodeFallsBack(t *testing.T) {
	require.Equal(t, int64(1), Node(NewGenerator(5000).Next()))
}

func TestTime_RoundTrip(t *testing.T) {
	before := time.Now().Add(-time.Millisecond)
	id := NewGenerator(1).Next()
	require.WithinRange(t, Time(id), before, time.Now().Add(time.Millisecond))
}
