package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeterministicClock_Sequence(t *testing.T) {
	clock := NewDeterministicClock()
	require.Equal(t, int64(0), clock.Current())

	for want := int64(1); want <= 4; want++ {
		assert.Equal(t, want, clock.Next())
	}
	assert.Equal(t, int64(4), clock.Current())

	clock.Reset()
	assert.Equal(t, int64(0), clock.Current())
	assert.Equal(t, int64(1), clock.Next(), "sequence restarts after reset")
}

func TestDeterministicClock_TwoClocksAgree(t *testing.T) {
	a, b := NewDeterministicClock(), NewDeterministicClock()
	for range 50 {
		require.Equal(t, a.Next(), b.Next())
	}
	assert.Equal(t, a.Now(), b.Now())
}

func TestDeterministicClock_ConcurrentNext(t *testing.T) {
	clock := NewDeterministicClock()
	const workers, calls = 32, 200

	seen := make(chan int64, workers*calls)
	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range calls {
				seen <- clock.Next()
			}
		}()
	}
	wg.Wait()
	close(seen)

	got := make(map[int64]struct{}, workers*calls)
	for v := range seen {
		_, dup := got[v]
		require.False(t, dup, "sequence %d handed out twice", v)
		got[v] = struct{}{}
	}
	assert.Len(t, got, workers*calls)
	assert.Equal(t, int64(workers*calls), clock.Current())
}

func TestDeterministicClock_NowIsFrozen(t *testing.T) {
	clock := NewDeterministicClock()
	assert.Equal(t, Epoch, clock.Now())
	clock.Next()
	assert.Equal(t, Epoch, clock.Now())

	clock.Advance(time.Hour)
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now())

	clock.Reset()
	assert.Equal(t, Epoch.Add(time.Hour), clock.Now(), "reset leaves the wall clock alone")
}

func TestDeterministicClock_At(t *testing.T) {
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.FixedZone("CET", 3600))
	clock := NewDeterministicClockAt(at)
	assert.Equal(t, time.UTC, clock.Now().Location())
	assert.True(t, at.Equal(clock.Now()))
}
