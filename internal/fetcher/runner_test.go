package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunBoundedProcessesEveryItemOnce(t *testing.T) {
	items := make([]int, 100)
	for i := range items {
		items[i] = i
	}

	var mu sync.Mutex
	seen := make(map[int]int)

	RunBounded(context.Background(), items, 8, 0, func(_ context.Context, item, index int) {
		mu.Lock()
		seen[index]++
		mu.Unlock()
		assert.Equal(t, item, index)
	})

	require.Len(t, seen, len(items))
	for index, count := range seen {
		assert.Equal(t, 1, count, "index %d processed more than once", index)
	}
}

func TestRunBoundedNeverExceedsConcurrency(t *testing.T) {
	const concurrency = 4
	items := make([]int, 50)

	var inFlight, peak atomic.Int64
	RunBounded(context.Background(), items, concurrency, 0, func(_ context.Context, _ int, _ int) {
		current := inFlight.Add(1)
		for {
			max := peak.Load()
			if current <= max || peak.CompareAndSwap(max, current) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	})

	assert.LessOrEqual(t, peak.Load(), int64(concurrency))
	assert.Positive(t, peak.Load())
}

func TestRunBoundedClampsConcurrencyToItemCount(t *testing.T) {
	var calls atomic.Int64
	RunBounded(context.Background(), []int{1, 2}, 100, 0, func(_ context.Context, _ int, _ int) {
		calls.Add(1)
	})
	assert.Equal(t, int64(2), calls.Load())
}

func TestRunBoundedEmptyItems(t *testing.T) {
	called := false
	RunBounded(context.Background(), nil, 4, 0, func(_ context.Context, _ int, _ int) {
		called = true
	})
	assert.False(t, called)
}

func TestRunBoundedZeroConcurrencyDefaultsToOne(t *testing.T) {
	var inFlight, peak atomic.Int64
	RunBounded(context.Background(), []int{1, 2, 3}, 0, 0, func(_ context.Context, _ int, _ int) {
		current := inFlight.Add(1)
		if current > peak.Load() {
			peak.Store(current)
		}
		time.Sleep(time.Millisecond)
		inFlight.Add(-1)
	})
	assert.Equal(t, int64(1), peak.Load())
}

func TestRunBoundedDrainsWithoutDelayAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int64
	done := make(chan struct{})
	go func() {
		RunBounded(ctx, []int{1, 2, 3, 4}, 1, time.Hour, func(_ context.Context, _ int, _ int) {
			calls.Add(1)
		})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("run did not drain after cancellation")
	}
	assert.Equal(t, int64(4), calls.Load())
}
