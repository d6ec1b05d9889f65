package fetcher

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// RunBounded drains items with at most min(concurrency, len(items))
// workers in flight. Each worker lane claims the next unclaimed index
// until the list is exhausted; no two lanes process the same index. An
// optional delay is slept between an item's completion and the lane's
// next dispatch.
//
// The worker function owns rate limiter acquisition, retries and store
// side effects, including catching its own failures; RunBounded only
// bounds parallelism and returns once every item has completed.
func RunBounded[T any](ctx context.Context, items []T, concurrency int, delay time.Duration, fn func(ctx context.Context, item T, index int)) {
	n := len(items)
	if n == 0 {
		return
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	if concurrency > n {
		concurrency = n
	}

	var next atomic.Int64
	var wg sync.WaitGroup

	for lane := 0; lane < concurrency; lane++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				index := int(next.Add(1)) - 1
				if index >= n {
					return
				}

				fn(ctx, items[index], index)

				if delay > 0 && index < n-1 {
					select {
					case <-ctx.Done():
						// Keep draining without the pacing delay. A run
						// always completes; timeouts surface per item
						// inside fn.
					case <-time.After(delay):
					}
				}
			}
		}()
	}

	wg.Wait()
}
