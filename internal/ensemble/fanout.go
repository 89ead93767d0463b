package ensemble

import (
	"context"
	"sync"
	"time"

	"github.com/ruizhaoca/document-intelligence-pipeline/internal/providers"
)

// outcome pairs one provider with the terminal state of its call.
type outcome[T any] struct {
	provider string
	value    T
	err      error
	elapsed  time.Duration
}

// fanOut invokes call once per provider, all in flight concurrently, and
// blocks until every call has settled. Failures are isolated: one
// provider's error or timeout never aborts a sibling. There is no retry
// and no early return; the round's latency is bounded by the slowest
// call. The returned slice is in collection order, which is the
// non-deterministic completion order.
//
// Cancellation of ctx propagates into every in-flight call; per-call
// deadlines are the provider clients' concern, not the executor's.
func fanOut[T any](ctx context.Context, provs []providers.Provider, call func(context.Context, providers.Provider) (T, error)) []outcome[T] {
	var wg sync.WaitGroup
	results := make(chan outcome[T], len(provs))

	for _, p := range provs {
		wg.Add(1)
		go func(p providers.Provider) {
			defer wg.Done()
			start := time.Now()
			value, err := call(ctx, p)
			results <- outcome[T]{
				provider: p.Name(),
				value:    value,
				err:      err,
				elapsed:  time.Since(start),
			}
		}(p)
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	collected := make([]outcome[T], 0, len(provs))
	for r := range results {
		collected = append(collected, r)
	}
	return collected
}
