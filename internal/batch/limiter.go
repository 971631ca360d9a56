package batch

import (
	"context"
	"sync"

	"canvas-batch/internal/logging"
)

// DefaultConcurrency bounds how many remote calls run at once when the
// caller does not choose a limit. Kept small to respect Canvas rate limits.
const DefaultConcurrency = 5

// RunLimited runs tasks with at most limit in flight at once and returns
// the results indexed by input position, regardless of completion order.
// Tasks are infallible at this layer: failures travel as values inside T, so
// one task's failure never aborts its siblings. The limiter holds no domain
// knowledge; it is parameterized only by the bound and the task list.
func RunLimited[T any](ctx context.Context, limit int, tasks []func(context.Context) T) []T {
	if limit <= 0 {
		limit = DefaultConcurrency
	}

	results := make([]T, len(tasks))
	semaphore := make(chan struct{}, limit)
	var wg sync.WaitGroup

	logging.Logf(logging.Debug, "Running %d tasks with at most %d in flight", len(tasks), limit)
	for i, task := range tasks {
		// Acquiring before launch also bounds goroutine creation.
		semaphore <- struct{}{}
		wg.Add(1)
		go func(i int, task func(context.Context) T) {
			defer wg.Done()
			defer func() { <-semaphore }()
			results[i] = task(ctx)
		}(i, task)
	}
	wg.Wait()

	return results
}
