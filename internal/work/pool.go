// Package work runs independent units of work with bounded parallelism.
package work

import (
	"context"
	"fmt"
	"sync"
)

// DefaultWorkers is used when a pool is created with a non-positive size.
const DefaultWorkers = 4

// Result is the outcome of one item. Results keep the input order.
type Result[T any, R any] struct {
	Item  T
	Value R
	Err   error
}

// Pool processes items with at most Workers concurrent goroutines.
type Pool struct {
	workers int
}

// NewPool creates a new pool with the specified number of workers
func NewPool(workers int) *Pool {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pool{workers: workers}
}

// Workers returns the configured pool size.
func (p *Pool) Workers() int {
	return p.workers
}

// Run applies fn to every item and collects one result per item.
//
// A failing item never stops the others. Items not yet started when ctx is
// cancelled get ctx.Err() as their error. A panic inside fn is recovered and
// reported as that item's error.
func Run[T any, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) []Result[T, R] {
	results := make([]Result[T, R], len(items))
	if len(items) == 0 {
		return results
	}

	jobs := make(chan int, len(items))

	numWorkers := p.workers
	if len(items) < numWorkers {
		numWorkers = len(items) // Don't spawn more workers than items
	}

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				results[idx] = runOne(ctx, items[idx], fn)
			}
		}()
	}

	for idx := range items {
		jobs <- idx
	}
	close(jobs)

	wg.Wait()
	return results
}

func runOne[T any, R any](ctx context.Context, item T, fn func(context.Context, T) (R, error)) (res Result[T, R]) {
	res.Item = item

	if err := ctx.Err(); err != nil {
		res.Err = err
		return res
	}

	defer func() {
		if p := recover(); p != nil {
			res.Err = fmt.Errorf("panic: %v", p)
		}
	}()

	res.Value, res.Err = fn(ctx, item)
	return res
}
