package detective

import (
	"context"
	"errors"
	"sync"

	"github.com/jward/detective/internal/classify"
)

// classifyParallel classifies items with a worker pool. Every item is owned
// by exactly one worker for its whole pass and sees the classifiers in
// weight order. The first error in item order is returned and the remaining
// work is cancelled.
func (e *Engine) classifyParallel(ctx context.Context, items []classify.Item, cs []classify.Classifier) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	numWorkers := min(e.workers, len(items))

	workCh := make(chan int, len(items))
	for i := range items {
		workCh <- i
	}
	close(workCh)

	errs := make([]error, len(items))
	var wg sync.WaitGroup
	for range numWorkers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range workCh {
				if ctx.Err() != nil {
					errs[i] = ctx.Err()
					continue
				}
				if err := classify.Run(ctx, items[i], cs); err != nil {
					errs[i] = err
					cancel()
				}
			}
		}()
	}
	wg.Wait()

	// Items skipped after a failure report context.Canceled; prefer the
	// error which caused the cancellation.
	var first, fallback error
	var failed int
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			if fallback == nil {
				fallback = err
			}
		default:
			failed++
			if first == nil {
				first = err
			}
		}
	}
	if first == nil {
		return fallback
	}
	if failed > 1 {
		e.logger.Debug("parallel classify failed", "items", len(items), "failed", failed)
	}
	return first
}
