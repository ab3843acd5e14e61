// Package bulk runs one function over many items with a bounded worker pool.
package bulk

import (
	"context"
	"fmt"
	"io"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/lherron/nestmig/internal/progress"
)

// Operation represents a bulk operation configuration
type Operation struct {
	Jobs            int
	ContinueOnError bool
	Ordered         bool
	// Progress receives one step per finished item; nil disables reporting.
	Progress progress.Reporter
	// Label names the operation in progress output.
	Label string
}

// Result represents the result of a bulk operation
type Result struct {
	TotalItems int
	Succeeded  int
	Failed     int
	Errors     []ItemError
}

// ItemError represents an error for a specific item
type ItemError struct {
	Item  string
	Error error
}

// ItemFunc is the function to execute for each item
type ItemFunc func(ctx context.Context, item string) error

// Execute runs the bulk operation on the given items. Items not started when
// ctx is cancelled are neither succeeded nor failed.
func (op *Operation) Execute(ctx context.Context, items []string, fn ItemFunc) *Result {
	result := &Result{
		TotalItems: len(items),
	}

	if len(items) == 0 {
		return result
	}

	reporter := op.Progress
	if reporter == nil {
		reporter = progress.Nop{}
	}
	label := op.Label
	if label == "" {
		label = "Processing"
	}
	reporter.Start(label, len(items))
	defer reporter.Done()

	// Auto-detect CPU count if jobs == 0
	jobs := op.Jobs
	if jobs <= 0 {
		jobs = runtime.NumCPU()
	}

	// Force sequential if ordered or jobs == 1
	if op.Ordered || jobs == 1 {
		return op.executeSequential(ctx, items, fn, reporter)
	}

	return op.executeParallel(ctx, items, fn, jobs, reporter)
}

// executeSequential processes items one by one
func (op *Operation) executeSequential(ctx context.Context, items []string, fn ItemFunc, reporter progress.Reporter) *Result {
	result := &Result{
		TotalItems: len(items),
	}

	for _, item := range items {
		if ctx.Err() != nil {
			return result
		}

		err := fn(ctx, item)
		reporter.Step()
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, ItemError{
				Item:  item,
				Error: err,
			})

			if !op.ContinueOnError {
				return result
			}
		} else {
			result.Succeeded++
		}
	}

	return result
}

// executeParallel processes items in parallel using a worker pool
func (op *Operation) executeParallel(ctx context.Context, items []string, fn ItemFunc, workers int, reporter progress.Reporter) *Result {
	result := &Result{
		TotalItems: len(items),
	}

	// Create work queue
	workQueue := make(chan string, len(items))
	for _, item := range items {
		workQueue <- item
	}
	close(workQueue)

	var (
		succeeded  int32
		failed     int32
		errorsMux  sync.Mutex
		stopSignal int32 // 0 = continue, 1 = stop
	)

	// Worker pool
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			for item := range workQueue {
				// Check if we should stop
				if ctx.Err() != nil || (!op.ContinueOnError && atomic.LoadInt32(&stopSignal) == 1) {
					return
				}

				err := fn(ctx, item)
				reporter.Step()

				if err != nil {
					atomic.AddInt32(&failed, 1)
					errorsMux.Lock()
					result.Errors = append(result.Errors, ItemError{
						Item:  item,
						Error: err,
					})
					errorsMux.Unlock()

					if !op.ContinueOnError {
						atomic.StoreInt32(&stopSignal, 1)
					}
				} else {
					atomic.AddInt32(&succeeded, 1)
				}
			}
		}()
	}

	wg.Wait()

	result.Succeeded = int(succeeded)
	result.Failed = int(failed)

	return result
}

// ExitCode returns the appropriate exit code for the result
func (r *Result) ExitCode() int {
	if r.Failed == 0 {
		return 0 // All succeeded
	}
	if r.Succeeded > 0 {
		return 5 // Partial success
	}
	return 1 // All failed
}

// PrintSummary prints a human-readable summary of the result
func (r *Result) PrintSummary(w io.Writer) {
	if r.Failed == 0 {
		fmt.Fprintf(w, "\n✓ All %d operations succeeded\n", r.TotalItems)
	} else if r.Succeeded == 0 {
		fmt.Fprintf(w, "\n✗ All %d operations failed\n", r.TotalItems)
	} else {
		fmt.Fprintf(w, "\n⚠ Partial success: %d succeeded, %d failed (out of %d)\n",
			r.Succeeded, r.Failed, r.TotalItems)
	}

	if len(r.Errors) > 0 && len(r.Errors) <= 10 {
		fmt.Fprintf(w, "\nErrors:\n")
		for _, e := range r.Errors {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	} else if len(r.Errors) > 10 {
		fmt.Fprintf(w, "\nShowing first 10 errors (of %d):\n", len(r.Errors))
		for _, e := range r.Errors[:10] {
			fmt.Fprintf(w, "  %s: %v\n", e.Item, e.Error)
		}
	}
}
