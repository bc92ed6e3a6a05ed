package source

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/cli/go-gh/v2/pkg/api"

	apperrors "github.com/kyleking/docs2ddl/internal/errors"
	"github.com/kyleking/docs2ddl/internal/logging"
)

const maxAttempts = 3

// WorkerPool runs listing calls in parallel with a request budget and
// exponential backoff on rate-limit responses
type WorkerPool struct {
	workers     int
	rateLimiter chan struct{}
	tokenDelay  time.Duration
	backoffBase time.Duration
	maxBackoff  time.Duration
}

// NewWorkerPool creates a pool with the given parallelism and in-flight request budget
func NewWorkerPool(workers int, rateLimit int, backoffBase, maxBackoff time.Duration) *WorkerPool {
	if workers < 1 {
		workers = 1
	}

	if rateLimit < 1 {
		rateLimit = workers
	}

	rateLimiter := make(chan struct{}, rateLimit)
	for range rateLimit {
		rateLimiter <- struct{}{}
	}

	return &WorkerPool{
		workers:     workers,
		rateLimiter: rateLimiter,
		tokenDelay:  100 * time.Millisecond,
		backoffBase: backoffBase,
		maxBackoff:  maxBackoff,
	}
}

// Task represents a unit of work for the worker pool
type Task struct {
	ID   string
	Func func(ctx context.Context) (interface{}, error)
}

// Result represents the result of a task execution
type Result struct {
	ID    string
	Data  interface{}
	Error error
}

// Execute runs tasks in parallel and returns their results in task order
func (wp *WorkerPool) Execute(ctx context.Context, tasks []Task) []Result {
	results := make([]Result, len(tasks))
	if len(tasks) == 0 {
		return results
	}

	indexes := make(chan int, len(tasks))
	for i := range tasks {
		indexes <- i
	}

	close(indexes)

	workers := min(wp.workers, len(tasks))

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range indexes {
				if err := ctx.Err(); err != nil {
					results[i] = Result{ID: tasks[i].ID, Error: err}
					continue
				}

				results[i] = wp.executeTask(ctx, tasks[i])
			}
		}()
	}

	wg.Wait()

	return results
}

// executeTask executes a single task with rate limiting and backoff
func (wp *WorkerPool) executeTask(ctx context.Context, task Task) Result {
	var lastErr error

	backoff := wp.backoffBase

	for attempt := range maxAttempts {
		select {
		case <-wp.rateLimiter:
		case <-ctx.Done():
			return Result{ID: task.ID, Error: ctx.Err()}
		}

		data, err := task.Func(ctx)

		go func() {
			time.Sleep(wp.tokenDelay)
			wp.rateLimiter <- struct{}{}
		}()

		if err == nil {
			return Result{ID: task.ID, Data: data}
		}

		lastErr = err

		if isRateLimitError(err) && attempt < maxAttempts-1 {
			logging.WithFields(map[string]interface{}{
				"task":    task.ID,
				"attempt": attempt + 1,
				"backoff": backoff.String(),
			}).Warn("Rate limited, backing off")

			select {
			case <-time.After(backoff):
				backoff = wp.nextBackoff(backoff)
			case <-ctx.Done():
				return Result{ID: task.ID, Error: ctx.Err()}
			}

			continue
		}

		break
	}

	return Result{ID: task.ID, Error: lastErr}
}

// nextBackoff calculates the next backoff duration with exponential backoff
func (wp *WorkerPool) nextBackoff(current time.Duration) time.Duration {
	next := current * 2
	if next > wp.maxBackoff {
		return wp.maxBackoff
	}

	return next
}

// isRateLimitError reports 429 responses, 403 responses mentioning a rate
// limit, and errors already typed as rate_limit
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}

	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) {
		if httpErr.StatusCode == http.StatusTooManyRequests {
			return true
		}

		if httpErr.StatusCode == http.StatusForbidden &&
			strings.Contains(strings.ToLower(httpErr.Message), "rate limit") {
			return true
		}
	}

	return apperrors.GetType(err) == apperrors.ErrTypeRateLimit
}
