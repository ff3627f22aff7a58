// Package batch fans independent combination rows out to a bounded worker
// pool and joins the results back by row index.
package batch

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"combosurv/domain/core"
	"combosurv/internal"

	"golang.org/x/sync/errgroup"
)

// Config bounds the pool.
type Config struct {
	Workers    int
	RowTimeout time.Duration
}

// Executor runs row tasks with a worker limit and a per-row timeout.
type Executor struct {
	workers    int
	rowTimeout time.Duration
	logger     *internal.Logger
}

// Outcome is the joined result for one row. Err is set when the row failed,
// timed out or panicked; other rows are unaffected.
type Outcome[T any] struct {
	Index    int
	Value    T
	Err      error
	Duration time.Duration
}

// NewExecutor creates an executor. Zero values fall back to 4 workers and no
// per-row timeout.
func NewExecutor(cfg Config, logger *internal.Logger) *Executor {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Executor{workers: cfg.Workers, rowTimeout: cfg.RowTimeout, logger: logger.With("Executor")}
}

// Workers returns the worker limit.
func (e *Executor) Workers() int {
	return e.workers
}

// Run executes fn for rows 0..n-1 and returns one outcome per row, in row
// order. Rows never see each other's failures. When ctx is cancelled, rows
// not yet started are reported with ctx's error.
func Run[T any](ctx context.Context, e *Executor, n int, fn func(ctx context.Context, row int) (T, error)) []Outcome[T] {
	outcomes := make([]Outcome[T], n)
	g := new(errgroup.Group)
	g.SetLimit(e.workers)

	for i := 0; i < n; i++ {
		row := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				outcomes[row] = Outcome[T]{Index: row, Err: err}
				return nil
			}
			outcomes[row] = runRow(ctx, e, row, fn)
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, o := range outcomes {
		if o.Err != nil {
			failed++
		}
	}
	e.logger.Info("%d rows finished, %d failed (workers: %d)", n, failed, e.workers)
	return outcomes
}

type rowResult[T any] struct {
	value T
	err   error
}

// runRow runs one row under its own timeout. The task goroutine is abandoned
// if it ignores its context past the deadline; its result is then discarded.
func runRow[T any](ctx context.Context, e *Executor, row int, fn func(ctx context.Context, row int) (T, error)) Outcome[T] {
	start := time.Now()
	rowCtx, cancel := ctx, context.CancelFunc(func() {})
	if e.rowTimeout > 0 {
		rowCtx, cancel = context.WithTimeout(ctx, e.rowTimeout)
	}
	defer cancel()

	done := make(chan rowResult[T], 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("row %d panicked: %v\n%s", row, r, debug.Stack())
				done <- rowResult[T]{err: fmt.Errorf("%w: %v", core.ErrRowPanic, r)}
			}
		}()
		v, err := fn(rowCtx, row)
		done <- rowResult[T]{value: v, err: err}
	}()

	var res rowResult[T]
	select {
	case res = <-done:
	case <-rowCtx.Done():
		if err := ctx.Err(); err != nil {
			res = rowResult[T]{err: err}
			break
		}
		res = rowResult[T]{err: fmt.Errorf("%w after %v: %v", core.ErrRowTimeout, time.Since(start).Round(time.Millisecond), rowCtx.Err())}
	}

	duration := time.Since(start)
	if res.err != nil {
		e.logger.Warn("❌ row %d failed after %v: %v", row, duration, res.err)
	} else {
		e.logger.Debug("✅ row %d finished in %v", row, duration)
	}
	return Outcome[T]{Index: row, Value: res.value, Err: res.err, Duration: duration}
}

// Errors collects the row errors of a batch keyed by row index.
func Errors[T any](outcomes []Outcome[T]) map[int]error {
	out := make(map[int]error)
	for _, o := range outcomes {
		if o.Err != nil {
			out[o.Index] = o.Err
		}
	}
	return out
}
