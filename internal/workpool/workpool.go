// Package workpool runs independent per-chunk jobs on a bounded number of
// goroutines.
package workpool

import (
	"context"
	"runtime"

	"github.com/shirou/gopsutil/v3/cpu"
	"golang.org/x/sync/errgroup"
)

// Size returns the worker count to use. A positive request wins; otherwise
// the number of logical CPUs is used.
func Size(requested int) int {
	if requested > 0 {
		return requested
	}
	if n, err := cpu.Counts(true); err == nil && n > 0 {
		return n
	}
	return runtime.NumCPU()
}

// Run calls fn for every index in [0, n) using at most workers goroutines.
// Cancellation is checked before each item starts; an item that has
// started always runs to completion. fn reports per-item failures through
// its own results; a non-nil return aborts the remaining items.
func Run(ctx context.Context, workers, n int, fn func(ctx context.Context, i int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Size(workers))
	for i := 0; i < n; i++ {
		if gctx.Err() != nil {
			break
		}
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, i)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
