package vm

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/funvibe/ela/internal/object"
)

// Unit is one independent evaluation handed to a pool: call the export
// Function of Module with Args, or run the module when Function is empty.
// Args are shared between goroutines and must not contain unforced thunks.
type Unit struct {
	Module   string
	Function string
	Args     []object.Value
}

// UnitResult is the outcome of one unit.
type UnitResult struct {
	Value  object.Value
	Err    error
	Worker string
	Stats  Stats
}

// RunUnits evaluates units on at most limit workers sharing asm. Every
// goroutine owns its own worker; nothing mutable crosses between them.
// Cancellation of ctx is observed between units only. Evaluation errors are
// reported per unit; the returned error is ctx's.
func RunUnits(ctx context.Context, asm *Assembly, opts Options, limit int, units []Unit) ([]UnitResult, error) {
	if limit <= 0 {
		limit = 1
	}
	results := make([]UnitResult, len(units))
	jobs := make(chan int)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer close(jobs)
		for i := range units {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for range min(limit, max(len(units), 1)) {
		g.Go(func() error {
			w, err := NewWorker(asm, opts)
			if err != nil {
				return err
			}
			for i := range jobs {
				if err := gctx.Err(); err != nil {
					return err
				}
				results[i] = w.runUnit(units[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}

func (w *Worker) runUnit(u Unit) UnitResult {
	before := w.stats
	res := UnitResult{Worker: w.ID}
	res.Value, res.Err = w.evalUnit(u)
	if res.Err != nil {
		w.Recover()
	}
	res.Stats = Stats{
		Instructions: w.stats.Instructions - before.Instructions,
		Calls:        w.stats.Calls - before.Calls,
		MaxDepth:     w.stats.MaxDepth,
	}
	return res
}

func (w *Worker) evalUnit(u Unit) (object.Value, error) {
	h, ok := w.asm.Lookup(u.Module)
	if !ok {
		return object.Value{}, fmt.Errorf("no module %s", u.Module)
	}
	v, err := w.Run(h)
	if err != nil || u.Function == "" {
		return v, err
	}
	fn, ok := w.Global(h, u.Function)
	if !ok {
		return object.Value{}, fmt.Errorf("module %s does not export %s", u.Module, u.Function)
	}
	return w.Call(fn, u.Args...)
}
