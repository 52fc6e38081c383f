package compiler

import (
	"context"

	"golang.org/x/sync/errgroup"
)

type Work struct {
	Result *string
	Name   string
	Target string
	Source string
}

// CompileAll builds every piece of work, at most parallelism at a time, and stores
// each binary path in its Result. The first failure cancels the remaining builds.
func (c *Compiler) CompileAll(ctx context.Context, parallelism int, work ...Work) error {
	g, ctx := errgroup.WithContext(ctx)
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for _, w := range work {
		w := w
		g.Go(func() error {
			path, err := c.Compile(ctx, w.Name, w.Target, w.Source)
			if err != nil {
				return err
			}
			if w.Result != nil {
				*w.Result = path
			}
			return nil
		})
	}
	return g.Wait()
}
