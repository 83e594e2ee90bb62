package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/petrijr/toolflow/pkg/api"
)

// sequence runs children in order against the shared context and stops at
// the first error.
func (x *execution) sequence(ctx context.Context, fctx *api.FlowContext, ids []string) error {
	for _, id := range ids {
		if err := x.runChild(ctx, fctx, id); err != nil {
			return err
		}
	}
	return nil
}

// fanOut runs the children of a parallel step. With concurrency enabled,
// every child runs against its own fork of the group's starting context and
// the forks are merged back in listed order. Merging stops after the first
// failed child, so the shared context ends up as a sequential run would
// have left it.
func (x *execution) fanOut(ctx context.Context, fctx *api.FlowContext, ids []string) error {
	if x.concurrency <= 1 || len(ids) < 2 {
		return x.sequence(ctx, fctx, ids)
	}

	branches := make([]*api.FlowContext, len(ids))
	for i := range ids {
		branches[i] = fctx.Fork()
	}
	errs := make([]error, len(ids))

	var g errgroup.Group
	g.SetLimit(x.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			errs[i] = x.runChild(ctx, branches[i], id)
			return nil
		})
	}
	_ = g.Wait()

	for i := range ids {
		fctx.Merge(branches[i])
		if errs[i] != nil {
			return errs[i]
		}
	}
	return nil
}
