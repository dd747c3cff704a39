package pipeline

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunBatch runs p once per alert with at most concurrency runs in flight.
// Results are indexed like alerts. A failed run does not stop the batch; the
// returned error is only set when ctx is cancelled before every run started.
func (r *Runner) RunBatch(ctx context.Context, p *Pipeline, alerts []string, concurrency int) ([]*Run, error) {
	if concurrency < 1 {
		concurrency = 1
	}
	runs := make([]*Run, len(alerts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, alert := range alerts {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			runs[i] = r.Run(gctx, p, alert)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return runs, err
	}
	return runs, nil
}
