package services

import (
	"context"
	"route-optimization-service/internal/domain"
	"sync"
)

type BatchResult struct {
	Index    int
	DepotID  int64
	RouteSet *domain.RouteSet
	Err      error
}

// OptimizeBatch runs independent depot requests concurrently, at most limit at a
// time. Results come back in request order; one failing depot does not affect
// the others.
func (o *Optimizer) OptimizeBatch(ctx context.Context, reqs []OptimizeRequest, limit int) []BatchResult {
	if limit < 1 {
		limit = 1
	}

	sem := make(chan struct{}, limit)
	resultsCh := make(chan BatchResult, len(reqs))
	var wg sync.WaitGroup

	for i, req := range reqs {
		wg.Add(1)
		go func(idx int, r OptimizeRequest) {
			defer wg.Done()
			select {
			case sem <- struct{}{}:
			case <-ctx.Done():
				resultsCh <- BatchResult{Index: idx, DepotID: r.DepotID, Err: ctx.Err()}
				return
			}
			defer func() { <-sem }()

			rs, err := o.Optimize(ctx, r)
			resultsCh <- BatchResult{Index: idx, DepotID: r.DepotID, RouteSet: rs, Err: err}
		}(i, req)
	}

	wg.Wait()
	close(resultsCh)

	out := make([]BatchResult, len(reqs))
	for res := range resultsCh {
		out[res.Index] = res
	}
	return out
}
