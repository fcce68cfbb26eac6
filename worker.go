package fathom

import "golang.org/x/sync/errgroup"

// minParallelCandidates is the candidate count below which the parallel
// pass falls back to the synchronous one; goroutine overhead dominates
// under it.
const minParallelCandidates = 256

// cullParallel partitions the candidate set across workers. Each worker
// receives a contiguous chunk and produces an independent partial result;
// partials are merged in chunk order, so the output matches the
// synchronous pass exactly.
//
// This is an optional optimization: correctness never depends on it.
func (c *ViewportCuller) cullParallel(cam Camera, candidates []IndexEntry) CullResult {
	workers := c.workers
	if workers <= 1 || len(candidates) < minParallelCandidates {
		return c.cullCandidates(cam, candidates)
	}
	if workers > len(candidates) {
		workers = len(candidates)
	}

	partials := make([]CullResult, workers)
	chunk := (len(candidates) + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * chunk
		end := start + chunk
		if end > len(candidates) {
			end = len(candidates)
		}
		if start >= end {
			break
		}
		w := w
		part := candidates[start:end]
		g.Go(func() error {
			partials[w] = c.cullCandidates(cam, part)
			return nil
		})
	}
	// Workers never return errors; Wait is just the join point.
	_ = g.Wait()

	var res CullResult
	for _, p := range partials {
		res.Visible = append(res.Visible, p.Visible...)
		res.Culled = append(res.Culled, p.Culled...)
		res.Stats.Visible += p.Stats.Visible
		res.Stats.DepthCulled += p.Stats.DepthCulled
	}
	return res
}
