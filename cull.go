package fathom

// CullStats summarizes one culling pass.
type CullStats struct {
	// Total is the number of entries the index held when the pass ran.
	Total int
	// FrustumCulled counts entries rejected by the 2D visible-bounds test
	// (including entries the index pruned without examining).
	FrustumCulled int
	// DepthCulled counts frustum-visible entries rejected by the depth
	// slab test.
	DepthCulled int
	Visible     int
}

// CullResult is the output of a culling pass. Visible order is index-query
// order and not significant to callers. Culled holds only the entries that
// were individually examined and rejected; entries the index pruned
// wholesale are counted in Stats but not listed.
type CullResult struct {
	Visible []*Element
	Culled  []*Element
	Stats   CullStats
}

// ViewportCuller narrows spatial-index results to what a camera can see:
// a 2D visible-bounds test, then (when depth navigation is active) a
// depth slab test against the navigator's current depth. Deterministic:
// identical camera and index content produce an identical visible set.
type ViewportCuller struct {
	index *SpatialIndex
	// nav supplies the current depth and layer fallbacks. Nil disables
	// depth culling entirely.
	nav *DepthNavigator
	// workers > 1 enables the chunked parallel pass in worker.go.
	workers int
}

// NewViewportCuller creates a culler over the given index. nav may be nil
// when depth navigation is disabled.
func NewViewportCuller(index *SpatialIndex, nav *DepthNavigator) *ViewportCuller {
	return &ViewportCuller{index: index, nav: nav}
}

// SetWorkers enables (n > 1) or disables (n <= 1) parallel culling.
func (c *ViewportCuller) SetWorkers(n int) { c.workers = n }

// Cull runs a full pass for the camera: query the index for the visible
// world rectangle, then depth-test each candidate.
func (c *ViewportCuller) Cull(cam Camera) (CullResult, error) {
	if err := cam.Validate(); err != nil {
		return CullResult{}, err
	}
	total := c.index.Len()
	candidates := c.index.QueryBox(cam.VisibleBounds())

	var res CullResult
	if c.workers > 1 {
		res = c.cullParallel(cam, candidates)
	} else {
		res = c.cullCandidates(cam, candidates)
	}
	res.Stats.Total = total
	res.Stats.FrustumCulled = total - res.Stats.Visible - res.Stats.DepthCulled
	return res, nil
}

// CullCandidates runs the per-entry tests over a pre-fetched candidate set
// without touching the index. Stats.Total reflects the candidate count.
func (c *ViewportCuller) CullCandidates(cam Camera, candidates []IndexEntry) (CullResult, error) {
	if err := cam.Validate(); err != nil {
		return CullResult{}, err
	}
	res := c.cullCandidates(cam, candidates)
	res.Stats.Total = len(candidates)
	res.Stats.FrustumCulled = len(candidates) - res.Stats.Visible - res.Stats.DepthCulled
	return res, nil
}

// cullCandidates partitions candidates into visible and culled.
func (c *ViewportCuller) cullCandidates(cam Camera, candidates []IndexEntry) CullResult {
	frustum := cam.VisibleBounds()
	var res CullResult
	for _, e := range candidates {
		v, depthReject := c.testEntry(e, cam, frustum)
		if v {
			res.Visible = append(res.Visible, e.Element)
			res.Stats.Visible++
			continue
		}
		res.Culled = append(res.Culled, e.Element)
		if depthReject {
			res.Stats.DepthCulled++
		}
	}
	return res
}

// testEntry applies the frustum and depth tests to one entry. The second
// return reports a depth rejection (as opposed to a frustum one).
func (c *ViewportCuller) testEntry(e IndexEntry, cam Camera, frustum Rect) (visible, depthReject bool) {
	if !e.Bounds.Intersects(frustum) {
		return false, false
	}
	if !c.depthVisible(e.Element, cam) {
		return false, true
	}
	return true, false
}

// depthVisible applies the depth slab test: the element's own depth extent
// or position, falling back to its owning layer's depth index, against
// [depth-cullDistance, depth+cullDistance]. Elements with no depth
// information are always depth-visible.
func (c *ViewportCuller) depthVisible(el *Element, cam Camera) bool {
	if c.nav == nil || !cam.HasDepth {
		return true
	}
	dist := c.nav.cullDistanceFor(el)
	near, far := cam.Depth-dist, cam.Depth+dist

	switch {
	case el.DepthExtent != nil:
		return el.DepthExtent.Overlaps(near, far)
	case el.DepthPosition != nil:
		return *el.DepthPosition >= near && *el.DepthPosition <= far
	default:
		if layer, ok := c.nav.layerOf(el.ID); ok {
			return layer.DepthIndex >= near && layer.DepthIndex <= far
		}
		return true
	}
}
