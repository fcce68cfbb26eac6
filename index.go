package fathom

import (
	"container/heap"
	"math"
	"sort"
	"sync"
)

// maxLeafEntries caps how many entries a BVH leaf holds before splitting.
const maxLeafEntries = 8

// bvhNode is a node in the bounding-volume tree. Leaves reference a
// contiguous run of the entry slice; interior nodes reference two children
// by index.
type bvhNode struct {
	bounds      Rect
	left, right int
	start, end  int
	leaf        bool
}

// SpatialIndex is a bulk-loadable spatial index over element bounds. Load
// replaces all content in O(n log n) by building a static bounding-volume
// tree; queries are read-only and safe to call concurrently with each
// other. Load and Clear take the write lock, so a multi-threaded caller
// never observes a query racing a rebuild.
type SpatialIndex struct {
	mu      sync.RWMutex
	entries []IndexEntry
	nodes   []bvhNode
	root    int
}

// NewSpatialIndex creates an empty index.
func NewSpatialIndex() *SpatialIndex {
	return &SpatialIndex{root: -1}
}

// Load replaces the index content with the given entries. The input slice
// is copied; the caller may reuse it.
func (s *SpatialIndex) Load(entries []IndexEntry) {
	cp := make([]IndexEntry, len(entries))
	copy(cp, entries)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = cp
	s.nodes = s.nodes[:0]
	if len(cp) == 0 {
		s.root = -1
		return
	}
	s.root = s.build(0, len(cp))
}

// Clear removes all content.
func (s *SpatialIndex) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	s.nodes = nil
	s.root = -1
}

// Len returns the number of indexed entries.
func (s *SpatialIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// build constructs the subtree over entries[start:end) and returns its node
// index. Entries are reordered in place: each leaf owns a contiguous run.
func (s *SpatialIndex) build(start, end int) int {
	bounds := s.entries[start].Bounds
	for i := start + 1; i < end; i++ {
		bounds = bounds.union(s.entries[i].Bounds)
	}

	if end-start <= maxLeafEntries {
		s.nodes = append(s.nodes, bvhNode{bounds: bounds, start: start, end: end, leaf: true})
		return len(s.nodes) - 1
	}

	// Median split along the longer axis of the combined bounds.
	run := s.entries[start:end]
	if bounds.Width >= bounds.Height {
		sort.Slice(run, func(i, j int) bool {
			ci, _ := run[i].Bounds.Center()
			cj, _ := run[j].Bounds.Center()
			return ci < cj
		})
	} else {
		sort.Slice(run, func(i, j int) bool {
			_, ci := run[i].Bounds.Center()
			_, cj := run[j].Bounds.Center()
			return ci < cj
		})
	}

	mid := start + (end-start)/2
	left := s.build(start, mid)
	right := s.build(mid, end)
	s.nodes = append(s.nodes, bvhNode{bounds: bounds, left: left, right: right})
	return len(s.nodes) - 1
}

// QueryBox returns every entry whose bounds overlap box. Result order is
// not significant to callers. An empty index returns nil.
func (s *SpatialIndex) QueryBox(box Rect) []IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []IndexEntry
	s.walk(s.root, func(n *bvhNode) bool { return n.bounds.Intersects(box) },
		func(e IndexEntry) bool { return e.Bounds.Intersects(box) },
		&out)
	return out
}

// QueryPoint returns every entry whose bounds contain the point (x, y).
func (s *SpatialIndex) QueryPoint(x, y float64) []IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []IndexEntry
	s.walk(s.root, func(n *bvhNode) bool { return n.bounds.Contains(x, y) },
		func(e IndexEntry) bool { return e.Bounds.Contains(x, y) },
		&out)
	return out
}

// QueryRadius returns every entry whose bounds intersect the circle
// centered at (x, y) with radius r.
func (s *SpatialIndex) QueryRadius(x, y, r float64) []IndexEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []IndexEntry
	rsq := r * r
	s.walk(s.root, func(n *bvhNode) bool { return n.bounds.distanceSq(x, y) <= rsq },
		func(e IndexEntry) bool { return e.Bounds.distanceSq(x, y) <= rsq },
		&out)
	return out
}

// walk recurses from node index i, descending nodes that pass nodeTest and
// collecting entries that pass entryTest.
func (s *SpatialIndex) walk(i int, nodeTest func(*bvhNode) bool, entryTest func(IndexEntry) bool, out *[]IndexEntry) {
	if i < 0 {
		return
	}
	n := &s.nodes[i]
	if !nodeTest(n) {
		return
	}
	if n.leaf {
		for _, e := range s.entries[n.start:n.end] {
			if entryTest(e) {
				*out = append(*out, e)
			}
		}
		return
	}
	s.walk(n.left, nodeTest, entryTest, out)
	s.walk(n.right, nodeTest, entryTest, out)
}

// knnCandidate is one entry in the bounded worst-first heap used by
// QueryKNN. The heap keeps the current k best; its top is the worst of
// them, compared by distance then by id descending so that equal-distance
// candidates with smaller ids win.
type knnCandidate struct {
	distSq float64
	id     string
	entry  IndexEntry
}

type knnHeap []knnCandidate

func (h knnHeap) Len() int { return len(h) }
func (h knnHeap) Less(i, j int) bool {
	if h[i].distSq != h[j].distSq {
		return h[i].distSq > h[j].distSq
	}
	return h[i].id > h[j].id
}
func (h knnHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *knnHeap) Push(x any)   { *h = append(*h, x.(knnCandidate)) }
func (h *knnHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// QueryKNN returns the k entries nearest to (x, y) by center distance,
// ordered nearest first. Ties are broken by entry id ascending. Fewer than
// k entries are returned when the index holds fewer.
func (s *SpatialIndex) QueryKNN(x, y float64, k int) []IndexEntry {
	if k <= 0 {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.root < 0 {
		return nil
	}

	best := make(knnHeap, 0, k)
	worst := func() float64 {
		if len(best) < k {
			return math.Inf(1)
		}
		return best[0].distSq
	}

	var visit func(i int)
	visit = func(i int) {
		n := &s.nodes[i]
		// Node min distance is a lower bound on any center distance inside.
		if n.bounds.distanceSq(x, y) > worst() {
			return
		}
		if n.leaf {
			for _, e := range s.entries[n.start:n.end] {
				cx, cy := e.Bounds.Center()
				dx, dy := cx-x, cy-y
				cand := knnCandidate{distSq: dx*dx + dy*dy, id: e.Element.ID, entry: e}
				if len(best) < k {
					heap.Push(&best, cand)
				} else if cand.distSq < best[0].distSq ||
					(cand.distSq == best[0].distSq && cand.id < best[0].id) {
					best[0] = cand
					heap.Fix(&best, 0)
				}
			}
			return
		}
		// Visit the nearer child first to tighten the bound early.
		if s.nodes[n.left].bounds.distanceSq(x, y) <= s.nodes[n.right].bounds.distanceSq(x, y) {
			visit(n.left)
			visit(n.right)
		} else {
			visit(n.right)
			visit(n.left)
		}
	}
	visit(s.root)

	out := make([]IndexEntry, len(best))
	sort.Slice(best, func(i, j int) bool {
		if best[i].distSq != best[j].distSq {
			return best[i].distSq < best[j].distSq
		}
		return best[i].id < best[j].id
	})
	for i, c := range best {
		out[i] = c.entry
	}
	return out
}
