package fathom

import "sort"

// Element is a positioned, bounded visual element. Elements form a tree with
// parent-owned children; a child's bounds are independent of its parent's
// (no inherited transform). The tree is exclusively owned by the engine
// between LoadWorld and the next LoadWorld/Destroy; query results borrow
// references into it.
type Element struct {
	// ID is unique and stable across the world's lifetime. LoadWorld
	// assigns one to elements that arrive without it.
	ID   string
	Kind string
	// Bounds is the element's world-space rectangle.
	Bounds Rect
	// DepthPosition is the element's point position on the depth axis,
	// nil when the element carries no depth information of its own.
	DepthPosition *float64
	// DepthExtent is the element's extent on the depth axis, nil when
	// unbounded. Takes precedence over DepthPosition for depth culling.
	DepthExtent *DepthRange
	// Children are owned by this element, in render order.
	Children []*Element

	// LOD and RenderPriority are assigned by the LOD selector on the
	// derived view it emits; they are not meaningful on loaded elements.
	LOD            int
	RenderPriority int

	// Interactive marks the element as a hit-test target. Stripped on
	// emitted copies when the selected LOD level disables interactions.
	Interactive bool
	// Style is an opaque reference resolved by the renderer.
	Style string
	// Payload is opaque caller data carried through untouched.
	Payload any
}

// Layer is a named slice of the depth axis used for visibility grouping.
// Lifecycle is explicit add/remove on the DepthNavigator, independent of
// element loading.
type Layer struct {
	ID string
	// DepthIndex is the layer's position on the depth axis. Unique per
	// navigator.
	DepthIndex float64
	Elements   []*Element
	Visible    bool
	// CullDistance overrides the navigator's default cull distance when
	// positive.
	CullDistance float64
}

// World is an externally produced snapshot loaded wholesale via
// Engine.LoadWorld.
type World struct {
	Bounds   Rect
	Elements []*Element
	Layers   []*Layer
}

// IndexEntry is the flattened unit the spatial index stores: an element's
// bounds paired with a reference to it. Built once per load, immutable
// until the next load.
type IndexEntry struct {
	Bounds  Rect
	Element *Element
}

// RenderItem is one element of a flat render batch.
type RenderItem struct {
	ID       string
	Kind     string
	Bounds   Rect
	LOD      int
	Priority int
	Style    string
}

// RenderBatch groups render items of one kind. Batches are emitted ordered
// by kind; items within a batch are ordered by priority, then id.
type RenderBatch struct {
	Kind  string
	Items []RenderItem
}

// buildBatches flattens elements into per-kind batches. Children are not
// descended here; the LOD selector has already expanded the visible tree
// into the slice.
func buildBatches(elements []*Element) []RenderBatch {
	byKind := make(map[string][]RenderItem)
	for _, el := range elements {
		byKind[el.Kind] = append(byKind[el.Kind], RenderItem{
			ID:       el.ID,
			Kind:     el.Kind,
			Bounds:   el.Bounds,
			LOD:      el.LOD,
			Priority: el.RenderPriority,
			Style:    el.Style,
		})
	}
	kinds := make([]string, 0, len(byKind))
	for k := range byKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	batches := make([]RenderBatch, 0, len(kinds))
	for _, k := range kinds {
		items := byKind[k]
		sort.Slice(items, func(i, j int) bool {
			if items[i].Priority != items[j].Priority {
				return items[i].Priority < items[j].Priority
			}
			return items[i].ID < items[j].ID
		})
		batches = append(batches, RenderBatch{Kind: k, Items: items})
	}
	return batches
}

// flattenElements appends entries for el and all its descendants to dst.
func flattenElements(dst []IndexEntry, el *Element) []IndexEntry {
	dst = append(dst, IndexEntry{Bounds: el.Bounds, Element: el})
	for _, child := range el.Children {
		dst = flattenElements(dst, child)
	}
	return dst
}

// copyShallow returns a copy of el suitable for the LOD selector's derived
// view. Children are shared until the selector replaces them.
func (el *Element) copyShallow() *Element {
	cp := *el
	return &cp
}
