package fathom

import (
	"fmt"
	"math"
	"sort"
)

// defaultCullDistance is used when neither the navigator configuration nor
// a layer provides one.
const defaultCullDistance = 100.0

// LayerVisibility is a layer tagged with whether it should render at the
// current depth.
type LayerVisibility struct {
	Layer        *Layer
	ShouldRender bool
}

// DepthNavigator manages the depth (Z) axis as a bounded one-dimensional
// navigation state machine, and owns the registry of depth-indexed layers
// the culler and LOD selector consult. The actual interpolation is
// delegated to a TransitionEngine scoped to the depth scalar, so depth
// navigation inherits "last call wins" cancellation.
type DepthNavigator struct {
	current  float64
	minDepth float64
	maxDepth float64
	cullDist float64

	// layers keyed by unique depth index; order kept sorted for
	// deterministic iteration.
	layers map[float64]*Layer
	order  []float64
	// elementLayer maps element id to its owning layer, rebuilt on
	// add/remove.
	elementLayer map[string]*Layer

	engine *TransitionEngine
	events *Emitter
}

// NewDepthNavigator creates a navigator at depth 0 with the given bounds.
// Pass -Inf/+Inf (or math.Inf) for unbounded. A non-positive
// cullDistance selects the default.
func NewDepthNavigator(minDepth, maxDepth, cullDistance float64, events *Emitter) *DepthNavigator {
	if cullDistance <= 0 {
		cullDistance = defaultCullDistance
	}
	if events == nil {
		events = NewEmitter()
	}
	return &DepthNavigator{
		minDepth:     minDepth,
		maxDepth:     maxDepth,
		cullDist:     cullDistance,
		layers:       make(map[float64]*Layer),
		elementLayer: make(map[string]*Layer),
		engine:       NewTransitionEngine(),
		events:       events,
	}
}

// CurrentDepth returns the navigator's current position on the depth axis.
func (n *DepthNavigator) CurrentDepth() float64 { return n.current }

// DefaultCullDistance returns the fallback cull distance.
func (n *DepthNavigator) DefaultCullDistance() float64 { return n.cullDist }

// Navigating reports whether a depth transition is in flight.
func (n *DepthNavigator) Navigating() bool { return n.engine.Animating() }

// clamp restricts depth to the navigator's bounds.
func (n *DepthNavigator) clamp(depth float64) float64 {
	return math.Max(n.minDepth, math.Min(depth, n.maxDepth))
}

// NavigateTo animates the current depth to target (clamped to bounds),
// emitting depthNavigationStart once the navigation is committed and
// depthNavigationEnd on completion. A rejected target emits nothing.
// Starting a new navigation supersedes an in-flight one; the superseded
// navigation's OnComplete and end event never fire.
func (n *DepthNavigator) NavigateTo(target float64, spec TransitionSpec) error {
	if math.IsNaN(target) || math.IsInf(target, 0) {
		return fmt.Errorf("%w: non-finite depth target", ErrInvalidCamera)
	}
	target = n.clamp(target)

	from := depthCamera(n.current)
	to := depthCamera(target)

	userComplete := spec.OnComplete
	inner := spec
	inner.OnComplete = func() {
		n.events.Emit(EventDepthNavEnd, DepthNavEndEvent{Depth: n.current})
		if userComplete != nil {
			userComplete()
		}
	}
	err := n.engine.Animate(from, to, inner, func(cam Camera) {
		n.current = cam.Depth
	})
	if err != nil {
		return err
	}
	n.events.Emit(EventDepthNavStart, DepthNavStartEvent{From: n.current, To: target})
	return nil
}

// NavigateBy animates the current depth by a relative delta.
func (n *DepthNavigator) NavigateBy(delta float64, spec TransitionSpec) error {
	return n.NavigateTo(n.current+delta, spec)
}

// DiveDeeper navigates distance units deeper along the axis.
func (n *DepthNavigator) DiveDeeper(distance float64, spec TransitionSpec) error {
	return n.NavigateBy(distance, spec)
}

// EmergeUp navigates distance units back toward the surface.
func (n *DepthNavigator) EmergeUp(distance float64, spec TransitionSpec) error {
	return n.NavigateBy(-distance, spec)
}

// ResetToSurface navigates back to depth 0.
func (n *DepthNavigator) ResetToSurface(spec TransitionSpec) error {
	return n.NavigateTo(0, spec)
}

// Cancel stops an in-flight navigation without completing it.
func (n *DepthNavigator) Cancel() { n.engine.Cancel() }

// Update advances an in-flight navigation by dt seconds.
func (n *DepthNavigator) Update(dt float64) { n.engine.Update(dt) }

// AddLayer registers a layer. Depth indexes are unique; a duplicate is
// rejected with ErrDuplicateLayer.
func (n *DepthNavigator) AddLayer(layer *Layer) error {
	if _, ok := n.layers[layer.DepthIndex]; ok {
		return fmt.Errorf("%w: %v", ErrDuplicateLayer, layer.DepthIndex)
	}
	n.layers[layer.DepthIndex] = layer
	n.order = append(n.order, layer.DepthIndex)
	sort.Float64s(n.order)
	for _, el := range layer.Elements {
		n.elementLayer[el.ID] = layer
	}
	return nil
}

// RemoveLayer unregisters the layer at the given depth index, if present.
func (n *DepthNavigator) RemoveLayer(depthIndex float64) {
	layer, ok := n.layers[depthIndex]
	if !ok {
		return
	}
	delete(n.layers, depthIndex)
	for i, d := range n.order {
		if d == depthIndex {
			n.order = append(n.order[:i], n.order[i+1:]...)
			break
		}
	}
	for _, el := range layer.Elements {
		delete(n.elementLayer, el.ID)
	}
}

// GetLayer returns the layer at the given depth index.
func (n *DepthNavigator) GetLayer(depthIndex float64) (*Layer, bool) {
	layer, ok := n.layers[depthIndex]
	return layer, ok
}

// VisibleLayers returns every layer within its cull distance of the
// current depth, ordered by depth index, each tagged with whether it
// should render (its Visible flag).
func (n *DepthNavigator) VisibleLayers() []LayerVisibility {
	var out []LayerVisibility
	for _, d := range n.order {
		layer := n.layers[d]
		dist := layer.CullDistance
		if dist <= 0 {
			dist = n.cullDist
		}
		if math.Abs(layer.DepthIndex-n.current) <= dist {
			out = append(out, LayerVisibility{Layer: layer, ShouldRender: layer.Visible})
		}
	}
	return out
}

// FilterElementsByDepth drops elements whose own depth (or owning
// layer's) lies farther than the cull distance from the current depth.
// Elements without depth information always pass.
func (n *DepthNavigator) FilterElementsByDepth(elements []*Element) []*Element {
	out := make([]*Element, 0, len(elements))
	for _, el := range elements {
		if n.depthWithinRange(el) {
			out = append(out, el)
		}
	}
	return out
}

func (n *DepthNavigator) depthWithinRange(el *Element) bool {
	dist := n.cullDistanceFor(el)
	near, far := n.current-dist, n.current+dist
	switch {
	case el.DepthExtent != nil:
		return el.DepthExtent.Overlaps(near, far)
	case el.DepthPosition != nil:
		return *el.DepthPosition >= near && *el.DepthPosition <= far
	default:
		if layer, ok := n.elementLayer[el.ID]; ok {
			return layer.DepthIndex >= near && layer.DepthIndex <= far
		}
		return true
	}
}

// layerOf returns the layer owning the element id, if any.
func (n *DepthNavigator) layerOf(id string) (*Layer, bool) {
	layer, ok := n.elementLayer[id]
	return layer, ok
}

// cullDistanceFor returns the element's effective cull distance: its
// owning layer's override when set, the navigator default otherwise.
func (n *DepthNavigator) cullDistanceFor(el *Element) float64 {
	if layer, ok := n.elementLayer[el.ID]; ok && layer.CullDistance > 0 {
		return layer.CullDistance
	}
	return n.cullDist
}

// depthCamera builds the scalar-scoped camera the transition engine
// interpolates for depth navigation.
func depthCamera(depth float64) Camera {
	return Camera{Depth: depth, HasDepth: true, Zoom: 1}
}
