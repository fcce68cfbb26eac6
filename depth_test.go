package fathom

import (
	"errors"
	"math"
	"testing"
	"time"
)

func newTestNav() *DepthNavigator {
	return NewDepthNavigator(math.Inf(-1), math.Inf(1), 0, nil)
}

func runNav(n *DepthNavigator, ticks int, dt float64) {
	for i := 0; i < ticks && n.Navigating(); i++ {
		n.Update(dt)
	}
}

func TestDepthNavigateTo(t *testing.T) {
	n := newTestNav()
	completed := false
	err := n.NavigateTo(50, TransitionSpec{
		Duration:   time.Second,
		Easing:     EaseLinear,
		OnComplete: func() { completed = true },
	})
	if err != nil {
		t.Fatal(err)
	}

	n.Update(0.5)
	if !approxEqual(n.CurrentDepth(), 25, 0.01) {
		t.Errorf("depth at t=0.5 = %f, want 25", n.CurrentDepth())
	}
	runNav(n, 10, 0.25)
	if !completed {
		t.Error("OnComplete not invoked")
	}
	if !approxEqual(n.CurrentDepth(), 50, 0.01) {
		t.Errorf("final depth = %f, want 50", n.CurrentDepth())
	}
}

// navigateTo with a target far past the bounds converges to the bound.
func TestDepthClampsToBounds(t *testing.T) {
	n := NewDepthNavigator(-100, 100, 0, nil)
	if err := n.NavigateTo(10000, TransitionSpec{Duration: 100 * time.Millisecond, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}
	runNav(n, 100, 0.05)
	if !approxEqual(n.CurrentDepth(), 100, 0.01) {
		t.Errorf("depth = %f, want 100 (clamped)", n.CurrentDepth())
	}

	if err := n.NavigateTo(-10000, TransitionSpec{Duration: 100 * time.Millisecond, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}
	runNav(n, 100, 0.05)
	if !approxEqual(n.CurrentDepth(), -100, 0.01) {
		t.Errorf("depth = %f, want -100 (clamped)", n.CurrentDepth())
	}
}

func TestDepthRelativeNavigation(t *testing.T) {
	n := newTestNav()
	instant := TransitionSpec{Duration: 0}

	if err := n.DiveDeeper(30, instant); err != nil {
		t.Fatal(err)
	}
	n.Update(0.016)
	if !approxEqual(n.CurrentDepth(), 30, epsilon) {
		t.Errorf("after dive: depth = %f, want 30", n.CurrentDepth())
	}

	if err := n.EmergeUp(10, instant); err != nil {
		t.Fatal(err)
	}
	n.Update(0.016)
	if !approxEqual(n.CurrentDepth(), 20, epsilon) {
		t.Errorf("after emerge: depth = %f, want 20", n.CurrentDepth())
	}

	if err := n.ResetToSurface(instant); err != nil {
		t.Fatal(err)
	}
	n.Update(0.016)
	if !approxEqual(n.CurrentDepth(), 0, epsilon) {
		t.Errorf("after reset: depth = %f, want 0", n.CurrentDepth())
	}
}

func TestDepthNavigationEvents(t *testing.T) {
	events := NewEmitter()
	n := NewDepthNavigator(math.Inf(-1), math.Inf(1), 0, events)

	var order []string
	events.On(EventDepthNavStart, func(ev Event) {
		start := ev.Data.(DepthNavStartEvent)
		order = append(order, "start")
		if start.From != 0 || start.To != 40 {
			t.Errorf("start event = %+v, want from 0 to 40", start)
		}
	})
	events.On(EventDepthNavEnd, func(ev Event) {
		end := ev.Data.(DepthNavEndEvent)
		order = append(order, "end")
		if !approxEqual(end.Depth, 40, 0.01) {
			t.Errorf("end event depth = %f, want 40", end.Depth)
		}
	})

	if err := n.NavigateTo(40, TransitionSpec{Duration: 100 * time.Millisecond, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}
	runNav(n, 100, 0.02)

	if len(order) != 2 || order[0] != "start" || order[1] != "end" {
		t.Errorf("event order = %v, want [start end]", order)
	}
}

// A superseding navigation drops the first one's completion and end event.
func TestDepthNavigationSupersede(t *testing.T) {
	events := NewEmitter()
	n := NewDepthNavigator(math.Inf(-1), math.Inf(1), 0, events)

	ends := 0
	events.On(EventDepthNavEnd, func(Event) { ends++ })

	if err := n.NavigateTo(100, TransitionSpec{Duration: time.Second, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}
	n.Update(0.1)
	if err := n.NavigateTo(-5, TransitionSpec{Duration: 100 * time.Millisecond, Easing: EaseLinear}); err != nil {
		t.Fatal(err)
	}
	runNav(n, 100, 0.02)

	if ends != 1 {
		t.Errorf("end events = %d, want 1 (superseded navigation emits none)", ends)
	}
	if !approxEqual(n.CurrentDepth(), -5, 0.01) {
		t.Errorf("final depth = %f, want -5", n.CurrentDepth())
	}
}

// A rejected target leaves the navigator idle and emits no start event,
// so every start has a matching end.
func TestDepthNonFiniteTargetEmitsNothing(t *testing.T) {
	events := NewEmitter()
	n := NewDepthNavigator(math.Inf(-1), math.Inf(1), 0, events)
	starts := 0
	events.On(EventDepthNavStart, func(Event) { starts++ })

	for _, target := range []float64{math.Inf(1), math.Inf(-1), math.NaN()} {
		if err := n.NavigateTo(target, TransitionSpec{Duration: time.Second}); !errors.Is(err, ErrInvalidCamera) {
			t.Errorf("NavigateTo(%f) = %v, want ErrInvalidCamera", target, err)
		}
	}
	if starts != 0 {
		t.Errorf("start events = %d, want 0", starts)
	}
	if n.Navigating() {
		t.Error("navigator animating after rejected targets")
	}
}

func TestDepthLayerRegistry(t *testing.T) {
	n := newTestNav()
	if err := n.AddLayer(&Layer{ID: "ground", DepthIndex: 0, Visible: true}); err != nil {
		t.Fatal(err)
	}
	if err := n.AddLayer(&Layer{ID: "basement", DepthIndex: 50, Visible: true}); err != nil {
		t.Fatal(err)
	}

	if err := n.AddLayer(&Layer{ID: "dup", DepthIndex: 50}); !errors.Is(err, ErrDuplicateLayer) {
		t.Errorf("duplicate AddLayer = %v, want ErrDuplicateLayer", err)
	}

	layer, ok := n.GetLayer(50)
	if !ok || layer.ID != "basement" {
		t.Errorf("GetLayer(50) = %v, %v", layer, ok)
	}

	n.RemoveLayer(50)
	if _, ok := n.GetLayer(50); ok {
		t.Error("layer still present after RemoveLayer")
	}
	n.RemoveLayer(999) // no-op
}

func TestDepthVisibleLayers(t *testing.T) {
	n := NewDepthNavigator(math.Inf(-1), math.Inf(1), 100, nil)
	layers := []*Layer{
		{ID: "surface", DepthIndex: 0, Visible: true},
		{ID: "hidden", DepthIndex: 50, Visible: false},
		{ID: "near-limit", DepthIndex: 100, Visible: true},
		{ID: "too-far", DepthIndex: 300, Visible: true},
		{ID: "short-range", DepthIndex: 40, Visible: true, CullDistance: 10},
	}
	for _, l := range layers {
		if err := n.AddLayer(l); err != nil {
			t.Fatal(err)
		}
	}

	vis := n.VisibleLayers()
	byID := map[string]bool{}
	for _, lv := range vis {
		byID[lv.Layer.ID] = lv.ShouldRender
	}

	if len(vis) != 3 {
		t.Fatalf("visible layers = %d, want 3", len(vis))
	}
	if render, ok := byID["surface"]; !ok || !render {
		t.Error("surface layer should be present and renderable")
	}
	if render, ok := byID["hidden"]; !ok || render {
		t.Error("hidden layer should be present but not renderable")
	}
	if _, ok := byID["near-limit"]; !ok {
		t.Error("layer exactly at the cull distance should be visible")
	}
	if _, ok := byID["too-far"]; ok {
		t.Error("layer past the cull distance should be absent")
	}
	if _, ok := byID["short-range"]; ok {
		t.Error("layer with its own short cull distance should be absent")
	}
}

func TestDepthFilterElements(t *testing.T) {
	n := NewDepthNavigator(math.Inf(-1), math.Inf(1), 50, nil)
	layerEl := &Element{ID: "layered", Bounds: Rect{Width: 1, Height: 1}}
	if err := n.AddLayer(&Layer{ID: "deep", DepthIndex: 500, Elements: []*Element{layerEl}}); err != nil {
		t.Fatal(err)
	}

	elements := []*Element{
		{ID: "near", DepthPosition: floatPtr(20)},
		{ID: "far", DepthPosition: floatPtr(300)},
		{ID: "ranged-in", DepthExtent: &DepthRange{Near: -500, Far: -40}},
		{ID: "ranged-out", DepthExtent: &DepthRange{Near: 200, Far: 300}},
		{ID: "plain"},
		layerEl,
	}
	got := n.FilterElementsByDepth(elements)
	ids := make(map[string]bool)
	for _, el := range got {
		ids[el.ID] = true
	}

	want := []string{"near", "ranged-in", "plain"}
	if len(got) != len(want) {
		t.Fatalf("filtered to %d elements, want %d", len(got), len(want))
	}
	for _, id := range want {
		if !ids[id] {
			t.Errorf("element %s missing from filtered set", id)
		}
	}
}
