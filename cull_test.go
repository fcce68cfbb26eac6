package fathom

import (
	"fmt"
	"math"
	"sort"
	"testing"
)

func visibleIDs(res CullResult) []string {
	ids := make([]string, len(res.Visible))
	for i, el := range res.Visible {
		ids[i] = el.ID
	}
	sort.Strings(ids)
	return ids
}

func floatPtr(v float64) *float64 { return &v }

func TestCullFrustum(t *testing.T) {
	idx := NewSpatialIndex()
	idx.Load([]IndexEntry{
		makeEntry("inside", -10, -10, 20, 20),
		makeEntry("outside", 5000, 5000, 20, 20),
		makeEntry("edge", 395, 0, 20, 20), // straddles the right frustum edge
	})
	culler := NewViewportCuller(idx, nil)

	cam := Camera{Zoom: 1, ViewportWidth: 800, ViewportHeight: 600}
	res, err := culler.Cull(cam)
	if err != nil {
		t.Fatal(err)
	}

	got := visibleIDs(res)
	want := []string{"edge", "inside"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("visible = %v, want %v", got, want)
	}
	if res.Stats.Total != 3 || res.Stats.Visible != 2 || res.Stats.FrustumCulled != 1 {
		t.Errorf("stats = %+v, want total 3, visible 2, frustumCulled 1", res.Stats)
	}
}

func TestCullInvalidCamera(t *testing.T) {
	culler := NewViewportCuller(NewSpatialIndex(), nil)
	_, err := culler.Cull(Camera{Zoom: 0})
	if err != ErrInvalidCamera {
		t.Errorf("Cull with zero zoom = %v, want ErrInvalidCamera", err)
	}
}

func TestCullDeterministic(t *testing.T) {
	idx := NewSpatialIndex()
	var entries []IndexEntry
	for i := 0; i < 100; i++ {
		entries = append(entries, makeEntry(fmt.Sprintf("e%02d", i), float64(i*15), float64(i%7*30), 10, 10))
	}
	idx.Load(entries)
	culler := NewViewportCuller(idx, nil)
	cam := Camera{X: 300, Y: 100, Zoom: 1.3, ViewportWidth: 640, ViewportHeight: 480}

	first, err := culler.Cull(cam)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 10; i++ {
		again, err := culler.Cull(cam)
		if err != nil {
			t.Fatal(err)
		}
		if fmt.Sprint(visibleIDs(again)) != fmt.Sprint(visibleIDs(first)) {
			t.Fatalf("call %d: visible set differs from first call", i)
		}
	}
}

func TestCullDepthSlab(t *testing.T) {
	nav := NewDepthNavigator(math.Inf(-1), math.Inf(1), 50, nil)

	inRange := &Element{ID: "inRange", Bounds: Rect{Width: 10, Height: 10}, DepthPosition: floatPtr(30)}
	outOfRange := &Element{ID: "outOfRange", Bounds: Rect{X: 20, Width: 10, Height: 10}, DepthPosition: floatPtr(200)}
	ranged := &Element{ID: "ranged", Bounds: Rect{X: 40, Width: 10, Height: 10}, DepthExtent: &DepthRange{Near: 45, Far: 300}}
	noDepth := &Element{ID: "noDepth", Bounds: Rect{X: 60, Width: 10, Height: 10}}

	idx := NewSpatialIndex()
	idx.Load([]IndexEntry{
		{Bounds: inRange.Bounds, Element: inRange},
		{Bounds: outOfRange.Bounds, Element: outOfRange},
		{Bounds: ranged.Bounds, Element: ranged},
		{Bounds: noDepth.Bounds, Element: noDepth},
	})
	culler := NewViewportCuller(idx, nav)

	cam := Camera{Zoom: 1, HasDepth: true, Depth: 0, ViewportWidth: 800, ViewportHeight: 600}
	res, err := culler.Cull(cam)
	if err != nil {
		t.Fatal(err)
	}

	got := visibleIDs(res)
	// inRange: |30-0| <= 50. ranged: [45,300] overlaps [-50,50].
	// outOfRange: |200| > 50. noDepth: always depth-visible.
	want := []string{"inRange", "noDepth", "ranged"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("visible = %v, want %v", got, want)
	}
	if res.Stats.DepthCulled != 1 {
		t.Errorf("depthCulled = %d, want 1", res.Stats.DepthCulled)
	}
}

func TestCullLayerDepthFallback(t *testing.T) {
	nav := NewDepthNavigator(math.Inf(-1), math.Inf(1), 50, nil)
	farEl := &Element{ID: "farLayer", Bounds: Rect{Width: 10, Height: 10}}
	nearEl := &Element{ID: "nearLayer", Bounds: Rect{X: 20, Width: 10, Height: 10}}
	if err := nav.AddLayer(&Layer{ID: "far", DepthIndex: 500, Visible: true, Elements: []*Element{farEl}}); err != nil {
		t.Fatal(err)
	}
	if err := nav.AddLayer(&Layer{ID: "near", DepthIndex: 10, Visible: true, Elements: []*Element{nearEl}}); err != nil {
		t.Fatal(err)
	}

	idx := NewSpatialIndex()
	idx.Load([]IndexEntry{
		{Bounds: farEl.Bounds, Element: farEl},
		{Bounds: nearEl.Bounds, Element: nearEl},
	})
	culler := NewViewportCuller(idx, nav)

	cam := Camera{Zoom: 1, HasDepth: true, ViewportWidth: 800, ViewportHeight: 600}
	res, err := culler.Cull(cam)
	if err != nil {
		t.Fatal(err)
	}
	got := visibleIDs(res)
	if fmt.Sprint(got) != fmt.Sprint([]string{"nearLayer"}) {
		t.Errorf("visible = %v, want [nearLayer]", got)
	}
}

func TestCullNoDepthWhenCameraFlat(t *testing.T) {
	nav := NewDepthNavigator(math.Inf(-1), math.Inf(1), 50, nil)
	deep := &Element{ID: "deep", Bounds: Rect{Width: 10, Height: 10}, DepthPosition: floatPtr(1000)}

	idx := NewSpatialIndex()
	idx.Load([]IndexEntry{{Bounds: deep.Bounds, Element: deep}})
	culler := NewViewportCuller(idx, nav)

	// Camera without depth navigation sees everything in the frustum.
	cam := Camera{Zoom: 1, ViewportWidth: 800, ViewportHeight: 600}
	res, err := culler.Cull(cam)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Visible) != 1 {
		t.Errorf("visible = %d elements, want 1", len(res.Visible))
	}
}

func TestCullCandidatesStats(t *testing.T) {
	culler := NewViewportCuller(NewSpatialIndex(), nil)
	cam := Camera{Zoom: 1, ViewportWidth: 100, ViewportHeight: 100}
	candidates := []IndexEntry{
		makeEntry("in", 0, 0, 10, 10),
		makeEntry("out", 1000, 1000, 10, 10),
	}
	res, err := culler.CullCandidates(cam, candidates)
	if err != nil {
		t.Fatal(err)
	}
	if res.Stats.Total != 2 || res.Stats.Visible != 1 || res.Stats.FrustumCulled != 1 {
		t.Errorf("stats = %+v, want total 2, visible 1, frustumCulled 1", res.Stats)
	}
	if len(res.Culled) != 1 || res.Culled[0].ID != "out" {
		t.Errorf("culled list = %v, want [out]", res.Culled)
	}
}
