package fathom

import (
	"math"
	"sort"
)

// GeometryDetail is the fidelity class a LOD level renders geometry at.
type GeometryDetail uint8

const (
	GeometrySimplified GeometryDetail = iota
	GeometryMedium
	GeometryFull
)

// LODLevel is a fidelity policy, not per-element state: which features stay
// on when an element is rendered at this level. Selected from the
// threshold table by scalar lookup.
type LODLevel struct {
	Geometry GeometryDetail
	Labels   bool
	Metadata bool
	// Interactions false strips interactive metadata from emitted copies.
	Interactions bool
	// Children false omits the element's children from the derived view.
	Children bool
}

// LODThreshold binds a scalar threshold to a level, for configuration.
type LODThreshold struct {
	Threshold float64  `yaml:"threshold"`
	Level     LODLevel `yaml:"level"`
}

// Numeric LOD bands assigned to emitted elements, quantized from
// screen-space size.
const (
	lodBandSmall  = 5.0
	lodBandMedium = 20.0
	lodBandLarge  = 100.0
)

// lodBand maps a screen-space size to the 0 (minimal) … 3 (full) band.
func lodBand(screenSize float64) int {
	switch {
	case screenSize < lodBandSmall:
		return 0
	case screenSize < lodBandMedium:
		return 1
	case screenSize < lodBandLarge:
		return 2
	default:
		return 3
	}
}

// LODSelector assigns level-of-detail descriptors to a visible element set
// and prunes what the camera cannot meaningfully show: sub-pixel elements
// are dropped outright, and children are descended only when the selected
// level keeps them. Output is a derived view of copies; the source tree is
// never mutated.
//
// The threshold table maps a scalar (screen-space size, or depth distance
// when the camera has depth) to a LODLevel. Lookup picks the greatest
// threshold less than or equal to the scalar, or the smallest threshold's
// level when the scalar is below all of them. The table is mutable at
// runtime; changes take effect on the next Select call.
type LODSelector struct {
	// thresholds sorted descending by threshold.
	thresholds []LODThreshold
}

// NewLODSelector creates a selector with a default three-tier table keyed
// to screen-space size: full detail from screen size 100, medium from 20,
// simplified below. The table shape assumes the scalar grows with visual
// significance; for cameras that navigate depth, where the scalar is
// distance and grows the other way, use NewDepthLODSelector.
func NewLODSelector() *LODSelector {
	s := &LODSelector{}
	s.SetLevel(lodBandLarge, LODLevel{Geometry: GeometryFull, Labels: true, Metadata: true, Interactions: true, Children: true})
	s.SetLevel(lodBandMedium, LODLevel{Geometry: GeometryMedium, Labels: true, Interactions: true, Children: true})
	s.SetLevel(0, LODLevel{Geometry: GeometrySimplified})
	return s
}

// NewDepthLODSelector creates a selector keyed to depth distance: full
// detail at the camera's depth, medium from half the cull distance,
// simplified from the cull distance out. The tiers invert NewLODSelector's
// because the distance scalar grows as significance shrinks. Elements
// without a depth position still look up by screen size, so mixed worlds
// should configure an explicit table instead. A non-positive cullDistance
// selects the default.
func NewDepthLODSelector(cullDistance float64) *LODSelector {
	if cullDistance <= 0 {
		cullDistance = defaultCullDistance
	}
	s := &LODSelector{}
	s.SetLevel(0, LODLevel{Geometry: GeometryFull, Labels: true, Metadata: true, Interactions: true, Children: true})
	s.SetLevel(cullDistance/2, LODLevel{Geometry: GeometryMedium, Labels: true, Interactions: true, Children: true})
	s.SetLevel(cullDistance, LODLevel{Geometry: GeometrySimplified})
	return s
}

// NewLODSelectorWithTable creates a selector from an explicit table.
func NewLODSelectorWithTable(table []LODThreshold) *LODSelector {
	s := &LODSelector{}
	for _, t := range table {
		s.SetLevel(t.Threshold, t.Level)
	}
	return s
}

// SetLevel inserts or replaces the level at the given threshold.
func (s *LODSelector) SetLevel(threshold float64, level LODLevel) {
	for i := range s.thresholds {
		if s.thresholds[i].Threshold == threshold {
			s.thresholds[i].Level = level
			return
		}
	}
	s.thresholds = append(s.thresholds, LODThreshold{Threshold: threshold, Level: level})
	sort.Slice(s.thresholds, func(i, j int) bool {
		return s.thresholds[i].Threshold > s.thresholds[j].Threshold
	})
}

// RemoveLevel deletes the level at the given threshold, if present.
func (s *LODSelector) RemoveLevel(threshold float64) {
	for i := range s.thresholds {
		if s.thresholds[i].Threshold == threshold {
			s.thresholds = append(s.thresholds[:i], s.thresholds[i+1:]...)
			return
		}
	}
}

// LevelFor returns the level for the scalar: greatest threshold <= scalar,
// or the smallest threshold's level when below all thresholds. A selector
// with an empty table returns the zero LODLevel.
func (s *LODSelector) LevelFor(scalar float64) LODLevel {
	if len(s.thresholds) == 0 {
		return LODLevel{}
	}
	for _, t := range s.thresholds {
		if t.Threshold <= scalar {
			return t.Level
		}
	}
	return s.thresholds[len(s.thresholds)-1].Level
}

// Select produces the derived view for the camera: copies of the input
// elements with LOD assigned, sub-pixel elements dropped, children pruned
// per level, and interactions stripped where the level disables them.
func (s *LODSelector) Select(elements []*Element, cam Camera) []*Element {
	out := make([]*Element, 0, len(elements))
	for _, el := range elements {
		if cp := s.selectOne(el, cam); cp != nil {
			out = append(out, cp)
		}
	}
	return out
}

func (s *LODSelector) selectOne(el *Element, cam Camera) *Element {
	screenSize := math.Max(el.Bounds.Width, el.Bounds.Height) * cam.Zoom
	if screenSize < 1 {
		// Hard cull, not a detail reduction.
		return nil
	}

	level := s.LevelFor(s.scalarFor(el, cam, screenSize))
	cp := el.copyShallow()
	cp.LOD = lodBand(screenSize)
	cp.RenderPriority = cp.LOD
	if !level.Interactions {
		cp.Interactive = false
	}
	if !level.Metadata {
		cp.Payload = nil
	}
	if level.Children && len(el.Children) > 0 {
		cp.Children = s.Select(el.Children, cam)
	} else {
		cp.Children = nil
	}
	return cp
}

// scalarFor picks the table lookup scalar: depth distance when the camera
// navigates depth and the element has a depth position, screen size
// otherwise.
func (s *LODSelector) scalarFor(el *Element, cam Camera, screenSize float64) float64 {
	if cam.HasDepth && el.DepthPosition != nil {
		return math.Abs(*el.DepthPosition - cam.Depth)
	}
	return screenSize
}
