package fathom

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Easing names the supported easing curves. All are pure functions of
// t ∈ [0,1]; BackInOut overshoots.
type Easing string

const (
	EaseLinear     Easing = "linear"
	EaseCubicInOut Easing = "cubic-in-out"
	EaseQuartOut   Easing = "quart-out"
	EaseExpoOut    Easing = "expo-out"
	EaseBackInOut  Easing = "back-in-out"
)

// fn maps the easing name to its gween implementation. Unknown names fall
// back to linear.
func (e Easing) fn() ease.TweenFunc {
	switch e {
	case EaseCubicInOut:
		return ease.InOutCubic
	case EaseQuartOut:
		return ease.OutQuart
	case EaseExpoOut:
		return ease.OutExpo
	case EaseBackInOut:
		return ease.InOutBack
	default:
		return ease.Linear
	}
}

// TransitionSpec describes one camera transition. At most one transition is
// active per engine at a time; starting another supersedes the first.
type TransitionSpec struct {
	Duration time.Duration
	Easing   Easing
	// OnProgress receives raw (pre-easing) progress in [0,1] each tick.
	OnProgress func(t float64)
	// OnComplete fires exactly once when the transition reaches its end
	// state. Never called for a cancelled or superseded transition.
	OnComplete func()
}

// cameraTween holds the per-field tweens of one active transition. X, Y and
// depth interpolate linearly; zoom interpolates in log space so zoom
// changes feel uniform across scales.
type cameraTween struct {
	x, y, depth, logZoom *gween.Tween
	hasDepth             bool
	to                   Camera
	spec                 TransitionSpec
	onUpdate             func(Camera)
	elapsed              float64
	duration             float64 // seconds
	current              Camera
}

// TransitionEngine drives camera-state interpolation over time. It is the
// sole writer of "current camera state" while a transition is animating.
// Last call wins: Animate during an active transition cancels it (without
// its OnComplete) and immediately supersedes it; there is no queue.
type TransitionEngine struct {
	active *cameraTween
}

// NewTransitionEngine creates an idle engine.
func NewTransitionEngine() *TransitionEngine {
	return &TransitionEngine{}
}

// Animate starts a transition from one camera state to another. onUpdate
// receives the interpolated camera each tick; it may be nil. Both cameras
// are validated up front and an invalid one leaves the engine untouched.
// A zero duration resolves synchronously to the end state on the next tick.
func (e *TransitionEngine) Animate(from, to Camera, spec TransitionSpec, onUpdate func(Camera)) error {
	if err := from.Validate(); err != nil {
		return err
	}
	if err := to.Validate(); err != nil {
		return err
	}

	// Cancellation of any prior transition happens here, before the new
	// one's first tick.
	dur := float32(spec.Duration.Seconds())
	fn := spec.Easing.fn()
	tw := &cameraTween{
		x:        gween.New(float32(from.X), float32(to.X), dur, fn),
		y:        gween.New(float32(from.Y), float32(to.Y), dur, fn),
		logZoom:  gween.New(float32(math.Log(from.Zoom)), float32(math.Log(to.Zoom)), dur, fn),
		hasDepth: from.HasDepth && to.HasDepth,
		to:       to,
		spec:     spec,
		onUpdate: onUpdate,
		duration: spec.Duration.Seconds(),
		current:  from,
	}
	if tw.hasDepth {
		tw.depth = gween.New(float32(from.Depth), float32(to.Depth), dur, fn)
	}
	e.active = tw
	return nil
}

// Cancel forces the engine idle. The cancelled transition's OnComplete is
// not called.
func (e *TransitionEngine) Cancel() {
	e.active = nil
}

// Animating reports whether a transition is in flight.
func (e *TransitionEngine) Animating() bool {
	return e.active != nil
}

// Current returns the camera state of the in-flight transition, false when
// idle.
func (e *TransitionEngine) Current() (Camera, bool) {
	if e.active == nil {
		return Camera{}, false
	}
	return e.active.current, true
}

// Update advances the active transition by dt seconds, invoking onUpdate,
// OnProgress and, on completion, OnComplete. No-op when idle.
func (e *TransitionEngine) Update(dt float64) {
	tw := e.active
	if tw == nil {
		return
	}

	if tw.duration <= 0 {
		e.finish(tw)
		return
	}

	fdt := float32(dt)
	xv, xdone := tw.x.Update(fdt)
	yv, _ := tw.y.Update(fdt)
	zv, _ := tw.logZoom.Update(fdt)

	cam := tw.to
	cam.X = float64(xv)
	cam.Y = float64(yv)
	cam.Zoom = math.Exp(float64(zv))
	if tw.hasDepth {
		dv, _ := tw.depth.Update(fdt)
		cam.Depth = float64(dv)
	}
	tw.current = cam
	tw.elapsed += dt

	t := tw.elapsed / tw.duration
	if t > 1 {
		t = 1
	}
	if xdone || t >= 1 {
		e.finish(tw)
		return
	}

	if tw.onUpdate != nil {
		tw.onUpdate(cam)
	}
	if tw.spec.OnProgress != nil {
		tw.spec.OnProgress(t)
	}
}

// finish snaps to the end state, transitions to idle, and fires the final
// callbacks.
func (e *TransitionEngine) finish(tw *cameraTween) {
	tw.current = tw.to
	e.active = nil
	if tw.onUpdate != nil {
		tw.onUpdate(tw.to)
	}
	if tw.spec.OnProgress != nil {
		tw.spec.OnProgress(1)
	}
	if tw.spec.OnComplete != nil {
		tw.spec.OnComplete()
	}
}
