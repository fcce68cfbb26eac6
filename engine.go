package fathom

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// perfEmitInterval is how often performanceUpdate events fire.
const perfEmitInterval = time.Second

// Engine ties the subsystems into the per-frame pipeline: transitions and
// depth navigation update the camera, the spatial index supplies
// candidates, the culler and LOD selector narrow them, the behavior
// pipeline transforms them, and the result is batched for an external
// renderer.
//
// The engine is driven from a single owner goroutine: call Update once per
// frame. Viewport-change and click notifications are coalesced per frame:
// listeners may miss intermediate viewport values but never the final one
// in a frame.
type Engine struct {
	cfg Config
	log *zap.Logger

	index       *SpatialIndex
	culler      *ViewportCuller
	lod         *LODSelector
	transitions *TransitionEngine
	depth       *DepthNavigator
	scheduler   *FrameScheduler
	pipeline    *BehaviorPipeline
	events      *Emitter

	world    *World
	elements map[string]*Element
	camera   Camera

	frame     uint64
	frameRate float64
	perfAccum time.Duration
	lastCull  CullStats

	// Coalesced per-frame notifications.
	viewportDirty bool
	pendingClicks []*Element
}

// NewEngine creates an engine from the config. The camera starts at the
// configured initial state; LoadWorld supplies content.
func NewEngine(cfg Config) (*Engine, error) {
	if err := cfg.InitialCamera.Validate(); err != nil {
		return nil, err
	}
	log := cfg.logger()
	events := NewEmitter()
	minDepth, maxDepth := cfg.depthBounds()

	index := NewSpatialIndex()
	nav := NewDepthNavigator(minDepth, maxDepth, cfg.DefaultCullDistance, events)
	culler := NewViewportCuller(index, nav)
	culler.SetWorkers(cfg.CullWorkers)

	lod := NewLODSelector()
	if cfg.InitialCamera.HasDepth {
		// Depth navigation switches the lookup scalar to depth distance
		// for depth-positioned elements, which needs the inverted table.
		lod = NewDepthLODSelector(cfg.DefaultCullDistance)
	}
	if len(cfg.LODThresholds) > 0 {
		lod = NewLODSelectorWithTable(cfg.LODThresholds)
	}

	return &Engine{
		cfg:         cfg,
		log:         log,
		index:       index,
		culler:      culler,
		lod:         lod,
		transitions: NewTransitionEngine(),
		depth:       nav,
		scheduler:   NewFrameScheduler(cfg.TargetFrameRate, log),
		pipeline:    NewBehaviorPipeline(log),
		events:      events,
		elements:    make(map[string]*Element),
		camera:      cfg.InitialCamera,
	}, nil
}

// Subsystem accessors. The engine owns these; callers use them for
// registration (layers, behavior steps, LOD table, event handlers) and
// direct queries.

func (e *Engine) Index() *SpatialIndex           { return e.index }
func (e *Engine) LOD() *LODSelector              { return e.lod }
func (e *Engine) Depth() *DepthNavigator         { return e.depth }
func (e *Engine) Scheduler() *FrameScheduler     { return e.scheduler }
func (e *Engine) Pipeline() *BehaviorPipeline    { return e.pipeline }
func (e *Engine) Events() *Emitter               { return e.events }
func (e *Engine) Transitions() *TransitionEngine { return e.transitions }

// Camera returns the current camera state.
func (e *Engine) Camera() Camera { return e.camera }

// World returns the loaded world, or nil.
func (e *Engine) World() *World { return e.world }

// LoadWorld replaces all engine content with the snapshot: the element
// tree is flattened into the spatial index, layers are registered with the
// depth navigator, and elements without an id are assigned one. The
// previous world's tree is released.
func (e *Engine) LoadWorld(world *World) error {
	if world == nil {
		return ErrNoWorld
	}

	var entries []IndexEntry
	lookup := make(map[string]*Element)
	for _, el := range world.Elements {
		assignIDs(el)
		entries = flattenElements(entries, el)
	}
	for _, entry := range entries {
		lookup[entry.Element.ID] = entry.Element
	}

	// Re-register layers on a fresh navigator so stale registrations
	// from the previous world cannot leak.
	minDepth, maxDepth := e.cfg.depthBounds()
	e.depth = NewDepthNavigator(minDepth, maxDepth, e.cfg.DefaultCullDistance, e.events)
	for _, layer := range world.Layers {
		if err := e.depth.AddLayer(layer); err != nil {
			return err
		}
	}
	e.culler = NewViewportCuller(e.index, e.depth)
	e.culler.SetWorkers(e.cfg.CullWorkers)

	e.index.Load(entries)
	e.world = world
	e.elements = lookup
	return nil
}

// Destroy releases the world and leaves the engine empty but usable.
func (e *Engine) Destroy() {
	e.index.Clear()
	e.transitions.Cancel()
	e.depth.Cancel()
	e.world = nil
	e.elements = make(map[string]*Element)
	e.pendingClicks = nil
	e.viewportDirty = false
}

// assignIDs gives the element and its descendants stable ids where
// missing.
func assignIDs(el *Element) {
	if el.ID == "" {
		el.ID = uuid.NewString()
	}
	for _, child := range el.Children {
		assignIDs(child)
	}
}

// Element returns the loaded element with the given id; nil when absent
// (lookups are not errors).
func (e *Engine) Element(id string) *Element {
	return e.elements[id]
}

// SetCamera sets the camera state directly, cancelling any in-flight
// transition. Zoom is clamped to the configured range. An invalid camera
// is rejected without mutating state.
func (e *Engine) SetCamera(cam Camera) error {
	if err := cam.Validate(); err != nil {
		return err
	}
	e.transitions.Cancel()
	e.camera = cam.clampZoom(e.cfg.MinZoom, e.cfg.MaxZoom)
	e.viewportDirty = true
	return nil
}

// AnimateCamera transitions the camera from its current state to the
// target. Starting a new transition supersedes an in-flight one.
func (e *Engine) AnimateCamera(to Camera, spec TransitionSpec) error {
	if err := to.Validate(); err != nil {
		return err
	}
	to = to.clampZoom(e.cfg.MinZoom, e.cfg.MaxZoom)
	return e.transitions.Animate(e.camera, to, spec, func(cam Camera) {
		e.camera = cam
		e.viewportDirty = true
	})
}

// FlyTo animates the camera to frame the element with the given id,
// zooming so the element fills roughly half the viewport. When the camera
// navigates depth and the element has a depth position, the depth leg runs
// through the depth navigator, which owns the depth axis; the camera picks
// it up through the per-frame sync. Fails with ErrTargetNotFound for
// unknown ids.
func (e *Engine) FlyTo(id string, spec TransitionSpec) error {
	el, ok := e.elements[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTargetNotFound, id)
	}
	cx, cy := el.Bounds.Center()
	to := e.camera
	to.X, to.Y = cx, cy
	if zoom := fitZoom(el.Bounds, e.camera); zoom > 0 {
		to.Zoom = zoom
	}
	if el.DepthPosition != nil && e.camera.HasDepth {
		// Same duration and easing, but completion callbacks belong to
		// the camera transition alone.
		depthSpec := TransitionSpec{Duration: spec.Duration, Easing: spec.Easing}
		if err := e.depth.NavigateTo(*el.DepthPosition, depthSpec); err != nil {
			return err
		}
	}
	return e.AnimateCamera(to, spec)
}

// fitZoom computes the zoom at which bounds fills half the viewport's
// limiting dimension.
func fitZoom(bounds Rect, cam Camera) float64 {
	w := math.Max(bounds.Width, 1e-9)
	h := math.Max(bounds.Height, 1e-9)
	if cam.ViewportWidth <= 0 || cam.ViewportHeight <= 0 {
		return 0
	}
	return math.Min(cam.ViewportWidth/w, cam.ViewportHeight/h) / 2
}

// Pick returns an interactive element whose bounds contain the screen
// point, or nil. Overlapping hits resolve deterministically (greatest id).
// LOD interaction stripping applies to emitted copies, not here; Pick
// consults the loaded tree.
func (e *Engine) Pick(sx, sy float64) *Element {
	wx, wy := e.camera.ScreenToWorld(sx, sy)
	hits := e.index.QueryPoint(wx, wy)
	var best *Element
	for _, h := range hits {
		if !h.Element.Interactive {
			continue
		}
		if best == nil || h.Element.ID > best.ID {
			best = h.Element
		}
	}
	return best
}

// Click hit-tests the screen point and queues an elementClick notification
// for the end of the current frame. Clicks in one frame are delivered as a
// batch, in click order.
func (e *Engine) Click(sx, sy float64) {
	if el := e.Pick(sx, sy); el != nil {
		e.pendingClicks = append(e.pendingClicks, el)
	}
}

// Update advances the engine by dt seconds and returns the frame's render
// batches: transition/depth updates, scheduler tick, culling, LOD
// selection, behavior pipeline, then coalesced event delivery.
func (e *Engine) Update(dt float64) []RenderBatch {
	start := time.Now()
	e.frame++

	e.transitions.Update(dt)
	e.depth.Update(dt)
	// The navigator owns the depth axis; the camera mirrors it. Depth
	// changes go through Depth(), never through a camera transition.
	if e.depth.Navigating() || e.camera.HasDepth {
		e.camera.Depth = e.depth.CurrentDepth()
	}

	result, err := e.culler.Cull(e.camera)
	if err != nil {
		// Camera was validated on the way in; treat as empty frame.
		e.log.Error("cull pass rejected camera", zap.Error(err))
		return nil
	}
	e.lastCull = result.Stats

	selected := e.lod.Select(result.Visible, e.camera)
	final := e.pipeline.Apply(selected, BehaviorContext{
		Camera:    e.camera,
		FrameRate: e.frameRate,
		Frame:     e.frame,
	})
	batches := buildBatches(final)

	e.flushNotifications()

	elapsed := time.Since(start)
	e.scheduler.Tick(elapsed)
	e.trackPerformance(dt, elapsed)
	return batches
}

// flushNotifications delivers the frame's coalesced events: the latest
// viewport state once, then all batched clicks in order.
func (e *Engine) flushNotifications() {
	if e.viewportDirty {
		e.viewportDirty = false
		e.events.Emit(EventViewportChange, ViewportChangeEvent{Camera: e.camera})
	}
	if len(e.pendingClicks) > 0 {
		clicks := e.pendingClicks
		e.pendingClicks = nil
		for _, el := range clicks {
			e.events.Emit(EventElementClick, ElementClickEvent{Element: el})
		}
	}
}

// trackPerformance maintains the frame-rate estimate and emits
// performanceUpdate once per interval.
func (e *Engine) trackPerformance(dt float64, frameTime time.Duration) {
	if dt > 0 {
		// Smoothed like the scheduler's cost EMA.
		rate := 1 / dt
		if e.frameRate == 0 {
			e.frameRate = rate
		} else {
			e.frameRate = emaKeep*e.frameRate + emaBlend*rate
		}
	}

	e.perfAccum += time.Duration(dt * float64(time.Second))
	if e.perfAccum >= perfEmitInterval {
		e.perfAccum = 0
		e.events.Emit(EventPerformanceUpdate, PerformanceEvent{
			FrameTime:   frameTime,
			FrameRate:   e.frameRate,
			CulledCount: e.lastCull.FrustumCulled + e.lastCull.DepthCulled,
		})
	}
}
