// Package fathom is a real-time spatial-navigation engine: given a large
// tree of positioned, bounded elements, it decides every frame which
// elements are visible, at what level of detail, and how the camera moves
// between states, all within a fixed frame budget.
//
// # Quick start
//
//	engine, err := fathom.NewEngine(fathom.DefaultConfig())
//	if err != nil {
//		log.Fatal(err)
//	}
//	engine.LoadWorld(world)
//
//	// Per frame:
//	batches := engine.Update(dt)
//	// ... hand batches to your renderer ...
//
// # Subsystems
//
// [SpatialIndex] is a bulk-loadable bounding-volume tree over element
// bounds with box, point, radius, and k-nearest queries. [ViewportCuller]
// narrows index results to what a camera can see, in 2D and along the
// depth axis. [LODSelector] assigns level-of-detail descriptors and prunes
// sub-pixel elements. [TransitionEngine] interpolates camera state over
// time with cancellable easing (via [gween]); zoom interpolates in log
// space so zoom changes feel uniform across scales. [DepthNavigator]
// manages the depth axis as a bounded navigation state and owns the layer
// registry. [FrameScheduler] amortizes expensive work across frames under
// an adaptive budget. [BehaviorPipeline] lets external code contribute
// per-frame element transforms with per-step failure isolation.
//
// All of it is driven from a single owner goroutine; index queries alone
// are safe to run concurrently with each other.
//
// The engine produces flat, ordered-by-kind [RenderBatch] slices and makes
// no assumption about the renderer beyond "accepts a batch per frame";
// examples/viewer shows an Ebitengine-backed consumer.
//
// [gween]: https://github.com/tanema/gween
package fathom
