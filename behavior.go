package fathom

import (
	"encoding/binary"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.uber.org/zap"
)

// BehaviorContext is the per-frame context behavior steps see.
type BehaviorContext struct {
	Camera    Camera
	FrameRate float64
	Frame     uint64
}

// BehaviorStep is an externally pluggable element transform applied after
// culling and LOD selection. Steps are registered and unregistered
// independently of elements; Priority defines application order
// (ascending).
type BehaviorStep interface {
	ID() string
	Priority() int
	// ShouldApply gates the step for the frame's context.
	ShouldApply(ctx BehaviorContext) bool
	// Apply transforms the element list. Returning an error (or
	// panicking) skips the step; the pipeline continues with the input
	// elements.
	Apply(elements []*Element, ctx BehaviorContext) ([]*Element, error)
}

// Default quantization granularity for the applicable-step cache key.
// Performance heuristics, not correctness parameters.
const (
	defaultCacheTTL       = 500 * time.Millisecond
	defaultQuantDepth     = 10.0
	defaultQuantZoom      = 0.1
	defaultQuantFrameRate = 5.0
)

// BehaviorPipeline is an ordered, cacheable chain of behavior steps with
// per-step failure isolation: a step that fails is logged and skipped, the
// elements pass through unchanged to the next step, and the pipeline never
// propagates the failure to its caller.
//
// Rebuilding the applicable-and-sorted step list every frame is avoided by
// hashing a coarsely quantized view of the context; the cached list is
// reused while the hash matches and the cache is younger than the TTL.
type BehaviorPipeline struct {
	log   *zap.Logger
	steps map[string]BehaviorStep

	cacheKey uint64
	cached   []BehaviorStep
	cachedAt time.Time
	ttl      time.Duration

	quantDepth, quantZoom, quantRate float64

	now func() time.Time
}

// NewBehaviorPipeline creates an empty pipeline. log may be nil.
func NewBehaviorPipeline(log *zap.Logger) *BehaviorPipeline {
	if log == nil {
		log = zap.NewNop()
	}
	return &BehaviorPipeline{
		log:        log,
		steps:      make(map[string]BehaviorStep),
		ttl:        defaultCacheTTL,
		quantDepth: defaultQuantDepth,
		quantZoom:  defaultQuantZoom,
		quantRate:  defaultQuantFrameRate,
		now:        time.Now,
	}
}

// SetCacheTTL tunes how long a cached step list stays valid.
func (p *BehaviorPipeline) SetCacheTTL(ttl time.Duration) {
	p.ttl = ttl
	p.invalidate()
}

// Register adds a step, replacing any step with the same id.
func (p *BehaviorPipeline) Register(step BehaviorStep) {
	p.steps[step.ID()] = step
	p.invalidate()
}

// Unregister removes the step with the given id, if present.
func (p *BehaviorPipeline) Unregister(id string) {
	delete(p.steps, id)
	p.invalidate()
}

// Len returns the number of registered steps.
func (p *BehaviorPipeline) Len() int { return len(p.steps) }

func (p *BehaviorPipeline) invalidate() {
	p.cached = nil
	p.cacheKey = 0
	p.cachedAt = time.Time{}
}

// Apply runs every applicable step in priority order, feeding each step's
// output to the next. Always returns a usable element list.
func (p *BehaviorPipeline) Apply(elements []*Element, ctx BehaviorContext) []*Element {
	current := elements
	for _, step := range p.applicableSteps(ctx) {
		out, err := p.runStep(step, current, ctx)
		if err != nil {
			p.log.Warn("behavior step failed",
				zap.String("step", step.ID()),
				zap.Error(err))
			continue
		}
		current = out
	}
	return current
}

// runStep executes one step with panic isolation.
func (p *BehaviorPipeline) runStep(step BehaviorStep, elements []*Element, ctx BehaviorContext) (out []*Element, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("behavior panic: %v", r)
		}
	}()
	return step.Apply(elements, ctx)
}

// applicableSteps returns the filtered, priority-sorted step list, reusing
// the cached one while the quantized context hash matches and the cache is
// fresh.
func (p *BehaviorPipeline) applicableSteps(ctx BehaviorContext) []BehaviorStep {
	key := p.hashContext(ctx)
	if p.cached != nil && key == p.cacheKey && p.now().Sub(p.cachedAt) < p.ttl {
		return p.cached
	}

	steps := make([]BehaviorStep, 0, len(p.steps))
	for _, step := range p.steps {
		if p.stepApplies(step, ctx) {
			steps = append(steps, step)
		}
	}
	sort.Slice(steps, func(i, j int) bool {
		if steps[i].Priority() != steps[j].Priority() {
			return steps[i].Priority() < steps[j].Priority()
		}
		return steps[i].ID() < steps[j].ID()
	})

	p.cached = steps
	p.cacheKey = key
	p.cachedAt = p.now()
	return steps
}

// stepApplies calls ShouldApply with panic isolation; a panicking gate is
// logged and treated as not applicable.
func (p *BehaviorPipeline) stepApplies(step BehaviorStep, ctx BehaviorContext) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.log.Warn("behavior gate panicked",
				zap.String("step", step.ID()),
				zap.Any("panic", r))
			ok = false
		}
	}()
	return step.ShouldApply(ctx)
}

// hashContext produces the coarse cache key from quantized depth, zoom and
// frame rate.
func (p *BehaviorPipeline) hashContext(ctx BehaviorContext) uint64 {
	var buf [24]byte
	binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(quantize(ctx.Camera.Depth, p.quantDepth)))
	binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(quantize(ctx.Camera.Zoom, p.quantZoom)))
	binary.LittleEndian.PutUint64(buf[16:], math.Float64bits(quantize(ctx.FrameRate, p.quantRate)))
	return xxhash.Sum64(buf[:])
}

// quantize rounds v to the nearest multiple of step.
func quantize(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Round(v/step) * step
}

// BehaviorFunc adapts plain functions into a BehaviorStep.
type BehaviorFunc struct {
	StepID       string
	StepPriority int
	// Applies gates the step; nil means always applicable.
	Applies func(ctx BehaviorContext) bool
	// Transform is the step body; nil passes elements through.
	Transform func(elements []*Element, ctx BehaviorContext) ([]*Element, error)
}

func (b BehaviorFunc) ID() string    { return b.StepID }
func (b BehaviorFunc) Priority() int { return b.StepPriority }

func (b BehaviorFunc) ShouldApply(ctx BehaviorContext) bool {
	if b.Applies == nil {
		return true
	}
	return b.Applies(ctx)
}

func (b BehaviorFunc) Apply(elements []*Element, ctx BehaviorContext) ([]*Element, error) {
	if b.Transform == nil {
		return elements, nil
	}
	return b.Transform(elements, ctx)
}
