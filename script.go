package fathom

import (
	"encoding/json"
	"fmt"
	"time"
)

// scriptStep represents a single action in a navigation script.
type scriptStep struct {
	Action     string  `json:"action"`
	X          float64 `json:"x,omitempty"`
	Y          float64 `json:"y,omitempty"`
	Zoom       float64 `json:"zoom,omitempty"`
	Depth      float64 `json:"depth,omitempty"`
	Distance   float64 `json:"distance,omitempty"`
	Target     string  `json:"target,omitempty"`
	DurationMs float64 `json:"durationMs,omitempty"`
	Easing     string  `json:"easing,omitempty"`
	Frames     int     `json:"frames,omitempty"`
}

// navScript is the top-level JSON structure for a navigation script.
type navScript struct {
	Steps []scriptStep `json:"steps"`
}

// ScriptRunner replays a JSON navigation script against an engine, one
// step per frame, for automated end-to-end testing and demos. Supported
// actions: "pan" (x, y), "zoom" (zoom), "flyTo" (target, durationMs,
// easing), "dive"/"emerge" (distance, durationMs, easing), "depth"
// (depth, durationMs, easing), "click" (x, y screen), and "wait"
// (frames).
type ScriptRunner struct {
	steps     []scriptStep
	cursor    int
	waitCount int
	done      bool
}

// LoadScript parses a JSON navigation script.
func LoadScript(jsonData []byte) (*ScriptRunner, error) {
	var script navScript
	if err := json.Unmarshal(jsonData, &script); err != nil {
		return nil, fmt.Errorf("parse nav script: %w", err)
	}
	if len(script.Steps) == 0 {
		return nil, fmt.Errorf("parse nav script: no steps")
	}
	return &ScriptRunner{steps: script.Steps}, nil
}

// Done reports whether all steps have been executed.
func (r *ScriptRunner) Done() bool {
	return r.done
}

// Step advances the runner by one frame. Call before Engine.Update. Step
// errors (an unknown flyTo target, an invalid camera) are returned but do
// not stop the script; the runner advances regardless, mirroring the
// engine's degraded-continuation stance.
func (r *ScriptRunner) Step(e *Engine) error {
	if r.done {
		return nil
	}
	// Let in-flight animations finish before advancing.
	if e.Transitions().Animating() || e.Depth().Navigating() {
		return nil
	}
	if r.waitCount > 0 {
		r.waitCount--
		return nil
	}
	if r.cursor >= len(r.steps) {
		r.done = true
		return nil
	}

	st := r.steps[r.cursor]
	r.cursor++
	spec := TransitionSpec{
		Duration: time.Duration(st.DurationMs * float64(time.Millisecond)),
		Easing:   Easing(st.Easing),
	}

	var err error
	switch st.Action {
	case "pan":
		cam := e.Camera()
		cam.X, cam.Y = st.X, st.Y
		err = e.SetCamera(cam)
	case "zoom":
		cam := e.Camera()
		cam.Zoom = st.Zoom
		err = e.SetCamera(cam)
	case "flyTo":
		err = e.FlyTo(st.Target, spec)
	case "dive":
		err = e.Depth().DiveDeeper(st.Distance, spec)
	case "emerge":
		err = e.Depth().EmergeUp(st.Distance, spec)
	case "depth":
		err = e.Depth().NavigateTo(st.Depth, spec)
	case "click":
		e.Click(st.X, st.Y)
	case "wait":
		if st.Frames > 0 {
			r.waitCount = st.Frames - 1 // this frame counts as one
		}
	default:
		err = fmt.Errorf("nav script: unknown action %q", st.Action)
	}

	if r.cursor >= len(r.steps) && r.waitCount == 0 {
		r.done = true
	}
	return err
}
