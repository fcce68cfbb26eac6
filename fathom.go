package fathom

import "math"

// Rect is an axis-aligned rectangle in world units. Width and Height are
// never negative. The coordinate system has its origin at the top-left,
// with Y increasing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether the point (x, y) lies inside the rectangle.
// Points on the edge are considered inside.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap.
// Adjacent rectangles (sharing only an edge) are considered intersecting.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Center returns the center point of the rectangle.
func (r Rect) Center() (x, y float64) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// union returns the smallest rectangle covering both r and other.
func (r Rect) union(other Rect) Rect {
	minX := math.Min(r.X, other.X)
	minY := math.Min(r.Y, other.Y)
	maxX := math.Max(r.X+r.Width, other.X+other.Width)
	maxY := math.Max(r.Y+r.Height, other.Y+other.Height)
	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// distanceSq returns the squared distance from (x, y) to the nearest point
// of the rectangle. Zero when the point is inside.
func (r Rect) distanceSq(x, y float64) float64 {
	dx := math.Max(math.Max(r.X-x, 0), x-(r.X+r.Width))
	dy := math.Max(math.Max(r.Y-y, 0), y-(r.Y+r.Height))
	return dx*dx + dy*dy
}

// IntersectsCircle reports whether the rectangle overlaps the circle
// centered at (x, y) with radius radius.
func (r Rect) IntersectsCircle(x, y, radius float64) bool {
	return r.distanceSq(x, y) <= radius*radius
}

// DepthRange is an extent along the depth axis. Near is never greater
// than Far.
type DepthRange struct {
	Near, Far float64
}

// Contains reports whether depth lies within the range, inclusive.
func (d DepthRange) Contains(depth float64) bool {
	return depth >= d.Near && depth <= d.Far
}

// Overlaps reports whether the range intersects [near, far].
func (d DepthRange) Overlaps(near, far float64) bool {
	return d.Near <= far && d.Far >= near
}

// Camera is the navigation state: a world-space position, an optional depth
// coordinate, a zoom factor, and the viewport dimensions in screen units.
type Camera struct {
	// X and Y are the world-space position the camera centers on.
	X, Y float64
	// Depth is the position on the depth axis. Only meaningful when
	// HasDepth is true (depth navigation enabled).
	Depth    float64
	HasDepth bool
	// Zoom is the scale factor (1.0 = no zoom, >1 = zoom in). Always > 0.
	Zoom float64
	// ViewportWidth and ViewportHeight are the screen-space viewport size.
	ViewportWidth, ViewportHeight float64
}

// Validate checks the camera invariants: finite coordinates, positive
// finite zoom, non-negative viewport. Returns ErrInvalidCamera on
// violation.
func (c Camera) Validate() error {
	for _, v := range [...]float64{c.X, c.Y, c.Depth, c.Zoom, c.ViewportWidth, c.ViewportHeight} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrInvalidCamera
		}
	}
	if c.Zoom <= 0 {
		return ErrInvalidCamera
	}
	if c.ViewportWidth < 0 || c.ViewportHeight < 0 {
		return ErrInvalidCamera
	}
	return nil
}

// VisibleBounds returns the world-space rectangle visible at the camera's
// zoom: viewport/zoom, centered on the camera position.
func (c Camera) VisibleBounds() Rect {
	w := c.ViewportWidth / c.Zoom
	h := c.ViewportHeight / c.Zoom
	return Rect{X: c.X - w/2, Y: c.Y - h/2, Width: w, Height: h}
}

// WorldToScreen converts world coordinates to screen coordinates relative
// to the viewport's top-left corner.
func (c Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	sx = (wx-c.X)*c.Zoom + c.ViewportWidth/2
	sy = (wy-c.Y)*c.Zoom + c.ViewportHeight/2
	return
}

// ScreenToWorld converts screen coordinates (relative to the viewport's
// top-left corner) to world coordinates.
func (c Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	wx = (sx-c.ViewportWidth/2)/c.Zoom + c.X
	wy = (sy-c.ViewportHeight/2)/c.Zoom + c.Y
	return
}

// clampZoom returns a copy with Zoom restricted to [min, max]. A zero max
// means unbounded above; a zero min means unbounded below.
func (c Camera) clampZoom(min, max float64) Camera {
	if min > 0 && c.Zoom < min {
		c.Zoom = min
	}
	if max > 0 && c.Zoom > max {
		c.Zoom = max
	}
	return c
}
