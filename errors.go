package fathom

import "errors"

// ErrInvalidCamera is returned when a camera state contains NaN or infinite
// coordinates, or a non-positive zoom. APIs reject invalid cameras at the
// boundary without mutating any engine state.
var ErrInvalidCamera = errors.New("fathom: invalid camera state")

// ErrTargetNotFound is returned by navigation-by-id operations (FlyTo) when
// no loaded element has the requested id. Plain lookups return empty results
// instead of an error.
var ErrTargetNotFound = errors.New("fathom: target element not found")

// ErrDuplicateLayer is returned when adding a layer whose depth index is
// already registered.
var ErrDuplicateLayer = errors.New("fathom: duplicate layer depth index")

// ErrNoWorld is returned by operations that require a loaded world.
var ErrNoWorld = errors.New("fathom: no world loaded")
