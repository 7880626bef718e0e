package services

import (
	"sync"

	"overlaycam/internal/core/domain"
)

// narrowViewport is the width under which the studio uses phone-sized zoom steps.
const narrowViewport = 640

// ZoomDefaults are the initial overlay scale and the step applied per zoom command.
type ZoomDefaults struct {
	Initial float64
	Delta   float64
}

// ZoomDefaultsFor picks defaults for a viewport. The single-surface still
// layout starts larger; the video layouts shrink the step on narrow screens.
func ZoomDefaultsFor(viewportWidth int, layout domain.Layout) ZoomDefaults {
	if layout == domain.LayoutSingle {
		return ZoomDefaults{Initial: 0.4, Delta: 0.1}
	}
	if viewportWidth < narrowViewport {
		return ZoomDefaults{Initial: 0.2, Delta: 0.05}
	}
	return ZoomDefaults{Initial: 0.3, Delta: 0.1}
}

// ZoomController holds the overlay scale.
//
// The scale has no lower bound unless minScale is positive: zooming out far
// enough reaches zero or a negative value, and the compositor then skips the
// overlay layer.
type ZoomController struct {
	mu       sync.RWMutex
	scale    float64
	delta    float64
	minScale float64
}

func NewZoomController(defaults ZoomDefaults, minScale float64) *ZoomController {
	return &ZoomController{
		scale:    defaults.Initial,
		delta:    defaults.Delta,
		minScale: minScale,
	}
}

func (z *ZoomController) ZoomIn() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.scale += z.delta
	return z.scale
}

func (z *ZoomController) ZoomOut() float64 {
	z.mu.Lock()
	defer z.mu.Unlock()
	z.scale -= z.delta
	if z.minScale > 0 && z.scale < z.minScale {
		z.scale = z.minScale
	}
	return z.scale
}

func (z *ZoomController) Scale() float64 {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.scale
}

func (z *ZoomController) Set(scale float64) {
	z.mu.Lock()
	z.scale = scale
	z.mu.Unlock()
}

// Reconfigure swaps the defaults, used when a new viewport is computed.
func (z *ZoomController) Reconfigure(defaults ZoomDefaults) {
	z.mu.Lock()
	z.scale = defaults.Initial
	z.delta = defaults.Delta
	z.mu.Unlock()
}
