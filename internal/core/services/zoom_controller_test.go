package services

import (
	"testing"

	"overlaycam/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestZoomDefaultsFor(t *testing.T) {
	tests := []struct {
		name   string
		width  int
		layout domain.Layout
		want   ZoomDefaults
	}{
		{"still screen", 1080, domain.LayoutSingle, ZoomDefaults{Initial: 0.4, Delta: 0.1}},
		{"still screen narrow", 320, domain.LayoutSingle, ZoomDefaults{Initial: 0.4, Delta: 0.1}},
		{"video narrow", 639, domain.LayoutSplit, ZoomDefaults{Initial: 0.2, Delta: 0.05}},
		{"video wide", 640, domain.LayoutSplit, ZoomDefaults{Initial: 0.3, Delta: 0.1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ZoomDefaultsFor(tt.width, tt.layout))
		})
	}
}

func TestZoomIsUnclampedByDefault(t *testing.T) {
	z := NewZoomController(ZoomDefaults{Initial: 0.2, Delta: 0.1}, 0)

	assert.InDelta(t, 0.3, z.ZoomIn(), 1e-9)
	z.ZoomOut()
	z.ZoomOut()
	assert.InDelta(t, 0.0, z.Scale(), 1e-9)
	assert.InDelta(t, -0.1, z.ZoomOut(), 1e-9)
}

func TestZoomHonorsMinScale(t *testing.T) {
	z := NewZoomController(ZoomDefaults{Initial: 0.2, Delta: 0.1}, 0.1)

	z.ZoomOut()
	z.ZoomOut()
	assert.InDelta(t, 0.1, z.Scale(), 1e-9)

	z.Set(2)
	assert.InDelta(t, 2.0, z.Scale(), 1e-9)

	z.Reconfigure(ZoomDefaults{Initial: 0.4, Delta: 0.05})
	assert.InDelta(t, 0.45, z.ZoomIn(), 1e-9)
}
