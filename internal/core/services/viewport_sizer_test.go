package services

import (
	"testing"

	"overlaycam/internal/core/domain"

	"github.com/stretchr/testify/assert"
)

func TestComputeDimension(t *testing.T) {
	sizer := NewViewportSizer(SizerConfig{IdealWidth: 720, IdealHeight: 540, MaxWidth: 720, MaxHeight: 540})

	tests := []struct {
		name      string
		container domain.Bounds
		caps      domain.Capabilities
		want      domain.Dimension
	}{
		{"ideal fits", domain.Bounds{Width: 1920, Height: 1080}, domain.Capabilities{MaxWidth: 1920, MaxHeight: 1080}, domain.Dimension{Width: 720, Height: 540}},
		{"narrow container", domain.Bounds{Width: 375, Height: 667}, domain.Capabilities{MaxWidth: 1920, MaxHeight: 1080}, domain.Dimension{Width: 375, Height: 540}},
		{"small camera", domain.Bounds{Width: 1920, Height: 1080}, domain.Capabilities{MaxWidth: 640, MaxHeight: 480}, domain.Dimension{Width: 640, Height: 480}},
		{"unknown capabilities", domain.Bounds{Width: 1920, Height: 1080}, domain.Capabilities{}, domain.Dimension{Width: 720, Height: 540}},
		{"unknown container", domain.Bounds{}, domain.Capabilities{MaxWidth: 320, MaxHeight: 240}, domain.Dimension{Width: 320, Height: 240}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sizer.ComputeDimension(tt.container, tt.caps))
		})
	}
}

func TestComputeDimensionHardCap(t *testing.T) {
	sizer := NewViewportSizer(SizerConfig{IdealWidth: 4000, IdealHeight: 3000, MaxWidth: 1080, MaxHeight: 720})

	got := sizer.ComputeDimension(domain.Bounds{Width: 5000, Height: 5000}, domain.Capabilities{MaxWidth: 4096, MaxHeight: 2160})
	assert.Equal(t, domain.Dimension{Width: 1080, Height: 720}, got)
}

func TestAdjustToTrack(t *testing.T) {
	sizer := NewViewportSizer(SizerConfig{IdealHeight: 540})
	dim := domain.Dimension{Width: 720, Height: 540}

	got, changed := sizer.AdjustToTrack(dim, domain.TrackSettings{Width: 640, Height: 480})
	assert.True(t, changed)
	assert.Equal(t, domain.Dimension{Width: 720, Height: 480}, got)

	got, changed = sizer.AdjustToTrack(dim, domain.TrackSettings{Width: 1280, Height: 720})
	assert.False(t, changed)
	assert.Equal(t, dim, got)

	_, changed = sizer.AdjustToTrack(dim, domain.TrackSettings{})
	assert.False(t, changed)
}

func TestOrientation(t *testing.T) {
	sizer := NewViewportSizer(SizerConfig{})
	assert.True(t, sizer.Orientation(domain.Bounds{Width: 375, Height: 667}))
	assert.False(t, sizer.Orientation(domain.Bounds{Width: 1024, Height: 768}))
	assert.False(t, sizer.Orientation(domain.Bounds{Width: 500, Height: 500}))
}
