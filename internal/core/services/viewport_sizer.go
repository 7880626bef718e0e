package services

import "overlaycam/internal/core/domain"

// SizerConfig holds the ideal surface size and the hard cap that bounds
// canvas memory and per-tick cost.
type SizerConfig struct {
	IdealWidth  int
	IdealHeight int
	MaxWidth    int
	MaxHeight   int
}

// ViewportSizer derives the render surface size.
type ViewportSizer struct {
	cfg SizerConfig
}

func NewViewportSizer(cfg SizerConfig) *ViewportSizer {
	return &ViewportSizer{cfg: cfg}
}

// ComputeDimension takes, per axis, the minimum of the ideal size, the
// container, the device maximum (when known) and the hard cap.
func (s *ViewportSizer) ComputeDimension(container domain.Bounds, caps domain.Capabilities) domain.Dimension {
	return domain.Dimension{
		Width:  minPositive(s.cfg.IdealWidth, container.Width, caps.MaxWidth, s.cfg.MaxWidth),
		Height: minPositive(s.cfg.IdealHeight, container.Height, caps.MaxHeight, s.cfg.MaxHeight),
	}
}

// AdjustToTrack shrinks the surface height to the negotiated track height
// when the track is smaller. The boolean reports whether the caller has to
// clear what was already drawn.
func (s *ViewportSizer) AdjustToTrack(dim domain.Dimension, settings domain.TrackSettings) (domain.Dimension, bool) {
	if settings.Height > 0 && settings.Height < dim.Height {
		dim.Height = settings.Height
		return dim, true
	}
	return dim, false
}

// IdealHeight is the height requested from the camera.
func (s *ViewportSizer) IdealHeight() int {
	return s.cfg.IdealHeight
}

// minPositive ignores zero and negative values, which stand for "unknown".
func minPositive(values ...int) int {
	result := 0
	for _, v := range values {
		if v <= 0 {
			continue
		}
		if result == 0 || v < result {
			result = v
		}
	}
	return result
}

// Orientation reports whether the container is laid out in portrait.
func (s *ViewportSizer) Orientation(container domain.Bounds) bool {
	return container.Portrait()
}
