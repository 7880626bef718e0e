package domain

import "image"

// Dimension is the size of the render surface.
type Dimension struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

func (d Dimension) Rect() image.Rectangle {
	return image.Rect(0, 0, d.Width, d.Height)
}

func (d Dimension) Empty() bool {
	return d.Width <= 0 || d.Height <= 0
}

// Bounds describes the container the surface is laid out in (window or element size).
type Bounds struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Portrait reports whether the container is taller than it is wide.
func (b Bounds) Portrait() bool {
	return b.Height > b.Width
}

// Layout selects how the overlay and video layers are composed.
type Layout string

const (
	// LayoutSingle draws both layers on one surface: overlay first, then the
	// video frame behind it.
	LayoutSingle Layout = "single"
	// LayoutSplit renders overlay and video to separate surfaces that are
	// flattened back to front on export.
	LayoutSplit Layout = "split"
)

func (l Layout) Valid() bool {
	return l == LayoutSingle || l == LayoutSplit
}

// CompositeOp is the compositing rule used for a draw call.
type CompositeOp int

const (
	// CompositeOver draws the source on top of existing content.
	CompositeOver CompositeOp = iota
	// CompositeBehind draws the source underneath existing content
	// (canvas "destination-over").
	CompositeBehind
)

func (op CompositeOp) String() string {
	switch op {
	case CompositeOver:
		return "source-over"
	case CompositeBehind:
		return "destination-over"
	default:
		return "unknown"
	}
}
