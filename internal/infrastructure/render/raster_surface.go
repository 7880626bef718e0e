package render

import (
	"image"
	stddraw "image/draw"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"golang.org/x/image/draw"
)

// RasterSurface is an in-memory RGBA drawing surface.
type RasterSurface struct {
	mu  sync.Mutex
	img *image.RGBA
	// scratch is the back buffer for draw-behind; it swaps with img.
	scratch  *image.RGBA
	scaler   draw.Scaler
	disposed bool
	draws    int
}

// NewRasterSurface allocates a transparent surface. Scaled draws use
// bilinear interpolation.
func NewRasterSurface(d domain.Dimension) *RasterSurface {
	return &RasterSurface{
		img:    image.NewRGBA(d.Rect()),
		scaler: draw.BiLinear,
	}
}

// Factory adapts NewRasterSurface to ports.SurfaceFactory.
func Factory() ports.SurfaceFactory {
	return func(d domain.Dimension) ports.Surface {
		return NewRasterSurface(d)
	}
}

func (s *RasterSurface) Size() domain.Dimension {
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.img.Bounds()
	return domain.Dimension{Width: b.Dx(), Height: b.Dy()}
}

// Resize reallocates the backing image. Content is not preserved.
func (s *RasterSurface) Resize(d domain.Dimension) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return domain.ErrSurfaceGone
	}
	if s.img.Bounds() != d.Rect() {
		s.img = image.NewRGBA(d.Rect())
		s.scratch = nil
	}
	return nil
}

func (s *RasterSurface) Clear(r image.Rectangle) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return domain.ErrSurfaceGone
	}
	stddraw.Draw(s.img, r.Intersect(s.img.Bounds()), image.Transparent, image.Point{}, stddraw.Src)
	return nil
}

// DrawImage draws src into dst, scaling when the sizes differ. Parts of dst
// outside the surface are clipped.
func (s *RasterSurface) DrawImage(src image.Image, dst image.Rectangle, op domain.CompositeOp) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return domain.ErrSurfaceGone
	}
	if src == nil || dst.Empty() {
		return nil
	}

	switch op {
	case domain.CompositeBehind:
		layer := s.scratch
		if layer == nil || layer.Bounds() != s.img.Bounds() {
			layer = image.NewRGBA(s.img.Bounds())
		} else {
			clear(layer.Pix)
		}
		s.paint(layer, src, dst)
		stddraw.Draw(layer, layer.Bounds(), s.img, s.img.Bounds().Min, stddraw.Over)
		s.img, s.scratch = layer, s.img
	default:
		s.paint(s.img, src, dst)
	}
	s.draws++
	return nil
}

func (s *RasterSurface) paint(dst *image.RGBA, src image.Image, r image.Rectangle) {
	sr := src.Bounds()
	if r.Dx() == sr.Dx() && r.Dy() == sr.Dy() {
		draw.Copy(dst, r.Min, src, sr, draw.Over, nil)
		return
	}
	s.scaler.Scale(dst, r, src, sr, draw.Over, nil)
}

// Snapshot returns a copy of the surface pixels.
func (s *RasterSurface) Snapshot() (*image.RGBA, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return nil, domain.ErrSurfaceGone
	}
	out := image.NewRGBA(s.img.Bounds())
	copy(out.Pix, s.img.Pix)
	return out, nil
}

func (s *RasterSurface) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.img = image.NewRGBA(image.Rectangle{})
	s.scratch = nil
	s.mu.Unlock()
}

func (s *RasterSurface) Disposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Draws counts successful DrawImage calls.
func (s *RasterSurface) Draws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}
