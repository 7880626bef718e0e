package services

import (
	"image"
	"image/color"
	"testing"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/internal/infrastructure/render"
	"overlaycam/internal/infrastructure/scheduler"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

var (
	red         = color.RGBA{R: 255, A: 255}
	green       = color.RGBA{G: 255, A: 255}
	blue        = color.RGBA{B: 255, A: 255}
	transparent = color.RGBA{}
)

func testLogger(t *testing.T) *zap.SugaredLogger {
	return zaptest.NewLogger(t).Sugar()
}

type staticBitmap struct {
	img image.Image
}

func (b staticBitmap) Bitmap() (image.Image, bool) {
	return b.img, b.img != nil
}

// surfaceRecorder keeps every surface a compositor allocates.
type surfaceRecorder struct {
	surfaces []*render.RasterSurface
}

func (r *surfaceRecorder) factory(d domain.Dimension) ports.Surface {
	s := render.NewRasterSurface(d)
	r.surfaces = append(r.surfaces, s)
	return s
}

// stickyScheduler keeps calling a task after it was cancelled, like a
// display callback that was already queued.
type stickyScheduler struct {
	task func(time.Time)
}

func (s *stickyScheduler) Schedule(task func(time.Time)) ports.TaskHandle {
	s.task = task
	return noopHandle{}
}

type noopHandle struct{}

func (noopHandle) Cancel() {}

type compositorFixture struct {
	sched    *scheduler.ManualScheduler
	surfaces *surfaceRecorder
	position *PositionController
	zoom     *ZoomController
	metrics  *MetricsService
	c        *Compositor
}

func newCompositorFixture(t *testing.T, layout domain.Layout, dim domain.Dimension, bitmap image.Image, scale float64) *compositorFixture {
	f := &compositorFixture{
		sched:    scheduler.NewManualScheduler(),
		surfaces: &surfaceRecorder{},
		position: NewPositionController(0),
		zoom:     NewZoomController(ZoomDefaults{Initial: scale, Delta: 0.1}, 0),
		metrics:  NewMetricsService(),
	}
	f.c = NewCompositor(
		CompositorConfig{Layout: layout, Dimension: dim},
		f.surfaces.factory,
		f.sched,
		staticBitmap{img: bitmap},
		f.position,
		f.zoom,
		f.metrics,
		testLogger(t),
	)
	return f
}

func (f *compositorFixture) base() *render.RasterSurface {
	return f.surfaces.surfaces[0]
}

func (f *compositorFixture) tick() {
	f.sched.Tick(16 * time.Millisecond)
}

func solid(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newManual() *scheduler.ManualScheduler {
	return scheduler.NewManualScheduler()
}
