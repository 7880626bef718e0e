package services

import (
	"errors"
	"image"
	"image/draw"
	"math"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"go.uber.org/zap"
)

const (
	layerVideo   = "video"
	layerOverlay = "overlay"
)

// BitmapSource supplies the overlay image, when one is loaded.
type BitmapSource interface {
	Bitmap() (image.Image, bool)
}

// Compositor draws the overlay and the live video into the render surface on
// every scheduler tick. Ticks and commands are serialized by mu.
type Compositor struct {
	layout   domain.Layout
	surface  ports.Surface
	overlays ports.Surface // split layout only

	scheduler ports.Scheduler
	bitmaps   BitmapSource
	position  *PositionController
	zoom      *ZoomController
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	mu        sync.Mutex
	running   bool
	task      ports.TaskHandle
	stream    *StreamHandle
	dimension domain.Dimension
	drawn     domain.Dimension
	stats     domain.CompositorStats
}

type CompositorConfig struct {
	Layout    domain.Layout
	Dimension domain.Dimension
}

func NewCompositor(
	cfg CompositorConfig,
	newSurface ports.SurfaceFactory,
	scheduler ports.Scheduler,
	bitmaps BitmapSource,
	position *PositionController,
	zoom *ZoomController,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *Compositor {
	if !cfg.Layout.Valid() {
		cfg.Layout = domain.LayoutSingle
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	c := &Compositor{
		layout:    cfg.Layout,
		surface:   newSurface(cfg.Dimension),
		scheduler: scheduler,
		bitmaps:   bitmaps,
		position:  position,
		zoom:      zoom,
		metrics:   metrics,
		logger:    logger,
		dimension: cfg.Dimension,
		drawn:     cfg.Dimension,
	}
	if cfg.Layout == domain.LayoutSplit {
		c.overlays = newSurface(cfg.Dimension)
	}
	return c
}

// OverlayRect is where a bitmap of the given bounds lands for a position and
// scale. A non-positive scale yields an empty rectangle.
func OverlayRect(pos domain.Position, scale float64, bitmap image.Rectangle) image.Rectangle {
	if scale <= 0 {
		return image.Rectangle{}
	}
	x := int(math.Round(pos.X))
	y := int(math.Round(pos.Y))
	w := int(math.Round(float64(bitmap.Dx()) * scale))
	h := int(math.Round(float64(bitmap.Dy()) * scale))
	return image.Rect(x, y, x+w, y+h)
}

// VideoOffset centers a track on the surface along each axis where their
// sizes differ.
func VideoOffset(track, surface domain.Dimension) image.Point {
	var p image.Point
	if track.Width != surface.Width {
		p.X = -(track.Width - surface.Width) / 2
	}
	if track.Height != surface.Height {
		p.Y = -(track.Height - surface.Height) / 2
	}
	return p
}

// Start registers the repeating draw task. Calling Start on a running
// compositor does nothing.
func (c *Compositor) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return
	}
	c.running = true
	c.stats.Running = true
	c.task = c.scheduler.Schedule(c.tick)
	c.logger.Debugw("compositor started", "layout", c.layout, "dimension", c.dimension)
}

// Stop cancels the draw task. A tick already in flight finishes before Stop
// returns and nothing is drawn afterwards.
func (c *Compositor) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	c.stats.Running = false
	task := c.task
	c.task = nil
	c.mu.Unlock()

	if task != nil {
		task.Cancel()
	}
	c.logger.Debugw("compositor stopped", "ticks", c.Stats().Ticks)
}

func (c *Compositor) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Dispose stops the loop and releases the surfaces.
func (c *Compositor) Dispose() {
	c.Stop()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface.Dispose()
	if c.overlays != nil {
		c.overlays.Dispose()
	}
}

// RedrawNow runs one tick synchronously. It does nothing when stopped.
func (c *Compositor) RedrawNow() {
	c.tick(time.Now())
}

// SetStream swaps the video source. A nil handle leaves only the overlay.
func (c *Compositor) SetStream(h *StreamHandle) {
	c.mu.Lock()
	c.stream = h
	c.mu.Unlock()
}

// SetDimension changes the surface size; the next tick clears what was drawn
// at the old size and resizes.
func (c *Compositor) SetDimension(d domain.Dimension) {
	c.mu.Lock()
	c.dimension = d
	c.mu.Unlock()
}

func (c *Compositor) Dimension() domain.Dimension {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dimension
}

func (c *Compositor) Layout() domain.Layout {
	return c.layout
}

func (c *Compositor) Stats() domain.CompositorStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// Flatten returns the composed image: video behind, overlay in front.
func (c *Compositor) Flatten() (*image.RGBA, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flattenLocked()
}

// Clear wipes the surfaces and, when running, draws a fresh frame right away.
func (c *Compositor) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.clearLocked(c.drawn.Rect()); err != nil {
		return err
	}
	if c.running {
		c.drawLocked(time.Now())
	}
	return nil
}

func (c *Compositor) flattenLocked() (*image.RGBA, error) {
	base, err := c.surface.Snapshot()
	if err != nil {
		return nil, err
	}
	if c.overlays == nil {
		return base, nil
	}
	front, err := c.overlays.Snapshot()
	if err != nil {
		return nil, err
	}
	draw.Draw(base, base.Bounds(), front, front.Bounds().Min, draw.Over)
	return base, nil
}

func (c *Compositor) tick(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	c.drawLocked(now)
}

func (c *Compositor) drawLocked(now time.Time) {
	if c.surface.Disposed() {
		return
	}
	started := time.Now()

	if c.dimension != c.drawn {
		if err := c.clearLocked(c.drawn.Rect()); err != nil {
			return
		}
		if err := c.resizeLocked(c.dimension); err != nil {
			return
		}
		c.drawn = c.dimension
	}
	if err := c.clearLocked(c.dimension.Rect()); err != nil {
		return
	}

	switch c.layout {
	case domain.LayoutSplit:
		if c.drawVideoLocked(c.surface, domain.CompositeOver) {
			c.drawOverlayLocked(c.overlays)
		}
	default:
		if c.drawOverlayLocked(c.surface) {
			c.drawVideoLocked(c.surface, domain.CompositeBehind)
		}
	}

	elapsed := time.Since(started)
	c.stats.Ticks++
	c.stats.LastTick = now
	c.stats.LastTickDuration = elapsed
	c.metrics.RecordTick(elapsed)
}

func (c *Compositor) clearLocked(r image.Rectangle) error {
	if err := c.surface.Clear(r); err != nil {
		return c.drawFailed("clear", err)
	}
	if c.overlays != nil {
		if err := c.overlays.Clear(r); err != nil {
			return c.drawFailed("clear", err)
		}
	}
	return nil
}

func (c *Compositor) resizeLocked(d domain.Dimension) error {
	if err := c.surface.Resize(d); err != nil {
		return c.drawFailed("resize", err)
	}
	if c.overlays != nil {
		if err := c.overlays.Resize(d); err != nil {
			return c.drawFailed("resize", err)
		}
	}
	return nil
}

// drawVideoLocked reports false only when the surface is gone and the tick
// must end.
func (c *Compositor) drawVideoLocked(dst ports.Surface, op domain.CompositeOp) bool {
	if c.stream == nil || c.stream.Released() {
		return true
	}
	frame := c.stream.Video().LatestFrame()
	if frame == nil {
		return true
	}

	b := frame.Bounds()
	track := domain.Dimension{Width: b.Dx(), Height: b.Dy()}
	var offset image.Point
	if !c.stream.PreCorrected() {
		offset = VideoOffset(track, c.dimension)
	}
	rect := image.Rect(offset.X, offset.Y, offset.X+track.Width, offset.Y+track.Height)

	if err := dst.DrawImage(frame, rect, op); err != nil {
		return c.layerFailed(layerVideo, err)
	}
	c.stats.VideoDraws++
	return true
}

func (c *Compositor) drawOverlayLocked(dst ports.Surface) bool {
	if c.bitmaps == nil {
		return true
	}
	bitmap, ok := c.bitmaps.Bitmap()
	if !ok {
		return true
	}
	rect := OverlayRect(c.position.Position(), c.zoom.Scale(), bitmap.Bounds())
	if rect.Empty() {
		return true
	}

	if err := dst.DrawImage(bitmap, rect, domain.CompositeOver); err != nil {
		return c.layerFailed(layerOverlay, err)
	}
	c.stats.OverlayDraws++
	return true
}

func (c *Compositor) layerFailed(layer string, err error) bool {
	if errors.Is(err, domain.ErrSurfaceGone) {
		return false
	}
	c.stats.SkippedLayers++
	c.metrics.RecordLayerSkipped(layer)
	c.logger.Debugw("layer skipped", "layer", layer, "error", err)
	return true
}

func (c *Compositor) drawFailed(step string, err error) error {
	if !errors.Is(err, domain.ErrSurfaceGone) {
		c.logger.Warnw("surface operation failed", "step", step, "error", err)
	}
	return err
}
