package ports

import (
	"context"
	"image"
	"time"

	"overlaycam/internal/core/domain"
)

// Surface is a 2D drawing target. Every method returns domain.ErrSurfaceGone
// once the surface has been disposed.
type Surface interface {
	Size() domain.Dimension
	Resize(d domain.Dimension) error
	Clear(r image.Rectangle) error
	// DrawImage draws src scaled into dst using op.
	DrawImage(src image.Image, dst image.Rectangle, op domain.CompositeOp) error
	Snapshot() (*image.RGBA, error)
	Dispose()
	Disposed() bool
}

// Scheduler runs repeating tasks on display ticks. A task is never invoked
// concurrently with itself, and Schedule never runs it synchronously.
type Scheduler interface {
	Schedule(task func(now time.Time)) TaskHandle
}

// TaskHandle cancels a scheduled task. Cancel is idempotent.
type TaskHandle interface {
	Cancel()
}

type ImageLoader interface {
	Load(ctx context.Context, uri string) (image.Image, error)
}

type SurfaceFactory func(d domain.Dimension) Surface
