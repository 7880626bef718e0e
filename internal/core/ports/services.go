package ports

import (
	"context"
	"image"
	"time"

	"overlaycam/internal/core/domain"
)

type StudioService interface {
	Open(ctx context.Context, req domain.OpenRequest) (domain.StudioState, error)
	Close(ctx context.Context) error
	ToggleFacing(ctx context.Context) (domain.StudioState, error)
	Move(dir domain.Direction) (domain.Position, error)
	ZoomIn() (float64, error)
	ZoomOut() (float64, error)
	SelectOverlay(ctx context.Context, key string) error
	Capture(ctx context.Context) (*domain.Artifact, error)
	StartRecording(ctx context.Context) error
	StopRecording(ctx context.Context) (*domain.Artifact, error)
	ToggleRecording(ctx context.Context) (*domain.Artifact, error)
	State() domain.StudioState
	Preview() (*image.RGBA, error)
	Overlays() []string
}

type ScannerService interface {
	Start(ctx context.Context, facing domain.FacingMode) error
	Stop()
	Running() bool
	Stream() *domain.StreamInfo
	Subscribe() (<-chan domain.ScanEvent, func())
	Last() *domain.ScanEvent
}

// MetricsRecorder receives engine events. Implementations must be safe for
// concurrent use.
type MetricsRecorder interface {
	RecordTick(duration time.Duration)
	RecordLayerSkipped(layer string)
	RecordStreamAcquired(facing domain.FacingMode, err error)
	RecordStreamReleased()
	RecordCapture(size int)
	RecordRecordingStarted()
	RecordRecordingChunk(size int)
	RecordRecordingStopped(chunks, bytes int)
	RecordEncoderFault()
	RecordScanAttempt(result *domain.DecodeResult)
}
