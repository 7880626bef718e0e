package services

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"go.uber.org/zap"
)

const DefaultCaptureLayout = "2006-01-02"

// SurfaceReader is the part of the compositor the exporters need.
type SurfaceReader interface {
	Flatten() (*image.RGBA, error)
	Clear() error
}

// CaptureExporter turns the composited surface into a PNG still.
type CaptureExporter struct {
	surface    SurfaceReader
	sink       ports.ArtifactSink
	nameLayout string
	now        func() time.Time
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger
}

func NewCaptureExporter(surface SurfaceReader, sink ports.ArtifactSink, nameLayout string, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *CaptureExporter {
	if nameLayout == "" {
		nameLayout = DefaultCaptureLayout
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &CaptureExporter{
		surface:    surface,
		sink:       sink,
		nameLayout: nameLayout,
		now:        time.Now,
		metrics:    metrics,
		logger:     logger,
	}
}

// CaptureStill reads back the surface, saves it as a PNG named after the
// current date and clears the surface for the next frame.
func (e *CaptureExporter) CaptureStill(ctx context.Context) (*domain.Artifact, error) {
	frame, err := e.surface.Flatten()
	if err != nil {
		return nil, fmt.Errorf("read back surface: %w", err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, frame); err != nil {
		return nil, fmt.Errorf("encode still: %w", err)
	}

	created := e.now()
	artifact := &domain.Artifact{
		ID:        domain.ArtifactID(utils.GenerateArtifactID()),
		Kind:      domain.ArtifactStill,
		Name:      e.FileName(created),
		MimeType:  "image/png",
		Size:      buf.Len(),
		CreatedAt: created,
		Data:      buf.Bytes(),
	}
	if err := e.sink.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save still %s: %w", artifact.Name, err)
	}

	if err := e.surface.Clear(); err != nil {
		e.logger.Debugw("clear after capture failed", "error", err)
	}

	e.metrics.RecordCapture(artifact.Size)
	e.logger.Infow("still captured", "artifact_id", artifact.ID, "name", artifact.Name, "size", artifact.Size)
	return artifact, nil
}

// FileName formats t with the configured layout. Path separators are
// replaced so the name stays a single path element.
func (e *CaptureExporter) FileName(t time.Time) string {
	return utils.SanitizeFileName(t.Format(e.nameLayout)) + ".png"
}
