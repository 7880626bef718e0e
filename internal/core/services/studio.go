package services

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/tracing"

	"go.uber.org/zap"
)

const cameraUnavailableMessage = "Camera is not available. Check that a camera is connected and access is allowed."

type StudioConfig struct {
	Layout         domain.Layout
	Sizer          SizerConfig
	AspectRatio    float64
	MoveDelta      float64
	MinScale       float64
	DefaultFacing  domain.FacingMode
	DefaultOverlay string
	CaptureLayout  string
	Recording      RecordingConfig
}

type StudioDeps struct {
	Devices    ports.MediaDevices
	Probe      ports.CapabilityProbe
	Loader     ports.ImageLoader
	Catalog    domain.OverlayCatalog
	NewSurface ports.SurfaceFactory
	Scheduler  ports.Scheduler
	NewEncoder ports.EncoderFactory
	Sink       ports.ArtifactSink
	Metrics    ports.MetricsRecorder
	Logger     *zap.SugaredLogger
}

// Studio is one camera overlay session: it owns the camera stream, the render
// loop and the exporters, and applies operator commands to them.
type Studio struct {
	cfg  StudioConfig
	deps StudioDeps

	source   *StreamSource
	overlay  *OverlayAsset
	position *PositionController
	zoom     *ZoomController
	sizer    *ViewportSizer

	mu         sync.Mutex
	open       bool
	ctx        context.Context
	cancel     context.CancelFunc
	facing     domain.FacingMode
	container  domain.Bounds
	handle     *StreamHandle
	compositor *Compositor
	capture    *CaptureExporter
	recording  *RecordingSession
	message    string
}

func NewStudio(cfg StudioConfig, deps StudioDeps) *Studio {
	if !cfg.Layout.Valid() {
		cfg.Layout = domain.LayoutSingle
	}
	if !cfg.DefaultFacing.Valid() {
		cfg.DefaultFacing = domain.FacingUser
	}
	if deps.Metrics == nil {
		deps.Metrics = NopMetrics{}
	}
	return &Studio{
		cfg:      cfg,
		deps:     deps,
		source:   NewStreamSource(deps.Devices, deps.Probe, deps.Metrics, deps.Logger),
		overlay:  NewOverlayAsset(deps.Catalog, deps.Loader, deps.Logger),
		position: NewPositionController(cfg.MoveDelta),
		zoom:     NewZoomController(ZoomDefaultsFor(cfg.Sizer.IdealWidth, cfg.Layout), cfg.MinScale),
		sizer:    NewViewportSizer(cfg.Sizer),
		facing:   cfg.DefaultFacing,
	}
}

// Open sizes the surface for the container, acquires the camera and starts
// the render loop. A missing camera leaves the session open with only the
// overlay drawn and returns domain.ErrMediaUnavailable.
func (s *Studio) Open(ctx context.Context, req domain.OpenRequest) (domain.StudioState, error) {
	ctx, span := tracing.TraceStudioOperation(ctx, "open", "")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		s.closeLocked(ctx)
	}

	facing := req.FacingMode
	if !facing.Valid() {
		facing = s.cfg.DefaultFacing
	}
	s.facing = facing
	s.container = req.Container
	s.message = ""
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	caps, _, err := s.source.Capabilities(ctx)
	if err != nil {
		s.deps.Logger.Warnw("camera capability probe failed", "error", err)
	}
	dim := s.sizer.ComputeDimension(req.Container, caps)

	s.position.Reset()
	viewportWidth := req.Container.Width
	if viewportWidth <= 0 {
		viewportWidth = dim.Width
	}
	s.zoom.Reconfigure(ZoomDefaultsFor(viewportWidth, s.cfg.Layout))

	s.compositor = NewCompositor(
		CompositorConfig{Layout: s.cfg.Layout, Dimension: dim},
		s.deps.NewSurface,
		s.deps.Scheduler,
		s.overlay,
		s.position,
		s.zoom,
		s.deps.Metrics,
		s.deps.Logger,
	)
	s.capture = NewCaptureExporter(s.compositor, s.deps.Sink, s.cfg.CaptureLayout, s.deps.Metrics, s.deps.Logger)
	s.recording = NewRecordingSession(s.cfg.Recording, s.compositor, s.deps.Devices, s.deps.NewEncoder, s.deps.Sink, s.deps.Metrics, s.deps.Logger)
	s.open = true

	// A load cut short by a previous Close left the key without a bitmap.
	if !s.overlay.IsReady() {
		key := s.overlay.Key()
		if key == "" {
			key = s.cfg.DefaultOverlay
		}
		if key != "" {
			s.overlay.Select(s.ctx, key)
		}
	}

	acquireErr := s.acquireLocked(ctx, facing)
	s.compositor.Start()

	s.deps.Logger.Infow("studio opened",
		"layout", s.cfg.Layout,
		"container", req.Container,
		"dimension", s.compositor.Dimension(),
		"facing_mode", facing,
	)
	if acquireErr != nil {
		tracing.RecordError(ctx, acquireErr)
	}
	return s.stateLocked(), acquireErr
}

// Close stops recording, saving what was recorded, stops the loop and
// releases the camera.
func (s *Studio) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil
	}
	return s.closeLocked(ctx)
}

func (s *Studio) closeLocked(ctx context.Context) error {
	err := s.recording.Close(ctx)
	s.compositor.Dispose()
	s.source.Release(s.handle)
	s.handle = nil
	s.cancel()
	s.open = false
	s.deps.Logger.Infow("studio closed")
	return err
}

// ToggleFacing switches between the front and back camera. The old stream is
// released before the new one is requested.
func (s *Studio) ToggleFacing(ctx context.Context) (domain.StudioState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return s.stateLocked(), domain.ErrNotOpen
	}

	next := s.facing.Toggle()
	ctx, span := tracing.TraceStudioOperation(ctx, "toggle_facing", streamIDOf(s.handle))
	defer span.End()

	err := s.acquireLocked(ctx, next)
	if err != nil {
		tracing.RecordError(ctx, err)
	}
	return s.stateLocked(), err
}

func (s *Studio) acquireLocked(ctx context.Context, facing domain.FacingMode) error {
	s.compositor.SetStream(nil)
	s.handle = nil

	handle, err := s.source.Acquire(ctx, StreamRequest{
		FacingMode:    facing,
		DesiredHeight: s.sizer.IdealHeight(),
		AspectRatio:   s.cfg.AspectRatio,
		Portrait:      s.sizer.Orientation(s.container),
	})
	if err != nil {
		if errors.Is(err, domain.ErrMediaUnavailable) {
			s.message = cameraUnavailableMessage
		}
		return err
	}

	s.handle = handle
	s.facing = facing
	s.message = ""

	dim, changed := s.sizer.AdjustToTrack(s.compositor.Dimension(), handle.Settings())
	if changed {
		s.compositor.SetDimension(dim)
	}
	s.compositor.SetStream(handle)
	return nil
}

func (s *Studio) Move(dir domain.Direction) (domain.Position, error) {
	if !dir.Valid() {
		return domain.Position{}, fmt.Errorf("invalid direction %q", dir)
	}
	if !s.isOpen() {
		return s.position.Position(), domain.ErrNotOpen
	}
	return s.position.Move(dir), nil
}

func (s *Studio) ZoomIn() (float64, error) {
	if !s.isOpen() {
		return s.zoom.Scale(), domain.ErrNotOpen
	}
	return s.zoom.ZoomIn(), nil
}

func (s *Studio) ZoomOut() (float64, error) {
	if !s.isOpen() {
		return s.zoom.Scale(), domain.ErrNotOpen
	}
	return s.zoom.ZoomOut(), nil
}

// SelectOverlay swaps the overlay image and waits for it to load, or for ctx
// to end. The load itself keeps going after ctx ends.
func (s *Studio) SelectOverlay(ctx context.Context, key string) error {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return domain.ErrNotOpen
	}
	loadCtx := s.ctx
	s.mu.Unlock()

	ctx, span := tracing.TraceStudioOperation(ctx, "select_overlay", "")
	defer span.End()
	tracing.AddSpanAttributes(ctx, tracing.OverlayKey.String(key))

	select {
	case err := <-s.overlay.Select(loadCtx, key):
		if err != nil {
			tracing.RecordError(ctx, err)
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Studio) Capture(ctx context.Context) (*domain.Artifact, error) {
	s.mu.Lock()
	if !s.open {
		s.mu.Unlock()
		return nil, domain.ErrNotOpen
	}
	capture, streamID := s.capture, streamIDOf(s.handle)
	s.mu.Unlock()

	ctx, span := tracing.TraceStudioOperation(ctx, "capture", streamID)
	defer span.End()

	artifact, err := capture.CaptureStill(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	tracing.AddSpanAttributes(ctx, tracing.ArtifactIDKey.String(string(artifact.ID)))
	return artifact, nil
}

func (s *Studio) StartRecording(ctx context.Context) error {
	recording, err := s.recordingSession()
	if err != nil {
		return err
	}
	ctx, span := tracing.TraceStudioOperation(ctx, "start_recording", "")
	defer span.End()
	if err := recording.Start(ctx); err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	return nil
}

func (s *Studio) StopRecording(ctx context.Context) (*domain.Artifact, error) {
	recording, err := s.recordingSession()
	if err != nil {
		return nil, err
	}
	ctx, span := tracing.TraceStudioOperation(ctx, "stop_recording", "")
	defer span.End()
	artifact, err := recording.Stop(ctx)
	if err != nil {
		tracing.RecordError(ctx, err)
		return nil, err
	}
	if artifact != nil {
		tracing.AddSpanAttributes(ctx,
			tracing.ArtifactIDKey.String(string(artifact.ID)),
			tracing.MimeTypeKey.String(artifact.MimeType),
		)
	}
	return artifact, nil
}

// ToggleRecording returns the saved artifact when it stopped a recording.
func (s *Studio) ToggleRecording(ctx context.Context) (*domain.Artifact, error) {
	recording, err := s.recordingSession()
	if err != nil {
		return nil, err
	}
	return recording.Toggle(ctx)
}

func (s *Studio) recordingSession() (*RecordingSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return nil, domain.ErrNotOpen
	}
	return s.recording, nil
}

func (s *Studio) State() domain.StudioState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Studio) stateLocked() domain.StudioState {
	state := domain.StudioState{
		Open:       s.open,
		Layout:     s.cfg.Layout,
		FacingMode: s.facing,
		Overlay:    s.overlay.Key(),
		OverlayOK:  s.overlay.IsReady(),
		Position:   s.position.Position(),
		Scale:      s.zoom.Scale(),
		Recording:  domain.RecordingStats{State: domain.RecordingIdle},
		Message:    s.message,
	}
	if s.handle != nil {
		info := s.handle.Info()
		state.Stream = &info
	}
	if s.compositor != nil {
		state.Dimension = s.compositor.Dimension()
		state.Compositor = s.compositor.Stats()
	}
	if s.recording != nil {
		state.Recording = s.recording.Stats()
	}
	return state
}

// Preview returns the current composited frame.
func (s *Studio) Preview() (*image.RGBA, error) {
	s.mu.Lock()
	compositor := s.compositor
	open := s.open
	s.mu.Unlock()
	if !open {
		return nil, domain.ErrNotOpen
	}
	return compositor.Flatten()
}

func (s *Studio) Overlays() []string {
	return s.overlay.Catalog().Keys()
}

func (s *Studio) isOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

func streamIDOf(h *StreamHandle) string {
	if h == nil {
		return ""
	}
	return string(h.ID())
}
