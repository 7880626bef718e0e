package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"go.uber.org/zap"
)

// StreamRequest describes the camera a session wants.
type StreamRequest struct {
	FacingMode    domain.FacingMode
	DesiredHeight int
	AspectRatio   float64
	// Portrait inverts the aspect ratio: camera ratios are defined against the
	// landscape sensor orientation.
	Portrait bool
	Audio    bool
}

// Constraints converts the request into device constraints.
func (r StreamRequest) Constraints() domain.Constraints {
	ratio := r.AspectRatio
	if r.Portrait && ratio > 0 {
		ratio = 1 / ratio
	}
	return domain.Constraints{
		Video:       true,
		Audio:       r.Audio,
		FacingMode:  r.FacingMode,
		IdealHeight: r.DesiredHeight,
		AspectRatio: ratio,
	}
}

// StreamHandle owns one acquired stream until it is released.
type StreamHandle struct {
	stream       ports.Stream
	video        ports.VideoTrack
	info         domain.StreamInfo
	preCorrected bool
	released     atomic.Bool
}

func (h *StreamHandle) ID() domain.StreamID            { return h.info.ID }
func (h *StreamHandle) Stream() ports.Stream           { return h.stream }
func (h *StreamHandle) Video() ports.VideoTrack        { return h.video }
func (h *StreamHandle) Settings() domain.TrackSettings { return h.video.Settings() }

// PreCorrected reports whether frames already carry display-corrected
// coordinates, in which case the compositor must not re-center them.
func (h *StreamHandle) PreCorrected() bool { return h.preCorrected }

// Ready is closed once the first video frame is available.
func (h *StreamHandle) Ready() <-chan struct{} { return h.video.Ready() }

func (h *StreamHandle) Released() bool { return h.released.Load() }

func (h *StreamHandle) Info() domain.StreamInfo {
	info := h.info
	info.Released = h.Released()
	return info
}

// release stops every track once. It reports whether this call did the work.
func (h *StreamHandle) release() bool {
	if !h.released.CompareAndSwap(false, true) {
		return false
	}
	for _, track := range h.stream.Tracks() {
		track.Stop()
	}
	return true
}

// DefaultCapabilityProbe asks the track itself.
type DefaultCapabilityProbe struct{}

func (DefaultCapabilityProbe) PreCorrectedCoordinates(track ports.VideoTrack) bool {
	if r, ok := track.(ports.PreCorrectedReporter); ok {
		return r.PreCorrectedCoordinates()
	}
	return false
}

// StreamSource keeps at most one stream active. Acquiring a new stream
// releases the previous one first so the camera is never held twice.
type StreamSource struct {
	devices ports.MediaDevices
	probe   ports.CapabilityProbe
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	current *StreamHandle
}

func NewStreamSource(devices ports.MediaDevices, probe ports.CapabilityProbe, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *StreamSource {
	if probe == nil {
		probe = DefaultCapabilityProbe{}
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &StreamSource{
		devices: devices,
		probe:   probe,
		metrics: metrics,
		logger:  logger,
	}
}

// Acquire requests a camera stream. Any failure is reported as
// domain.ErrMediaUnavailable; nothing is retried.
func (s *StreamSource) Acquire(ctx context.Context, req StreamRequest) (*StreamHandle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.current != nil {
		s.releaseLocked(s.current)
	}

	stream, err := s.devices.GetUserMedia(ctx, req.Constraints())
	if err != nil {
		s.metrics.RecordStreamAcquired(req.FacingMode, err)
		s.logger.Warnw("camera acquisition failed", "facing_mode", req.FacingMode, "error", err)
		return nil, unavailable(err)
	}

	videos := stream.VideoTracks()
	if len(videos) == 0 {
		for _, track := range stream.Tracks() {
			track.Stop()
		}
		err := fmt.Errorf("%w: stream has no video track", domain.ErrMediaUnavailable)
		s.metrics.RecordStreamAcquired(req.FacingMode, err)
		return nil, err
	}

	video := videos[0]
	settings := video.Settings()
	handle := &StreamHandle{
		stream:       stream,
		video:        video,
		preCorrected: s.probe.PreCorrectedCoordinates(video),
		info: domain.StreamInfo{
			ID:         stream.ID(),
			FacingMode: req.FacingMode,
			Width:      settings.Width,
			Height:     settings.Height,
			AcquiredAt: time.Now(),
		},
	}
	handle.info.PreCorrected = handle.preCorrected
	s.current = handle

	s.metrics.RecordStreamAcquired(req.FacingMode, nil)
	s.logger.Infow("camera acquired",
		"stream_id", handle.ID(),
		"facing_mode", req.FacingMode,
		"width", settings.Width,
		"height", settings.Height,
		"pre_corrected", handle.preCorrected,
	)
	return handle, nil
}

// Release stops every track of h. It is safe to call more than once and
// with a nil handle; other handles are never touched.
func (s *StreamSource) Release(h *StreamHandle) {
	if h == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseLocked(h)
}

func (s *StreamSource) releaseLocked(h *StreamHandle) {
	if h.release() {
		s.metrics.RecordStreamReleased()
		s.logger.Debugw("camera released", "stream_id", h.ID())
	}
	if s.current == h {
		s.current = nil
	}
}

// Current returns the active handle, or nil.
func (s *StreamSource) Current() *StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Capabilities opens a throwaway stream to read the device's maximum resolution and
// default settings, then releases it.
func (s *StreamSource) Capabilities(ctx context.Context) (domain.Capabilities, domain.TrackSettings, error) {
	stream, err := s.devices.GetUserMedia(ctx, domain.Constraints{Video: true})
	if err != nil {
		return domain.Capabilities{}, domain.TrackSettings{}, unavailable(err)
	}
	defer func() {
		for _, track := range stream.Tracks() {
			track.Stop()
		}
	}()

	videos := stream.VideoTracks()
	if len(videos) == 0 {
		return domain.Capabilities{}, domain.TrackSettings{}, fmt.Errorf("%w: stream has no video track", domain.ErrMediaUnavailable)
	}
	settings := videos[0].Settings()
	if settings.AspectRatio == 0 {
		settings.AspectRatio = 1
	}
	return videos[0].Capabilities(), settings, nil
}

func unavailable(err error) error {
	if errors.Is(err, domain.ErrMediaUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrMediaUnavailable, err)
}
