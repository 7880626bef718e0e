package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

const (
	DefaultRecordingFPS       = 30
	DefaultRecordingTimeslice = 200 * time.Millisecond
	DefaultRecordingName      = "recording"
)

type RecordingConfig struct {
	FrameRate int
	Timeslice time.Duration
	Audio     bool
	// FileName is the artifact name without extension; the encoder supplies
	// the extension of its container.
	FileName string
}

func (c RecordingConfig) withDefaults() RecordingConfig {
	if c.FrameRate <= 0 {
		c.FrameRate = DefaultRecordingFPS
	}
	if c.Timeslice <= 0 {
		c.Timeslice = DefaultRecordingTimeslice
	}
	if c.FileName == "" {
		c.FileName = DefaultRecordingName
	}
	return c
}

// RecordingSession records the composited surface, optionally with a
// microphone track, into one video artifact per start/stop cycle.
type RecordingSession struct {
	cfg        RecordingConfig
	frames     FrameSource
	devices    ports.MediaDevices
	newEncoder ports.EncoderFactory
	sink       ports.ArtifactSink
	metrics    ports.MetricsRecorder
	logger     *zap.SugaredLogger

	buffer *RecordingBuffer

	mu        sync.Mutex
	state     domain.RecordingState
	attempt   uint64
	encoder   ports.Encoder
	derived   *SurfaceStream
	audio     ports.Stream
	startedAt time.Time
}

// errStartAborted is returned by a Start that lost its session to Close.
var errStartAborted = errors.New("recording closed while starting")

func NewRecordingSession(
	cfg RecordingConfig,
	frames FrameSource,
	devices ports.MediaDevices,
	newEncoder ports.EncoderFactory,
	sink ports.ArtifactSink,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *RecordingSession {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &RecordingSession{
		cfg:        cfg.withDefaults(),
		frames:     frames,
		devices:    devices,
		newEncoder: newEncoder,
		sink:       sink,
		metrics:    metrics,
		logger:     logger,
		buffer:     NewRecordingBuffer(),
		state:      domain.RecordingIdle,
	}
}

// Start begins a recording. It does nothing unless idle. The audio
// acquisition and the encoder start run without holding the session lock.
func (r *RecordingSession) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.state != domain.RecordingIdle {
		r.mu.Unlock()
		return nil
	}
	enc, err := r.encoderLocked()
	if err != nil {
		r.mu.Unlock()
		return err
	}
	r.state = domain.RecordingStarting
	r.attempt++
	attempt := r.attempt
	r.mu.Unlock()

	derived, audio := r.openStreams(ctx)

	r.buffer.Reset()
	onChunk := func(chunk media.Sample) {
		if len(chunk.Data) == 0 {
			return
		}
		r.buffer.Append(chunk)
		r.metrics.RecordRecordingChunk(len(chunk.Data))
	}
	onError := func(err error) {
		go r.fault(enc, err)
	}
	startErr := enc.Start(derived, r.cfg.Timeslice, onChunk, onError)

	r.mu.Lock()
	if startErr != nil {
		if r.encoder == enc {
			r.disposeEncoderLocked()
		}
		if r.attempt == attempt {
			r.state = domain.RecordingIdle
		}
		r.mu.Unlock()
		releaseRecordingStreams(derived, audio)
		r.buffer.Discard()
		r.metrics.RecordEncoderFault()
		return fmt.Errorf("%w: start encoder: %v", domain.ErrEncoderFault, startErr)
	}
	if r.attempt != attempt || r.state != domain.RecordingStarting {
		r.mu.Unlock()
		enc.Stop()
		releaseRecordingStreams(derived, audio)
		r.buffer.Discard()
		return errStartAborted
	}

	r.derived = derived
	r.audio = audio
	r.state = domain.RecordingActive
	r.startedAt = time.Now()
	r.mu.Unlock()

	r.metrics.RecordRecordingStarted()
	r.logger.Infow("recording started",
		"mime_type", enc.MimeType(),
		"fps", r.cfg.FrameRate,
		"timeslice", r.cfg.Timeslice,
		"audio", audio != nil,
	)
	return nil
}

// encoderLocked returns the owned encoder, constructing it on first use.
func (r *RecordingSession) encoderLocked() (ports.Encoder, error) {
	if r.encoder != nil {
		return r.encoder, nil
	}
	enc, err := r.newEncoder()
	if err != nil {
		return nil, fmt.Errorf("%w: create encoder: %v", domain.ErrEncoderFault, err)
	}
	r.encoder = enc
	r.logger.Debugw("encoder created", "mime_type", enc.MimeType())
	return enc, nil
}

// openStreams derives the surface stream and merges a microphone when audio
// is enabled. A missing microphone only drops the audio.
func (r *RecordingSession) openStreams(ctx context.Context) (*SurfaceStream, ports.Stream) {
	derived := NewSurfaceStream(r.frames, r.cfg.FrameRate)
	if !r.cfg.Audio || r.devices == nil {
		return derived, nil
	}
	stream, err := r.devices.GetUserMedia(ctx, domain.Constraints{Audio: true})
	if err != nil {
		r.logger.Warnw("recording without audio", "error", err)
		return derived, nil
	}
	for _, track := range stream.AudioTracks() {
		derived.AddTrack(track)
	}
	return derived, stream
}

// Stop finalizes the recording and saves it. When idle it returns a nil
// artifact and no error.
func (r *RecordingSession) Stop(ctx context.Context) (*domain.Artifact, error) {
	artifact, err := r.finish()
	if err != nil || artifact == nil {
		return nil, err
	}
	if err := r.sink.Save(ctx, artifact); err != nil {
		return nil, fmt.Errorf("save recording %s: %w", artifact.Name, err)
	}
	r.logger.Infow("recording saved", "artifact_id", artifact.ID, "name", artifact.Name, "size", artifact.Size)
	return artifact, nil
}

// Toggle starts when idle and stops when recording.
func (r *RecordingSession) Toggle(ctx context.Context) (*domain.Artifact, error) {
	if r.State() == domain.RecordingActive {
		return r.Stop(ctx)
	}
	return nil, r.Start(ctx)
}

// Close stops an active recording, saving it, and disposes the encoder. A
// start still in progress is abandoned.
func (r *RecordingSession) Close(ctx context.Context) error {
	_, stopErr := r.Stop(ctx)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state == domain.RecordingStarting {
		r.attempt++
		r.state = domain.RecordingIdle
	}
	return errors.Join(stopErr, r.disposeEncoderLocked())
}

func (r *RecordingSession) State() domain.RecordingState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *RecordingSession) Stats() domain.RecordingStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	stats := domain.RecordingStats{
		State:  r.state,
		Chunks: r.buffer.Len(),
		Bytes:  r.buffer.Bytes(),
	}
	if r.state == domain.RecordingActive {
		stats.StartedAt = r.startedAt
	}
	return stats
}

// Buffer exposes the chunk buffer of the current or last recording.
func (r *RecordingSession) Buffer() *RecordingBuffer {
	return r.buffer
}

func (r *RecordingSession) finish() (*domain.Artifact, error) {
	r.mu.Lock()
	if r.state != domain.RecordingActive {
		r.mu.Unlock()
		return nil, nil
	}
	r.state = domain.RecordingStopping
	enc := r.encoder
	r.mu.Unlock()

	// Stop returns after the trailing chunks were delivered.
	stopErr := enc.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	if stopErr != nil {
		r.faultLocked(stopErr)
		return nil, fmt.Errorf("%w: finalize: %v", domain.ErrEncoderFault, stopErr)
	}
	r.releaseStreamsLocked()
	r.state = domain.RecordingIdle

	var data []byte
	if muxer, ok := enc.(ports.ContainerMuxer); ok {
		muxed, err := muxer.Mux(r.buffer.Samples())
		if err != nil {
			r.buffer.Discard()
			return nil, fmt.Errorf("%w: mux: %v", domain.ErrEncoderFault, err)
		}
		data = muxed
	} else {
		data = r.buffer.Concat()
	}

	chunks, size := r.buffer.Len(), r.buffer.Bytes()
	r.metrics.RecordRecordingStopped(chunks, size)
	r.logger.Debugw("recording finalized", "chunks", chunks, "bytes", size, "duration", time.Since(r.startedAt))

	return &domain.Artifact{
		ID:        domain.ArtifactID(utils.GenerateArtifactID()),
		Kind:      domain.ArtifactRecording,
		Name:      r.cfg.FileName + enc.Extension(),
		MimeType:  enc.MimeType(),
		Size:      len(data),
		CreatedAt: time.Now(),
		Data:      data,
	}, nil
}

// fault handles an asynchronous encoder error. Errors from an encoder that
// was already replaced are ignored.
func (r *RecordingSession) fault(enc ports.Encoder, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.encoder != enc || r.state != domain.RecordingActive {
		return
	}
	r.faultLocked(err)
}

func (r *RecordingSession) faultLocked(err error) {
	r.logger.Errorw("encoder fault, recording discarded", "error", err)
	r.metrics.RecordEncoderFault()
	r.state = domain.RecordingIdle
	r.releaseStreamsLocked()
	r.buffer.Discard()
	if closeErr := r.disposeEncoderLocked(); closeErr != nil {
		r.logger.Debugw("closing faulted encoder", "error", closeErr)
	}
}

func (r *RecordingSession) releaseStreamsLocked() {
	releaseRecordingStreams(r.derived, r.audio)
	r.derived = nil
	r.audio = nil
}

func (r *RecordingSession) disposeEncoderLocked() error {
	if r.encoder == nil {
		return nil
	}
	err := r.encoder.Close()
	r.encoder = nil
	return err
}

func releaseRecordingStreams(derived *SurfaceStream, audio ports.Stream) {
	if derived != nil {
		derived.StopVideo()
	}
	if audio != nil {
		for _, track := range audio.Tracks() {
			track.Stop()
		}
	}
}
