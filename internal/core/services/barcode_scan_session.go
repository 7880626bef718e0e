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

	"go.uber.org/zap"
)

var ErrScanRunning = errors.New("scan session already running")

// BarcodeScanSession runs one decode attempt per scheduler tick against the
// latest frame of a stream.
type BarcodeScanSession struct {
	decoder   ports.Decoder
	scheduler ports.Scheduler
	source    *StreamSource
	hints     domain.DecodeHints
	metrics   ports.MetricsRecorder
	logger    *zap.SugaredLogger

	mu      sync.Mutex
	id      string
	ctx     context.Context
	cancel  context.CancelFunc
	running bool
	task    ports.TaskHandle
	handle  *StreamHandle
	owned   bool
	onEvent func(domain.ScanEvent)
}

func NewBarcodeScanSession(
	decoder ports.Decoder,
	scheduler ports.Scheduler,
	source *StreamSource,
	hints domain.DecodeHints,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *BarcodeScanSession {
	if len(hints.PossibleFormats) == 0 {
		hints.PossibleFormats = domain.AllBarcodeFormats()
	}
	if metrics == nil {
		metrics = NopMetrics{}
	}
	return &BarcodeScanSession{
		decoder:   decoder,
		scheduler: scheduler,
		source:    source,
		hints:     hints,
		metrics:   metrics,
		logger:    logger,
	}
}

// StartWithHandle scans frames of a stream owned by the caller.
func (s *BarcodeScanSession) StartWithHandle(ctx context.Context, handle *StreamHandle, onEvent func(domain.ScanEvent)) error {
	if handle == nil {
		return fmt.Errorf("%w: no stream", domain.ErrMediaUnavailable)
	}
	return s.start(ctx, handle, false, onEvent)
}

// StartWithConstraints acquires a stream for the session. The stream is
// released when the session stops.
func (s *BarcodeScanSession) StartWithConstraints(ctx context.Context, req StreamRequest, onEvent func(domain.ScanEvent)) error {
	if s.Running() {
		return ErrScanRunning
	}
	if s.source == nil {
		return fmt.Errorf("%w: no stream source", domain.ErrMediaUnavailable)
	}
	handle, err := s.source.Acquire(ctx, req)
	if err != nil {
		return err
	}
	if err := s.start(ctx, handle, true, onEvent); err != nil {
		s.source.Release(handle)
		return err
	}
	return nil
}

func (s *BarcodeScanSession) start(ctx context.Context, handle *StreamHandle, owned bool, onEvent func(domain.ScanEvent)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return ErrScanRunning
	}

	s.id = utils.GenerateSessionID()
	s.ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))
	s.handle = handle
	s.owned = owned
	s.onEvent = onEvent
	s.running = true
	s.task = s.scheduler.Schedule(s.tick)

	s.logger.Infow("scan session started", "session_id", s.id, "stream_id", handle.ID(), "formats", s.hints.PossibleFormats)
	return nil
}

// Stop ends the session. It is safe to call repeatedly.
func (s *BarcodeScanSession) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	task, cancel := s.task, s.cancel
	handle, owned := s.handle, s.owned
	s.task, s.handle, s.onEvent = nil, nil, nil
	s.mu.Unlock()

	cancel()
	task.Cancel()
	if owned && s.source != nil {
		s.source.Release(handle)
	}
	s.logger.Infow("scan session stopped", "session_id", s.ID())
}

func (s *BarcodeScanSession) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *BarcodeScanSession) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}

// Handle returns the stream being scanned, or nil when stopped.
func (s *BarcodeScanSession) Handle() *StreamHandle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

func (s *BarcodeScanSession) tick(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.handle.Released() {
		return
	}
	frame := s.handle.Video().LatestFrame()
	if frame == nil {
		return
	}

	result, err := s.decoder.Decode(s.ctx, frame, s.hints)
	if err != nil {
		s.metrics.RecordScanAttempt(nil)
		if !errors.Is(err, domain.ErrDecodeMiss) && !errors.Is(err, context.Canceled) {
			s.logger.Debugw("decode failed", "session_id", s.id, "error", err)
		}
		return
	}
	s.metrics.RecordScanAttempt(result)

	event := domain.ScanEvent{SessionID: s.id, Result: *result, At: now}
	s.logger.Debugw("barcode decoded", "session_id", s.id, "format", result.Format, "text", result.Text)
	if s.onEvent != nil {
		s.onEvent(event)
	}
}
