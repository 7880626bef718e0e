package services

import (
	"context"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/tracing"

	"go.uber.org/zap"
)

const scanSubscriberBuffer = 16

type ScannerConfig struct {
	IdealHeight int
	AspectRatio float64
	Hints       domain.DecodeHints
	// DefaultFacing is used when Start is given no facing mode. Scanning
	// defaults to the back camera.
	DefaultFacing domain.FacingMode
}

type ScannerDeps struct {
	Devices   ports.MediaDevices
	Probe     ports.CapabilityProbe
	Decoder   ports.Decoder
	Scheduler ports.Scheduler
	Metrics   ports.MetricsRecorder
	Logger    *zap.SugaredLogger
}

// Scanner owns a camera and a scan session and fans decode events out to
// subscribers. Events are not persisted; a slow subscriber misses events.
type Scanner struct {
	cfg     ScannerConfig
	source  *StreamSource
	session *BarcodeScanSession
	logger  *zap.SugaredLogger

	mu     sync.Mutex
	subs   map[int]chan domain.ScanEvent
	nextID int
	last   *domain.ScanEvent
}

func NewScanner(cfg ScannerConfig, deps ScannerDeps) *Scanner {
	if !cfg.DefaultFacing.Valid() {
		cfg.DefaultFacing = domain.FacingEnvironment
	}
	source := NewStreamSource(deps.Devices, deps.Probe, deps.Metrics, deps.Logger)
	return &Scanner{
		cfg:     cfg,
		source:  source,
		session: NewBarcodeScanSession(deps.Decoder, deps.Scheduler, source, cfg.Hints, deps.Metrics, deps.Logger),
		logger:  deps.Logger,
		subs:    make(map[int]chan domain.ScanEvent),
	}
}

// Start acquires the camera facing the given way and begins scanning. A
// running scan is stopped first.
func (s *Scanner) Start(ctx context.Context, facing domain.FacingMode) error {
	s.session.Stop()

	if !facing.Valid() {
		facing = s.cfg.DefaultFacing
	}
	ctx, span := tracing.TraceScanOperation(ctx, "start", "")
	defer span.End()

	err := s.session.StartWithConstraints(ctx, StreamRequest{
		FacingMode:    facing,
		DesiredHeight: s.cfg.IdealHeight,
		AspectRatio:   s.cfg.AspectRatio,
	}, s.publish)
	if err != nil {
		tracing.RecordError(ctx, err)
		return err
	}
	tracing.AddSpanAttributes(ctx, tracing.SessionIDKey.String(s.session.ID()))
	return nil
}

func (s *Scanner) Stop() {
	s.session.Stop()
}

func (s *Scanner) Running() bool {
	return s.session.Running()
}

// Stream describes the camera being scanned, or nil when stopped.
func (s *Scanner) Stream() *domain.StreamInfo {
	h := s.session.Handle()
	if h == nil {
		return nil
	}
	info := h.Info()
	return &info
}

// Subscribe registers for scan events. The returned function unsubscribes
// and closes the channel.
func (s *Scanner) Subscribe() (<-chan domain.ScanEvent, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan domain.ScanEvent, scanSubscriberBuffer)
	s.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.subs, id)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Last returns the most recent event, or nil.
func (s *Scanner) Last() *domain.ScanEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil
	}
	event := *s.last
	return &event
}

func (s *Scanner) publish(event domain.ScanEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &event
	for id, ch := range s.subs {
		select {
		case ch <- event:
		default:
			s.logger.Debugw("scan subscriber lagging, event dropped", "subscriber", id)
		}
	}
}
