package services

import (
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
)

// NopMetrics discards every event.
type NopMetrics struct{}

func (NopMetrics) RecordTick(time.Duration)                      {}
func (NopMetrics) RecordLayerSkipped(string)                     {}
func (NopMetrics) RecordStreamAcquired(domain.FacingMode, error) {}
func (NopMetrics) RecordStreamReleased()                         {}
func (NopMetrics) RecordCapture(int)                             {}
func (NopMetrics) RecordRecordingStarted()                       {}
func (NopMetrics) RecordRecordingChunk(int)                      {}
func (NopMetrics) RecordRecordingStopped(int, int)               {}
func (NopMetrics) RecordEncoderFault()                           {}
func (NopMetrics) RecordScanAttempt(*domain.DecodeResult)        {}

// MultiMetrics fans every event out to each recorder in order.
type MultiMetrics []ports.MetricsRecorder

func (m MultiMetrics) RecordTick(d time.Duration) {
	for _, r := range m {
		r.RecordTick(d)
	}
}

func (m MultiMetrics) RecordLayerSkipped(layer string) {
	for _, r := range m {
		r.RecordLayerSkipped(layer)
	}
}

func (m MultiMetrics) RecordStreamAcquired(facing domain.FacingMode, err error) {
	for _, r := range m {
		r.RecordStreamAcquired(facing, err)
	}
}

func (m MultiMetrics) RecordStreamReleased() {
	for _, r := range m {
		r.RecordStreamReleased()
	}
}

func (m MultiMetrics) RecordCapture(size int) {
	for _, r := range m {
		r.RecordCapture(size)
	}
}

func (m MultiMetrics) RecordRecordingStarted() {
	for _, r := range m {
		r.RecordRecordingStarted()
	}
}

func (m MultiMetrics) RecordRecordingChunk(size int) {
	for _, r := range m {
		r.RecordRecordingChunk(size)
	}
}

func (m MultiMetrics) RecordRecordingStopped(chunks, bytes int) {
	for _, r := range m {
		r.RecordRecordingStopped(chunks, bytes)
	}
}

func (m MultiMetrics) RecordEncoderFault() {
	for _, r := range m {
		r.RecordEncoderFault()
	}
}

func (m MultiMetrics) RecordScanAttempt(result *domain.DecodeResult) {
	for _, r := range m {
		r.RecordScanAttempt(result)
	}
}

// MetricsSnapshot is a copy of the counters kept by MetricsService.
type MetricsSnapshot struct {
	Ticks           int            `json:"ticks"`
	AverageTick     time.Duration  `json:"average_tick"`
	SkippedLayers   map[string]int `json:"skipped_layers"`
	StreamsAcquired int            `json:"streams_acquired"`
	StreamFailures  int            `json:"stream_failures"`
	StreamsReleased int            `json:"streams_released"`
	ActiveStreams   int            `json:"active_streams"`
	Captures        int            `json:"captures"`
	CaptureBytes    int            `json:"capture_bytes"`
	Recordings      int            `json:"recordings"`
	RecordingChunks int            `json:"recording_chunks"`
	RecordingBytes  int            `json:"recording_bytes"`
	EncoderFaults   int            `json:"encoder_faults"`
	ScanAttempts    int            `json:"scan_attempts"`
	ScanDecodes     int            `json:"scan_decodes"`
}

// MetricsService keeps engine counters in memory for the /stats endpoint.
type MetricsService struct {
	mu sync.RWMutex

	ticks     int
	tickTotal time.Duration
	skipped   map[string]int

	acquired int
	failures int
	released int

	captures     int
	captureBytes int

	recordings      int
	recordingChunks int
	recordingBytes  int
	encoderFaults   int

	scanAttempts int
	scanDecodes  int
}

func NewMetricsService() *MetricsService {
	return &MetricsService{
		skipped: make(map[string]int),
	}
}

func (m *MetricsService) RecordTick(duration time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks++
	m.tickTotal += duration
}

func (m *MetricsService) RecordLayerSkipped(layer string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.skipped[layer]++
}

func (m *MetricsService) RecordStreamAcquired(_ domain.FacingMode, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err != nil {
		m.failures++
		return
	}
	m.acquired++
}

func (m *MetricsService) RecordStreamReleased() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released++
}

func (m *MetricsService) RecordCapture(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captures++
	m.captureBytes += size
}

func (m *MetricsService) RecordRecordingStarted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordings++
}

func (m *MetricsService) RecordRecordingChunk(size int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recordingChunks++
	m.recordingBytes += size
}

func (m *MetricsService) RecordRecordingStopped(_, _ int) {}

func (m *MetricsService) RecordEncoderFault() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.encoderFaults++
}

func (m *MetricsService) RecordScanAttempt(result *domain.DecodeResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanAttempts++
	if result != nil {
		m.scanDecodes++
	}
}

func (m *MetricsService) Snapshot() MetricsSnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snapshot := MetricsSnapshot{
		Ticks:           m.ticks,
		SkippedLayers:   make(map[string]int, len(m.skipped)),
		StreamsAcquired: m.acquired,
		StreamFailures:  m.failures,
		StreamsReleased: m.released,
		ActiveStreams:   m.acquired - m.released,
		Captures:        m.captures,
		CaptureBytes:    m.captureBytes,
		Recordings:      m.recordings,
		RecordingChunks: m.recordingChunks,
		RecordingBytes:  m.recordingBytes,
		EncoderFaults:   m.encoderFaults,
		ScanAttempts:    m.scanAttempts,
		ScanDecodes:     m.scanDecodes,
	}
	if m.ticks > 0 {
		snapshot.AverageTick = m.tickTotal / time.Duration(m.ticks)
	}
	for layer, n := range m.skipped {
		snapshot.SkippedLayers[layer] = n
	}
	return snapshot
}
