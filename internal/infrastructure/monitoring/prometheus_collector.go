// Package monitoring exports engine metrics to Prometheus and runs health
// checks for the HTTP surface.
package monitoring

import (
	"time"

	"overlaycam/internal/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// PrometheusCollector implements ports.MetricsRecorder.
type PrometheusCollector struct {
	// Render loop
	tickDuration  prometheus.Histogram
	layersSkipped *prometheus.CounterVec

	// Streams
	streamsAcquired *prometheus.CounterVec
	streamsActive   prometheus.Gauge

	// Exports
	capturesTotal      prometheus.Counter
	captureBytes       prometheus.Histogram
	recordingsTotal    prometheus.Counter
	recordingActive    prometheus.Gauge
	recordingBytes     prometheus.Counter
	recordingChunks    prometheus.Counter
	recordingSizeBytes prometheus.Histogram
	encoderFaults      prometheus.Counter

	// Scanner
	scanAttempts prometheus.Counter
	scanDecodes  *prometheus.CounterVec
}

// NewPrometheusCollector registers every metric on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	factory := promauto.With(reg)

	return &PrometheusCollector{
		tickDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlaycam_compositor_tick_duration_seconds",
			Help:    "Duration of a compositor tick",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		layersSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overlaycam_compositor_layers_skipped_total",
			Help: "Layers skipped by the compositor because they were not ready or failed to draw",
		}, []string{"layer"}),

		streamsAcquired: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overlaycam_streams_acquired_total",
			Help: "Camera stream acquisitions by facing mode and result",
		}, []string{"facing", "result"}),

		streamsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "overlaycam_streams_active",
			Help: "Camera streams currently held",
		}),

		capturesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_captures_total",
			Help: "Still images captured",
		}),

		captureBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlaycam_capture_size_bytes",
			Help:    "Size of captured still images",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10),
		}),

		recordingsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_recordings_total",
			Help: "Recordings started",
		}),

		recordingActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "overlaycam_recording_active",
			Help: "1 while a recording is in progress",
		}),

		recordingBytes: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_recording_bytes_total",
			Help: "Encoded bytes received from recorders",
		}),

		recordingChunks: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_recording_chunks_total",
			Help: "Encoded chunks received from recorders",
		}),

		recordingSizeBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "overlaycam_recording_size_bytes",
			Help:    "Size of finished recordings",
			Buckets: prometheus.ExponentialBuckets(64*1024, 4, 8),
		}),

		encoderFaults: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_encoder_faults_total",
			Help: "Recordings aborted by an encoder fault",
		}),

		scanAttempts: factory.NewCounter(prometheus.CounterOpts{
			Name: "overlaycam_scan_attempts_total",
			Help: "Decode attempts made by barcode scan sessions",
		}),

		scanDecodes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "overlaycam_scan_decodes_total",
			Help: "Successful barcode decodes by format",
		}, []string{"format"}),
	}
}

func (p *PrometheusCollector) RecordTick(duration time.Duration) {
	p.tickDuration.Observe(duration.Seconds())
}

func (p *PrometheusCollector) RecordLayerSkipped(layer string) {
	p.layersSkipped.WithLabelValues(layer).Inc()
}

func (p *PrometheusCollector) RecordStreamAcquired(facing domain.FacingMode, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	p.streamsAcquired.WithLabelValues(string(facing), result).Inc()
	if err == nil {
		p.streamsActive.Inc()
	}
}

func (p *PrometheusCollector) RecordStreamReleased() {
	p.streamsActive.Dec()
}

func (p *PrometheusCollector) RecordCapture(size int) {
	p.capturesTotal.Inc()
	p.captureBytes.Observe(float64(size))
}

func (p *PrometheusCollector) RecordRecordingStarted() {
	p.recordingsTotal.Inc()
	p.recordingActive.Set(1)
}

func (p *PrometheusCollector) RecordRecordingChunk(size int) {
	p.recordingChunks.Inc()
	p.recordingBytes.Add(float64(size))
}

func (p *PrometheusCollector) RecordRecordingStopped(_, bytes int) {
	p.recordingActive.Set(0)
	p.recordingSizeBytes.Observe(float64(bytes))
}

func (p *PrometheusCollector) RecordEncoderFault() {
	p.encoderFaults.Inc()
	p.recordingActive.Set(0)
}

func (p *PrometheusCollector) RecordScanAttempt(result *domain.DecodeResult) {
	p.scanAttempts.Inc()
	if result != nil {
		p.scanDecodes.WithLabelValues(string(result.Format)).Inc()
	}
}
