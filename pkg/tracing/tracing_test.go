package tracing

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	tracesdk "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// record installs a recording provider for the duration of the test.
func record(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tracesdk.NewTracerProvider(tracesdk.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return recorder
}

func attr(span tracesdk.ReadOnlySpan, key attribute.Key) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if kv.Key == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Enabled {
		t.Error("expected tracing disabled by default")
	}
	if cfg.ServiceName != "overlaycam" {
		t.Errorf("expected service name 'overlaycam', got '%s'", cfg.ServiceName)
	}
	if cfg.SampleRate != 1.0 {
		t.Errorf("expected sample rate 1.0, got %f", cfg.SampleRate)
	}
}

func TestInitDisabled(t *testing.T) {
	tp, err := Init(Config{Enabled: false})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := tp.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
}

func TestSampleRateClamp(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-1, 0},
		{0.25, 0.25},
		{3, 1},
	}
	for _, tt := range tests {
		if got := sampleRate(tt.in); got != tt.want {
			t.Errorf("sampleRate(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestTraceStudioOperation(t *testing.T) {
	recorder := record(t)

	_, span := TraceStudioOperation(context.Background(), "toggle_facing", "stream-456")
	span.End()
	_, span = TraceStudioOperation(context.Background(), "open", "")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "studio.toggle_facing" {
		t.Errorf("unexpected span name %q", spans[0].Name())
	}
	if v, ok := attr(spans[0], StreamIDKey); !ok || v.AsString() != "stream-456" {
		t.Errorf("expected stream id attribute, got %v", v)
	}
	if _, ok := attr(spans[1], StreamIDKey); ok {
		t.Error("empty stream id should not be recorded")
	}
}

func TestTraceScanAndStorage(t *testing.T) {
	recorder := record(t)

	_, span := TraceScanOperation(context.Background(), "start", "session-1")
	span.End()
	_, span = TraceStorageOperation(context.Background(), "save", "redis")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if v, _ := attr(spans[0], SessionIDKey); v.AsString() != "session-1" {
		t.Errorf("expected session attribute, got %v", v)
	}
	if spans[1].SpanKind() != trace.SpanKindClient {
		t.Errorf("expected client span, got %v", spans[1].SpanKind())
	}
	if v, _ := attr(spans[1], "storage.backend"); v.AsString() != "redis" {
		t.Errorf("expected backend attribute, got %v", v)
	}
}

func TestTraceHTTPAndWebSocket(t *testing.T) {
	recorder := record(t)

	_, span := TraceHTTPRequest(context.Background(), "POST", "/api/v1/studio/capture")
	span.End()
	_, span = TraceWebSocketMessage(context.Background(), "frame", "client-123")
	span.End()

	spans := recorder.Ended()
	if len(spans) != 2 {
		t.Fatalf("expected 2 spans, got %d", len(spans))
	}
	if spans[0].Name() != "http.POST /api/v1/studio/capture" || spans[0].SpanKind() != trace.SpanKindServer {
		t.Errorf("unexpected http span %q kind %v", spans[0].Name(), spans[0].SpanKind())
	}
	if v, _ := attr(spans[1], ClientIDKey); v.AsString() != "client-123" {
		t.Errorf("expected client attribute, got %v", v)
	}
}

func TestRecordErrorAndDuration(t *testing.T) {
	recorder := record(t)

	ctx, span := StartSpan(context.Background(), "test")
	MeasureDuration(ctx, time.Now().Add(-25*time.Millisecond))
	AddSpanAttributes(ctx, OverlayKey.String("aqua"))
	RecordError(ctx, errors.New("boom"))
	span.End()

	ended := recorder.Ended()[0]
	if ended.Status().Code != codes.Error || ended.Status().Description != "boom" {
		t.Errorf("unexpected status %+v", ended.Status())
	}
	if v, ok := attr(ended, DurationKey); !ok || v.AsInt64() < 25 {
		t.Errorf("expected duration >= 25ms, got %v", v)
	}
	if v, _ := attr(ended, OverlayKey); v.AsString() != "aqua" {
		t.Errorf("expected overlay attribute, got %v", v)
	}
	if len(ended.Events()) != 1 {
		t.Errorf("expected one error event, got %d", len(ended.Events()))
	}
}

func TestExtractHTTPContinuesTrace(t *testing.T) {
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	header := http.Header{}
	header.Set("traceparent", "00-0af7651916cd43dd8448eb211c80319c-b7ad6b7169203331-01")

	sc := trace.SpanContextFromContext(ExtractHTTP(context.Background(), header))
	if !sc.IsRemote() || sc.TraceID().String() != "0af7651916cd43dd8448eb211c80319c" {
		t.Errorf("trace not extracted: %v", sc.TraceID())
	}
}
