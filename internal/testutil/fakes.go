package testutil

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"github.com/pion/webrtc/v3/pkg/media"
)

type loadResult struct {
	img image.Image
	err error
}

// GatedLoader blocks every Load until the test releases that URI.
type GatedLoader struct {
	mu    sync.Mutex
	gates map[string]chan loadResult
	calls []string
}

func NewGatedLoader() *GatedLoader {
	return &GatedLoader{gates: make(map[string]chan loadResult)}
}

func (l *GatedLoader) gate(uri string) chan loadResult {
	l.mu.Lock()
	defer l.mu.Unlock()
	g, ok := l.gates[uri]
	if !ok {
		g = make(chan loadResult, 1)
		l.gates[uri] = g
	}
	return g
}

func (l *GatedLoader) Load(ctx context.Context, uri string) (image.Image, error) {
	l.mu.Lock()
	l.calls = append(l.calls, uri)
	l.mu.Unlock()

	select {
	case r := <-l.gate(uri):
		return r.img, r.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release completes the pending (or next) load of uri.
func (l *GatedLoader) Release(uri string, img image.Image, err error) {
	l.gate(uri) <- loadResult{img: img, err: err}
}

func (l *GatedLoader) Calls() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

// StaticLoader returns images from a map immediately.
type StaticLoader map[string]image.Image

func (l StaticLoader) Load(_ context.Context, uri string) (image.Image, error) {
	img, ok := l[uri]
	if !ok {
		return nil, fmt.Errorf("no image at %s", uri)
	}
	return img, nil
}

// FakeEncoder records calls and lets the test push chunks and faults.
type FakeEncoder struct {
	Mime string
	Ext  string
	// Trailing chunks are delivered by Stop before it returns.
	Trailing []media.Sample
	StartErr error
	StopErr  error
	// StartGate, when set, holds Start until it is closed.
	StartGate chan struct{}

	mu      sync.Mutex
	stream  ports.Stream
	onChunk ports.ChunkHandler
	onError ports.ErrorHandler
	starts  int
	stops   int
	closed  bool
}

func NewFakeEncoder() *FakeEncoder {
	return &FakeEncoder{Mime: "video/webm;codecs=vp8,opus", Ext: ".webm"}
}

func (e *FakeEncoder) MimeType() string  { return e.Mime }
func (e *FakeEncoder) Extension() string { return e.Ext }

func (e *FakeEncoder) Start(stream ports.Stream, _ time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) error {
	if e.StartGate != nil {
		<-e.StartGate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.StartErr != nil {
		return e.StartErr
	}
	e.stream, e.onChunk, e.onError = stream, onChunk, onError
	e.starts++
	return nil
}

func (e *FakeEncoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stops++
	if e.StopErr != nil {
		return e.StopErr
	}
	for _, c := range e.Trailing {
		e.onChunk(c)
	}
	return nil
}

func (e *FakeEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Emit delivers a chunk as if the timeslice elapsed.
func (e *FakeEncoder) Emit(data []byte) {
	e.mu.Lock()
	onChunk := e.onChunk
	e.mu.Unlock()
	onChunk(media.Sample{Data: data, Duration: 200 * time.Millisecond})
}

// Fail reports an asynchronous encoder error.
func (e *FakeEncoder) Fail(err error) {
	e.mu.Lock()
	onError := e.onError
	e.mu.Unlock()
	onError(err)
}

func (e *FakeEncoder) Stream() ports.Stream {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stream
}

func (e *FakeEncoder) Starts() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.starts
}

func (e *FakeEncoder) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// EncoderFactory counts constructions and hands out new FakeEncoders.
type EncoderFactory struct {
	mu       sync.Mutex
	encoders []*FakeEncoder
	Err      error
	Setup    func(*FakeEncoder)
}

func (f *EncoderFactory) New() (ports.Encoder, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	enc := NewFakeEncoder()
	if f.Setup != nil {
		f.Setup(enc)
	}
	f.encoders = append(f.encoders, enc)
	return enc, nil
}

func (f *EncoderFactory) Encoders() []*FakeEncoder {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeEncoder(nil), f.encoders...)
}

// Last returns the most recently constructed encoder.
func (f *EncoderFactory) Last() *FakeEncoder {
	encoders := f.Encoders()
	if len(encoders) == 0 {
		return nil
	}
	return encoders[len(encoders)-1]
}

// MemorySink keeps saved artifacts in order.
type MemorySink struct {
	mu        sync.Mutex
	artifacts []*domain.Artifact
	Err       error
}

func (s *MemorySink) Save(_ context.Context, a *domain.Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.artifacts = append(s.artifacts, a)
	return nil
}

func (s *MemorySink) Artifacts() []*domain.Artifact {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.Artifact(nil), s.artifacts...)
}

// ScriptedDecoder answers each Decode call from a script; once the script is
// exhausted every frame misses.
type ScriptedDecoder struct {
	mu     sync.Mutex
	script []*domain.DecodeResult
	errs   []error
	calls  int
}

// Miss appends n frames without a symbol.
func (d *ScriptedDecoder) Miss(n int) *ScriptedDecoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := 0; i < n; i++ {
		d.script = append(d.script, nil)
		d.errs = append(d.errs, nil)
	}
	return d
}

// Hit appends a frame that decodes to text.
func (d *ScriptedDecoder) Hit(text string, format domain.BarcodeFormat) *ScriptedDecoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, &domain.DecodeResult{Text: text, Format: format, RawBytes: []byte(text)})
	d.errs = append(d.errs, nil)
	return d
}

// Fail appends a frame on which the decoder itself errors.
func (d *ScriptedDecoder) Fail(err error) *ScriptedDecoder {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.script = append(d.script, nil)
	d.errs = append(d.errs, err)
	return d
}

func (d *ScriptedDecoder) Decode(_ context.Context, _ image.Image, _ domain.DecodeHints) (*domain.DecodeResult, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	i := d.calls
	d.calls++
	if i >= len(d.script) {
		return nil, domain.ErrDecodeMiss
	}
	if d.errs[i] != nil {
		return nil, d.errs[i]
	}
	if d.script[i] == nil {
		return nil, fmt.Errorf("frame %d: %w", i, domain.ErrDecodeMiss)
	}
	result := *d.script[i]
	return &result, nil
}

func (d *ScriptedDecoder) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

var ErrInjected = errors.New("injected failure")
