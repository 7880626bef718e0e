package services

import (
	"bytes"
	"sync"

	"github.com/pion/webrtc/v3/pkg/media"
)

// RecordingBuffer keeps encoded chunks in arrival order.
type RecordingBuffer struct {
	mu     sync.Mutex
	chunks []media.Sample
	bytes  int
	resets int
}

func NewRecordingBuffer() *RecordingBuffer {
	return &RecordingBuffer{}
}

func (b *RecordingBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.bytes = 0
	b.resets++
}

// Discard drops the chunks without counting a reset.
func (b *RecordingBuffer) Discard() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = nil
	b.bytes = 0
}

func (b *RecordingBuffer) Append(chunk media.Sample) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, chunk)
	b.bytes += len(chunk.Data)
}

// Samples returns a copy of the buffered chunks.
func (b *RecordingBuffer) Samples() []media.Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]media.Sample(nil), b.chunks...)
}

// Concat joins the chunk payloads in order.
func (b *RecordingBuffer) Concat() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	var buf bytes.Buffer
	buf.Grow(b.bytes)
	for _, c := range b.chunks {
		buf.Write(c.Data)
	}
	return buf.Bytes()
}

func (b *RecordingBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

func (b *RecordingBuffer) Bytes() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.bytes
}

// Resets counts how many recordings have started on this buffer.
func (b *RecordingBuffer) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}
