package optimize

import (
	"bytes"
	"sync"
)

// BufferPool is a pool of bytes.Buffers to reduce allocations on hot encode
// paths.
type BufferPool struct {
	pool   sync.Pool
	maxCap int
}

// NewBufferPool creates a pool that drops buffers grown beyond maxCap so one
// oversized frame does not pin memory. maxCap <= 0 keeps every buffer.
func NewBufferPool(maxCap int) *BufferPool {
	return &BufferPool{
		maxCap: maxCap,
		pool: sync.Pool{
			New: func() interface{} {
				return new(bytes.Buffer)
			},
		},
	}
}

// Get returns an empty buffer.
func (p *BufferPool) Get() *bytes.Buffer {
	buf := p.pool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// Put returns a buffer to the pool. The caller must not use it afterwards.
func (p *BufferPool) Put(buf *bytes.Buffer) {
	if buf == nil || (p.maxCap > 0 && buf.Cap() > p.maxCap) {
		return
	}
	p.pool.Put(buf)
}

// CopyBytes returns a copy of buf's contents that stays valid after buf goes
// back to the pool.
func CopyBytes(buf *bytes.Buffer) []byte {
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out
}
