package optimize

import (
	"bytes"
	"testing"
)

func TestBufferPoolReturnsEmptyBuffers(t *testing.T) {
	pool := NewBufferPool(1024)

	buf := pool.Get()
	buf.WriteString("frame")
	pool.Put(buf)

	buf2 := pool.Get()
	if buf2.Len() != 0 {
		t.Errorf("expected empty buffer, got %d bytes", buf2.Len())
	}
}

func TestBufferPoolDropsOversized(t *testing.T) {
	pool := NewBufferPool(16)

	buf := pool.Get()
	buf.Write(make([]byte, 64))
	pool.Put(buf)

	// sync.Pool may drop anything, so only the oversized case is checked.
	for i := 0; i < 4; i++ {
		if got := pool.Get(); got == buf {
			t.Fatal("oversized buffer was pooled")
		}
	}
}

func TestBufferPoolPutNil(t *testing.T) {
	NewBufferPool(0).Put(nil)
}

func TestCopyBytes(t *testing.T) {
	buf := bytes.NewBufferString("jpeg")
	out := CopyBytes(buf)
	buf.Reset()
	buf.WriteString("xxxx")

	if string(out) != "jpeg" {
		t.Errorf("expected copy to survive reuse, got %q", out)
	}
}
