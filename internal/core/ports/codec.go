package ports

import (
	"context"
	"image"
	"time"

	"overlaycam/internal/core/domain"

	"github.com/pion/webrtc/v3/pkg/media"
)

type ChunkHandler func(chunk media.Sample)

type ErrorHandler func(err error)

// Encoder turns a live stream into encoded chunks, like a browser MediaRecorder.
// One encoder may be started and stopped many times.
type Encoder interface {
	MimeType() string
	Extension() string
	Start(stream Stream, timeslice time.Duration, onChunk ChunkHandler, onError ErrorHandler) error
	// Stop finalizes encoding. All remaining chunks are delivered before it returns.
	Stop() error
	Close() error
}

// ContainerMuxer is implemented by encoders whose chunks are bare codec frames
// that need a container written around them.
type ContainerMuxer interface {
	Mux(chunks []media.Sample) ([]byte, error)
}

type EncoderFactory func() (Encoder, error)

// Decoder decodes one frame. It returns an error wrapping domain.ErrDecodeMiss
// when the frame holds no recognizable symbol.
type Decoder interface {
	Decode(ctx context.Context, frame image.Image, hints domain.DecodeHints) (*domain.DecodeResult, error)
}
