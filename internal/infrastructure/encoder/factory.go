// Package encoder provides the recording encoders: an ffmpeg-backed WebM
// (VP8/Opus) encoder, an ffmpeg VP8 encoder muxed to IVF through pion, and an
// in-process MJPEG encoder.
package encoder

import (
	"fmt"

	"overlaycam/internal/core/ports"

	"go.uber.org/zap"
)

const (
	CodecWebM  = "webm"
	CodecIVF   = "ivf"
	CodecMJPEG = "mjpeg"
)

type Config struct {
	Codec       string
	JPEGQuality int
	FFmpeg      FFmpegConfig
}

// NewFactory returns the constructor the recording session calls lazily on
// its first start.
func NewFactory(cfg Config, logger *zap.SugaredLogger) (ports.EncoderFactory, error) {
	switch cfg.Codec {
	case CodecWebM, "":
		return func() (ports.Encoder, error) {
			return NewWebMEncoder(cfg.FFmpeg, logger)
		}, nil
	case CodecIVF:
		return func() (ports.Encoder, error) {
			return NewIVFEncoder(cfg.FFmpeg, logger)
		}, nil
	case CodecMJPEG:
		return func() (ports.Encoder, error) {
			return NewMJPEGEncoder(cfg.JPEGQuality, logger), nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", cfg.Codec)
	}
}
