package encoder

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"overlaycam/internal/core/ports"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/ivfreader"
	"github.com/pion/webrtc/v3/pkg/media/ivfwriter"
	"go.uber.org/zap"
)

const (
	vp8ClockRate   = 90000
	vp8PayloadType = 96
	rtpMTU         = 1200
	ivfHeaderSize  = 32
)

// FrameFormat is the geometry and timebase stored in an IVF file header.
type FrameFormat struct {
	Width               uint16
	Height              uint16
	TimebaseNumerator   uint32
	TimebaseDenominator uint32
}

func formatOf(h *ivfreader.IVFFileHeader) FrameFormat {
	return FrameFormat{
		Width:               h.Width,
		Height:              h.Height,
		TimebaseNumerator:   h.TimebaseNumerator,
		TimebaseDenominator: h.TimebaseDenominator,
	}
}

// IVFEncoder has ffmpeg emit bare VP8 frames, one chunk per frame, and writes
// the IVF container itself when the recording is finalized.
type IVFEncoder struct {
	*FFmpegEncoder
	ssrc uint32

	formatMu sync.Mutex
	format   FrameFormat
}

func NewIVFEncoder(cfg FFmpegConfig, logger *zap.SugaredLogger) (*IVFEncoder, error) {
	enc, err := newFFmpegEncoder(cfg, ContainerIVF, nil, logger)
	if err != nil {
		return nil, err
	}
	ivf := &IVFEncoder{FFmpegEncoder: enc, ssrc: 0x6f63616d}
	enc.read = ivf.readFrames
	return ivf, nil
}

func (e *IVFEncoder) Start(stream ports.Stream, timeslice time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) error {
	e.setFormat(FrameFormat{})
	return e.FFmpegEncoder.Start(stream, timeslice, onChunk, onError)
}

// Mux packetizes the frames as VP8 RTP and replays them through an IVF
// writer, keeping the frame format ffmpeg reported for this run.
func (e *IVFEncoder) Mux(chunks []media.Sample) ([]byte, error) {
	e.formatMu.Lock()
	format := e.format
	e.formatMu.Unlock()
	return MuxIVF(chunks, e.ssrc, format)
}

func (e *IVFEncoder) setFormat(f FrameFormat) {
	e.formatMu.Lock()
	e.format = f
	e.formatMu.Unlock()
}

func (e *IVFEncoder) readFrames(stdout io.Reader, _ time.Duration, onChunk ports.ChunkHandler) error {
	return readIVFFrames(stdout, e.setFormat, onChunk)
}

// MuxIVF writes frames into an IVF container. The writer always emits a
// 640x480 30/1 header, so non-zero fields of format are patched in afterwards.
func MuxIVF(frames []media.Sample, ssrc uint32, format FrameFormat) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := ivfwriter.NewWith(&buf)
	if err != nil {
		return nil, fmt.Errorf("ivf writer: %w", err)
	}

	packetizer := rtp.NewPacketizer(rtpMTU, vp8PayloadType, ssrc, &codecs.VP8Payloader{}, rtp.NewRandomSequencer(), vp8ClockRate)
	for i, frame := range frames {
		if len(frame.Data) == 0 {
			continue
		}
		samples := uint32(frame.Duration.Seconds() * vp8ClockRate)
		for _, packet := range packetizer.Packetize(frame.Data, samples) {
			if err := writer.WriteRTP(packet); err != nil {
				return nil, fmt.Errorf("write frame %d: %w", i, err)
			}
		}
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("close ivf writer: %w", err)
	}

	out := buf.Bytes()
	if len(out) < ivfHeaderSize {
		return nil, fmt.Errorf("ivf writer produced %d header bytes", len(out))
	}
	if format.Width > 0 && format.Height > 0 {
		binary.LittleEndian.PutUint16(out[12:], format.Width)
		binary.LittleEndian.PutUint16(out[14:], format.Height)
	}
	if format.TimebaseNumerator > 0 && format.TimebaseDenominator > 0 {
		binary.LittleEndian.PutUint32(out[16:], format.TimebaseDenominator)
		binary.LittleEndian.PutUint32(out[20:], format.TimebaseNumerator)
	}
	return out, nil
}

// readIVFFrames demuxes ffmpeg's IVF output into one chunk per frame and
// reports the file header through onFormat.
func readIVFFrames(stdout io.Reader, onFormat func(FrameFormat), onChunk ports.ChunkHandler) error {
	reader, header, err := ivfreader.NewWith(stdout)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil
		}
		return fmt.Errorf("ivf header: %w", err)
	}
	onFormat(formatOf(header))

	frameDuration := time.Second / 30
	if header.TimebaseDenominator > 0 && header.TimebaseNumerator > 0 {
		frameDuration = time.Duration(header.TimebaseNumerator) * time.Second / time.Duration(header.TimebaseDenominator)
	}

	for {
		frame, frameHeader, err := reader.ParseNextFrame()
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("ivf frame: %w", err)
		}
		onChunk(media.Sample{
			Data:            frame,
			Duration:        frameDuration,
			PacketTimestamp: uint32(frameHeader.Timestamp),
		})
	}
}
