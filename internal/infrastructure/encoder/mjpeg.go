package encoder

import (
	"bytes"
	"errors"
	"image/jpeg"
	"sync"
	"time"

	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"github.com/pion/webrtc/v3/pkg/media"
	"go.uber.org/zap"
)

const (
	MimeMJPEG          = "video/x-motion-jpeg"
	DefaultJPEGQuality = 80
)

var (
	ErrAlreadyStarted = errors.New("encoder already started")
	ErrNoVideoTrack   = errors.New("stream has no video track")
)

// MJPEGEncoder encodes sampled frames as concatenated JPEG images. It runs
// in-process and ignores audio.
type MJPEGEncoder struct {
	quality int
	logger  *zap.SugaredLogger

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	done    chan struct{}
}

func NewMJPEGEncoder(quality int, logger *zap.SugaredLogger) *MJPEGEncoder {
	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}
	return &MJPEGEncoder{quality: quality, logger: logger}
}

func (e *MJPEGEncoder) MimeType() string  { return MimeMJPEG }
func (e *MJPEGEncoder) Extension() string { return ".mjpeg" }

func (e *MJPEGEncoder) Start(stream ports.Stream, timeslice time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.running {
		return ErrAlreadyStarted
	}
	videos := stream.VideoTracks()
	if len(videos) == 0 {
		return ErrNoVideoTrack
	}

	e.running = true
	e.stop = make(chan struct{})
	e.done = make(chan struct{})
	go e.run(videos[0], timeslice, onChunk, onError)
	return nil
}

func (e *MJPEGEncoder) run(track ports.VideoTrack, timeslice time.Duration, onChunk ports.ChunkHandler, onError ports.ErrorHandler) {
	defer close(e.done)

	frameTicker := time.NewTicker(utils.FrameInterval(int(track.Settings().FrameRate)))
	defer frameTicker.Stop()

	var flush <-chan time.Time
	if timeslice > 0 {
		flushTicker := time.NewTicker(timeslice)
		defer flushTicker.Stop()
		flush = flushTicker.C
	}

	var pending bytes.Buffer
	sliceStart := time.Now()
	emit := func() {
		if pending.Len() == 0 {
			return
		}
		now := time.Now()
		onChunk(media.Sample{
			Data:      bytes.Clone(pending.Bytes()),
			Timestamp: sliceStart,
			Duration:  now.Sub(sliceStart),
		})
		pending.Reset()
		sliceStart = now
	}

	for {
		select {
		case <-e.stop:
			emit()
			return
		case <-flush:
			emit()
		case <-frameTicker.C:
			if track.Ended() {
				emit()
				return
			}
			frame := track.LatestFrame()
			if frame == nil {
				continue
			}
			if err := jpeg.Encode(&pending, frame, &jpeg.Options{Quality: e.quality}); err != nil {
				e.logger.Errorw("jpeg encode failed", "error", err)
				onError(err)
				return
			}
		}
	}
}

// Stop flushes the last slice and returns once it has been delivered.
func (e *MJPEGEncoder) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.running {
		return nil
	}
	close(e.stop)
	<-e.done
	e.running = false
	return nil
}

func (e *MJPEGEncoder) Close() error {
	return e.Stop()
}
