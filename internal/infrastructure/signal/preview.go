package signal

import (
	"context"
	"errors"
	"image"
	"image/jpeg"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/pkg/optimize"
	"overlaycam/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// PreviewSource yields the current composited frame.
type PreviewSource interface {
	Preview() (*image.RGBA, error)
}

type PreviewConfig struct {
	FrameRate   int
	JPEGQuality int
}

// PreviewServer pushes JPEG-encoded composited frames to every viewer on its
// hub. Frames are only encoded while at least one viewer is connected.
type PreviewServer struct {
	hub      *Hub
	source   PreviewSource
	interval time.Duration
	quality  int
	buffers  *optimize.BufferPool
	logger   *zap.SugaredLogger
}

func NewPreviewServer(source PreviewSource, cfg PreviewConfig, hub *Hub, logger *zap.SugaredLogger) *PreviewServer {
	quality := cfg.JPEGQuality
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	return &PreviewServer{
		hub:      hub,
		source:   source,
		interval: utils.FrameInterval(cfg.FrameRate),
		quality:  quality,
		buffers:  optimize.NewBufferPool(4 << 20),
		logger:   logger,
	}
}

func (p *PreviewServer) Hub() *Hub { return p.hub }

// Run broadcasts until ctx is done.
func (p *PreviewServer) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if p.hub.Clients() == 0 {
				continue
			}
			frame, err := p.Snapshot()
			if err != nil {
				if !errors.Is(err, domain.ErrNotOpen) {
					p.logger.Debugw("preview frame skipped", "error", err)
				}
				continue
			}
			p.hub.Broadcast(websocket.BinaryMessage, frame)
		}
	}
}

// Snapshot encodes the current composited frame as JPEG.
func (p *PreviewServer) Snapshot() ([]byte, error) {
	img, err := p.source.Preview()
	if err != nil {
		return nil, err
	}
	buf := p.buffers.Get()
	defer p.buffers.Put(buf)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: p.quality}); err != nil {
		return nil, err
	}
	return optimize.CopyBytes(buf), nil
}
