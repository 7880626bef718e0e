package media

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"net/http"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// RemoteHello is the first message a remote camera sends. Every following
// binary message is one JPEG or PNG frame.
type RemoteHello struct {
	Type         string            `json:"type"`
	FacingMode   domain.FacingMode `json:"facing_mode"`
	Width        int               `json:"width"`
	Height       int               `json:"height"`
	FrameRate    float64           `json:"frame_rate"`
	PreCorrected bool              `json:"pre_corrected"`
}

type RemoteConfig struct {
	AcquireTimeout time.Duration
	ReadTimeout    time.Duration
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxFrameBytes  int64
	// MaxFrameSide caps the width and height a camera may announce.
	MaxFrameSide   int
	AllowedOrigins []string
}

func (c *RemoteConfig) setDefaults() {
	if c.AcquireTimeout <= 0 {
		c.AcquireTimeout = 5 * time.Second
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.PingInterval <= 0 {
		c.PingInterval = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 5 * time.Second
	}
	if c.MaxFrameBytes <= 0 {
		c.MaxFrameBytes = 8 << 20
	}
	if c.MaxFrameSide <= 0 {
		c.MaxFrameSide = 4096
	}
}

// RemoteCamera serves frames pushed by remote clients over websocket, one
// feed per facing mode.
type RemoteCamera struct {
	cfg      RemoteConfig
	upgrader websocket.Upgrader

	mu      sync.Mutex
	feeds   map[domain.FacingMode]*remoteFeed
	changed chan struct{}

	logger *zap.SugaredLogger
}

type remoteFeed struct {
	hello RemoteHello
	slot  *frameSlot
	conn  *websocket.Conn
	done  chan struct{}
}

func NewRemoteCamera(cfg RemoteConfig, logger *zap.SugaredLogger) *RemoteCamera {
	cfg.setDefaults()
	return &RemoteCamera{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			CheckOrigin:     utils.OriginChecker(cfg.AllowedOrigins),
			ReadBufferSize:  64 * 1024,
			WriteBufferSize: 1024,
		},
		feeds:   make(map[domain.FacingMode]*remoteFeed),
		changed: make(chan struct{}),
		logger:  logger,
	}
}

// Feeds lists the connected cameras.
func (c *RemoteCamera) Feeds() []RemoteHello {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]RemoteHello, 0, len(c.feeds))
	for _, f := range c.feeds {
		out = append(out, f.hello)
	}
	return out
}

func (c *RemoteCamera) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	conn.SetReadLimit(c.cfg.MaxFrameBytes)
	conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		return nil
	})

	var hello RemoteHello
	if err := conn.ReadJSON(&hello); err != nil {
		c.logger.Warnw("remote camera sent no hello", "error", err)
		return
	}
	if err := validateHello(&hello, c.cfg.MaxFrameSide); err != nil {
		c.logger.Warnw("remote camera rejected", "error", err)
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, err.Error()),
			time.Now().Add(c.cfg.WriteTimeout))
		return
	}

	feed := &remoteFeed{hello: hello, slot: newFrameSlot(), conn: conn, done: make(chan struct{})}
	c.register(feed)
	defer c.unregister(feed)

	c.logger.Infow("remote camera connected",
		"facing_mode", hello.FacingMode, "width", hello.Width, "height", hello.Height,
		"pre_corrected", hello.PreCorrected)

	go c.ping(feed)

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Infow("remote camera read failed", "facing_mode", hello.FacingMode, "error", err)
			}
			break
		}
		conn.SetReadDeadline(time.Now().Add(c.cfg.ReadTimeout))
		if kind != websocket.BinaryMessage {
			continue
		}
		frame, err := decodeFrame(data, hello)
		if err != nil {
			c.logger.Debugw("dropping frame", "facing_mode", hello.FacingMode, "error", err)
			continue
		}
		feed.slot.publish(frame)
	}

	c.logger.Infow("remote camera disconnected", "facing_mode", hello.FacingMode)
}

// decodeFrame reads the header first so a frame announcing a size other than
// the hello is dropped before its pixels are allocated.
func decodeFrame(data []byte, hello RemoteHello) (image.Image, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if cfg.Width != hello.Width || cfg.Height != hello.Height {
		return nil, fmt.Errorf("frame is %dx%d, camera announced %dx%d", cfg.Width, cfg.Height, hello.Width, hello.Height)
	}
	frame, _, err := image.Decode(bytes.NewReader(data))
	return frame, err
}

func validateHello(h *RemoteHello, maxSide int) error {
	if h.Type != "" && h.Type != "hello" {
		return fmt.Errorf("expected hello, got %q", h.Type)
	}
	if h.FacingMode == "" {
		h.FacingMode = domain.FacingEnvironment
	}
	if !h.FacingMode.Valid() {
		return fmt.Errorf("invalid facing mode %q", h.FacingMode)
	}
	if h.Width <= 0 || h.Height <= 0 || h.Width > maxSide || h.Height > maxSide {
		return fmt.Errorf("invalid frame size %dx%d", h.Width, h.Height)
	}
	if h.FrameRate <= 0 {
		h.FrameRate = 30
	}
	return nil
}

func (c *RemoteCamera) ping(feed *remoteFeed) {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-feed.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(c.cfg.WriteTimeout)
			if err := feed.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				c.logger.Debugw("remote camera ping failed", "facing_mode", feed.hello.FacingMode, "error", err)
				return
			}
		}
	}
}

// register replaces any feed for the same facing mode.
func (c *RemoteCamera) register(feed *remoteFeed) {
	c.mu.Lock()
	old := c.feeds[feed.hello.FacingMode]
	c.feeds[feed.hello.FacingMode] = feed
	c.notifyLocked()
	c.mu.Unlock()

	if old != nil {
		c.logger.Infow("closing replaced remote camera", "facing_mode", feed.hello.FacingMode)
		old.conn.Close()
	}
}

func (c *RemoteCamera) unregister(feed *remoteFeed) {
	c.mu.Lock()
	if c.feeds[feed.hello.FacingMode] == feed {
		delete(c.feeds, feed.hello.FacingMode)
		c.notifyLocked()
	}
	c.mu.Unlock()
	close(feed.done)
}

func (c *RemoteCamera) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// GetUserMedia waits up to the acquire timeout for a feed matching the
// requested facing mode. An empty facing mode accepts any feed.
func (c *RemoteCamera) GetUserMedia(ctx context.Context, constraints domain.Constraints) (ports.Stream, error) {
	if !constraints.Video {
		return nil, fmt.Errorf("%w: remote cameras carry video only", domain.ErrMediaUnavailable)
	}

	timer := time.NewTimer(c.cfg.AcquireTimeout)
	defer timer.Stop()

	for {
		c.mu.Lock()
		feed := c.lookupLocked(constraints.FacingMode)
		changed := c.changed
		c.mu.Unlock()

		if feed != nil {
			return newStream(newRemoteTrack(feed)), nil
		}

		select {
		case <-changed:
		case <-timer.C:
			return nil, fmt.Errorf("%w: no remote %s camera connected", domain.ErrMediaUnavailable, facingLabel(constraints.FacingMode))
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (c *RemoteCamera) lookupLocked(facing domain.FacingMode) *remoteFeed {
	if facing != "" {
		return c.feeds[facing]
	}
	for _, f := range []domain.FacingMode{domain.FacingEnvironment, domain.FacingUser} {
		if feed, ok := c.feeds[f]; ok {
			return feed
		}
	}
	return nil
}

func facingLabel(f domain.FacingMode) string {
	if f == "" {
		return "any"
	}
	return string(f)
}

// remoteTrack views one feed. It ends when stopped or when the feed disconnects.
type remoteTrack struct {
	trackBase
	feed *remoteFeed
}

func newRemoteTrack(feed *remoteFeed) *remoteTrack {
	h := feed.hello
	return &remoteTrack{
		trackBase: newTrackBase(domain.TrackVideo, domain.TrackSettings{
			Width:       h.Width,
			Height:      h.Height,
			AspectRatio: float64(h.Width) / float64(h.Height),
			FrameRate:   h.FrameRate,
			FacingMode:  h.FacingMode,
		}, domain.Capabilities{MaxWidth: h.Width, MaxHeight: h.Height}),
		feed: feed,
	}
}

func (t *remoteTrack) LatestFrame() image.Image      { return t.feed.slot.latest() }
func (t *remoteTrack) Ready() <-chan struct{}        { return t.feed.slot.ready }
func (t *remoteTrack) PreCorrectedCoordinates() bool { return t.feed.hello.PreCorrected }

func (t *remoteTrack) Ended() bool {
	if t.trackBase.Ended() {
		return true
	}
	select {
	case <-t.feed.done:
		return true
	default:
		return false
	}
}
