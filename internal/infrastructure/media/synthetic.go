package media

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"

	"go.uber.org/zap"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// SyntheticConfig describes the test-pattern camera.
type SyntheticConfig struct {
	Width        int
	Height       int
	FrameRate    float64
	SampleRate   int
	PreCorrected bool
	// Facings lists the cameras the device pretends to have. Empty means both.
	Facings []domain.FacingMode
}

func (c *SyntheticConfig) setDefaults() {
	if c.Width <= 0 {
		c.Width = 1280
	}
	if c.Height <= 0 {
		c.Height = 720
	}
	if c.FrameRate <= 0 {
		c.FrameRate = 30
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 48000
	}
	if len(c.Facings) == 0 {
		c.Facings = []domain.FacingMode{domain.FacingUser, domain.FacingEnvironment}
	}
}

// SyntheticCamera is a MediaDevices that renders moving color bars and
// produces silent audio.
type SyntheticCamera struct {
	cfg    SyntheticConfig
	logger *zap.SugaredLogger
}

func NewSyntheticCamera(cfg SyntheticConfig, logger *zap.SugaredLogger) *SyntheticCamera {
	cfg.setDefaults()
	return &SyntheticCamera{cfg: cfg, logger: logger}
}

func (c *SyntheticCamera) GetUserMedia(ctx context.Context, constraints domain.Constraints) (ports.Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !constraints.Video && !constraints.Audio {
		return nil, fmt.Errorf("%w: no track requested", domain.ErrMediaUnavailable)
	}
	facing := constraints.FacingMode
	if facing == "" {
		facing = c.cfg.Facings[0]
	}
	if !c.hasFacing(facing) {
		return nil, fmt.Errorf("%w: no %s camera", domain.ErrMediaUnavailable, facing)
	}

	s := newStream()
	if constraints.Video {
		width, height := negotiate(constraints, c.cfg.Width, c.cfg.Height)
		s.AddTrack(newPatternTrack(width, height, c.cfg, facing))
		c.logger.Debugw("synthetic video track started",
			"stream_id", s.ID(), "facing_mode", facing, "width", width, "height", height)
	}
	if constraints.Audio {
		s.AddTrack(newSilenceTrack(c.cfg.SampleRate))
	}
	return s, nil
}

func (c *SyntheticCamera) hasFacing(f domain.FacingMode) bool {
	for _, have := range c.cfg.Facings {
		if have == f {
			return true
		}
	}
	return false
}

var patternBars = []color.RGBA{
	{R: 0xc0, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0xc0, A: 0xff},
	{R: 0x00, G: 0xc0, B: 0x00, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0xc0, A: 0xff},
	{R: 0xc0, G: 0x00, B: 0x00, A: 0xff},
	{R: 0x00, G: 0x00, B: 0xc0, A: 0xff},
}

// patternTrack draws SMPTE-style bars with a white marker sweeping across.
type patternTrack struct {
	trackBase
	*frameSlot
	preCorrected bool
}

func newPatternTrack(width, height int, cfg SyntheticConfig, facing domain.FacingMode) *patternTrack {
	t := &patternTrack{
		trackBase: newTrackBase(domain.TrackVideo, domain.TrackSettings{
			Width:       width,
			Height:      height,
			AspectRatio: float64(width) / float64(height),
			FrameRate:   cfg.FrameRate,
			FacingMode:  facing,
		}, domain.Capabilities{MaxWidth: cfg.Width, MaxHeight: cfg.Height}),
		frameSlot:    newFrameSlot(),
		preCorrected: cfg.PreCorrected,
	}
	t.publish(PatternFrame(width, height, 0))
	go t.run(utils.FrameInterval(int(cfg.FrameRate)))
	return t
}

func (t *patternTrack) LatestFrame() image.Image      { return t.latest() }
func (t *patternTrack) Ready() <-chan struct{}        { return t.ready }
func (t *patternTrack) PreCorrectedCoordinates() bool { return t.preCorrected }

func (t *patternTrack) run(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	frame := 0
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			frame++
			t.publish(PatternFrame(t.settings.Width, t.settings.Height, frame))
		}
	}
}

// PatternFrame renders frame n of the test pattern. Frames tall enough carry
// the frame counter as text.
func PatternFrame(width, height, n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	barWidth := (width + len(patternBars) - 1) / len(patternBars)
	marker := 0
	if width > 0 {
		marker = (n * 4) % width
	}
	for x := 0; x < width; x++ {
		c := patternBars[x/barWidth]
		if x >= marker && x < marker+4 {
			c = color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
		}
		for y := 0; y < height; y++ {
			img.SetRGBA(x, y, c)
		}
	}
	if height >= 2*basicfont.Face7x13.Height {
		d := &font.Drawer{
			Dst:  img,
			Src:  image.White,
			Face: basicfont.Face7x13,
			Dot:  fixed.P(8, height-8),
		}
		d.DrawString(fmt.Sprintf("overlaycam %06d", n))
	}
	return img
}

// silenceTrack yields zeroed mono PCM paced to the sample rate.
type silenceTrack struct {
	trackBase
	bytesPerSecond int
}

func newSilenceTrack(sampleRate int) *silenceTrack {
	return &silenceTrack{
		trackBase: newTrackBase(domain.TrackAudio, domain.TrackSettings{
			SampleRate: sampleRate,
			Channels:   1,
		}, domain.Capabilities{}),
		bytesPerSecond: sampleRate * 2,
	}
}

func (t *silenceTrack) Read(p []byte) (int, error) {
	n := len(p) &^ 1
	if n == 0 {
		return 0, nil
	}
	wait := time.Duration(n) * time.Second / time.Duration(t.bytesPerSecond)
	select {
	case <-t.done:
		return 0, io.EOF
	case <-time.After(wait):
	}
	clear(p[:n])
	return n, nil
}
