// Package testutil holds fakes for the engine ports.
package testutil

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"sync"
	"sync/atomic"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
)

// FakeVideoTrack serves whatever frame was last set.
type FakeVideoTrack struct {
	id           domain.TrackID
	settings     domain.TrackSettings
	caps         domain.Capabilities
	preCorrected bool

	mu    sync.RWMutex
	frame image.Image
	ready chan struct{}
	once  sync.Once
	stops atomic.Int32
}

func NewFakeVideoTrack(id string, width, height int) *FakeVideoTrack {
	return &FakeVideoTrack{
		id:       domain.TrackID(id),
		settings: domain.TrackSettings{Width: width, Height: height, AspectRatio: float64(width) / float64(height), FrameRate: 30},
		caps:     domain.Capabilities{MaxWidth: width, MaxHeight: height},
		ready:    make(chan struct{}),
	}
}

// SetFrame publishes a frame and marks the track ready.
func (t *FakeVideoTrack) SetFrame(frame image.Image) {
	t.mu.Lock()
	t.frame = frame
	t.mu.Unlock()
	t.once.Do(func() { close(t.ready) })
}

func (t *FakeVideoTrack) SetPreCorrected(v bool)            { t.preCorrected = v }
func (t *FakeVideoTrack) PreCorrectedCoordinates() bool     { return t.preCorrected }
func (t *FakeVideoTrack) ID() domain.TrackID                { return t.id }
func (t *FakeVideoTrack) Kind() domain.TrackKind            { return domain.TrackVideo }
func (t *FakeVideoTrack) Settings() domain.TrackSettings    { return t.settings }
func (t *FakeVideoTrack) Capabilities() domain.Capabilities { return t.caps }
func (t *FakeVideoTrack) Ready() <-chan struct{}            { return t.ready }
func (t *FakeVideoTrack) Stop()                             { t.stops.Add(1) }
func (t *FakeVideoTrack) Ended() bool                       { return t.stops.Load() > 0 }

// StopCalls counts Stop invocations.
func (t *FakeVideoTrack) StopCalls() int { return int(t.stops.Load()) }

func (t *FakeVideoTrack) LatestFrame() image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

// FakeAudioTrack yields silence.
type FakeAudioTrack struct {
	id    domain.TrackID
	stops atomic.Int32
}

func NewFakeAudioTrack(id string) *FakeAudioTrack {
	return &FakeAudioTrack{id: domain.TrackID(id)}
}

func (t *FakeAudioTrack) ID() domain.TrackID     { return t.id }
func (t *FakeAudioTrack) Kind() domain.TrackKind { return domain.TrackAudio }
func (t *FakeAudioTrack) Settings() domain.TrackSettings {
	return domain.TrackSettings{SampleRate: 48000, Channels: 1}
}
func (t *FakeAudioTrack) Capabilities() domain.Capabilities { return domain.Capabilities{} }
func (t *FakeAudioTrack) Stop()                             { t.stops.Add(1) }
func (t *FakeAudioTrack) Ended() bool                       { return t.stops.Load() > 0 }
func (t *FakeAudioTrack) StopCalls() int                    { return int(t.stops.Load()) }

func (t *FakeAudioTrack) Read(p []byte) (int, error) {
	if t.Ended() {
		return 0, io.EOF
	}
	for i := range p {
		p[i] = 0
	}
	return len(p), nil
}

// FakeStream is a fixed set of tracks.
type FakeStream struct {
	id     domain.StreamID
	mu     sync.Mutex
	tracks []ports.Track
}

func NewFakeStream(id string, tracks ...ports.Track) *FakeStream {
	return &FakeStream{id: domain.StreamID(id), tracks: tracks}
}

func (s *FakeStream) ID() domain.StreamID { return s.id }

func (s *FakeStream) Tracks() []ports.Track {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ports.Track(nil), s.tracks...)
}

func (s *FakeStream) VideoTracks() []ports.VideoTrack {
	var out []ports.VideoTrack
	for _, t := range s.Tracks() {
		if v, ok := t.(ports.VideoTrack); ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *FakeStream) AudioTracks() []ports.AudioTrack {
	var out []ports.AudioTrack
	for _, t := range s.Tracks() {
		if a, ok := t.(ports.AudioTrack); ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *FakeStream) AddTrack(track ports.Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, track)
	s.mu.Unlock()
}

// FakeDevices hands out a new stream per call. Video streams carry one frame
// of the configured size, filled with FrameColor.
type FakeDevices struct {
	Width        int
	Height       int
	FrameColor   color.RGBA
	PreCorrected bool
	// Err fails every call when set.
	Err error
	// NoFrame leaves new video tracks without a frame.
	NoFrame bool

	mu      sync.Mutex
	calls   []domain.Constraints
	streams []*FakeStream
	videos  []*FakeVideoTrack
	audios  []*FakeAudioTrack
}

func NewFakeDevices(width, height int) *FakeDevices {
	return &FakeDevices{
		Width:      width,
		Height:     height,
		FrameColor: color.RGBA{G: 255, A: 255},
	}
}

func (d *FakeDevices) GetUserMedia(_ context.Context, c domain.Constraints) (ports.Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if d.Err != nil {
		return nil, d.Err
	}

	n := len(d.streams)
	stream := NewFakeStream(fmt.Sprintf("stream-%d", n))
	if c.Video {
		video := NewFakeVideoTrack(fmt.Sprintf("video-%d", n), d.Width, d.Height)
		video.SetPreCorrected(d.PreCorrected)
		if !d.NoFrame {
			video.SetFrame(SolidImage(d.Width, d.Height, d.FrameColor))
		}
		stream.AddTrack(video)
		d.videos = append(d.videos, video)
	}
	if c.Audio {
		audio := NewFakeAudioTrack(fmt.Sprintf("audio-%d", n))
		stream.AddTrack(audio)
		d.audios = append(d.audios, audio)
	}
	d.streams = append(d.streams, stream)
	return stream, nil
}

func (d *FakeDevices) Calls() []domain.Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.Constraints(nil), d.calls...)
}

func (d *FakeDevices) VideoTracks() []*FakeVideoTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeVideoTrack(nil), d.videos...)
}

func (d *FakeDevices) AudioTracks() []*FakeAudioTrack {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*FakeAudioTrack(nil), d.audios...)
}

// SolidImage returns an opaque w×h image of one color.
func SolidImage(w, h int, c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}
