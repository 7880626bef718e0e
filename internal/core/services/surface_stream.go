package services

import (
	"image"
	"sync"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"
)

// FrameSource yields the composited image.
type FrameSource interface {
	Flatten() (*image.RGBA, error)
}

// SurfaceStream is a live stream derived from the composited surface. Its
// video track samples the surface at a fixed frame rate until stopped.
type SurfaceStream struct {
	id domain.StreamID

	mu     sync.RWMutex
	video  *surfaceTrack
	tracks []ports.Track
}

func NewSurfaceStream(source FrameSource, fps int) *SurfaceStream {
	video := newSurfaceTrack(source, fps)
	return &SurfaceStream{
		id:     domain.StreamID(utils.GenerateStreamID()),
		video:  video,
		tracks: []ports.Track{video},
	}
}

func (s *SurfaceStream) ID() domain.StreamID { return s.id }

func (s *SurfaceStream) Tracks() []ports.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.Track(nil), s.tracks...)
}

func (s *SurfaceStream) VideoTracks() []ports.VideoTrack {
	return []ports.VideoTrack{s.video}
}

func (s *SurfaceStream) AudioTracks() []ports.AudioTrack {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var audio []ports.AudioTrack
	for _, t := range s.tracks {
		if a, ok := t.(ports.AudioTrack); ok {
			audio = append(audio, a)
		}
	}
	return audio
}

func (s *SurfaceStream) AddTrack(track ports.Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, track)
	s.mu.Unlock()
}

// StopVideo ends the derived video track only. Merged tracks belong to the
// stream they were acquired with.
func (s *SurfaceStream) StopVideo() {
	s.video.Stop()
}

type surfaceTrack struct {
	id     domain.TrackID
	source FrameSource
	fps    int

	mu     sync.RWMutex
	frame  image.Image
	ready  chan struct{}
	once   sync.Once
	stop   chan struct{}
	ended  bool
	stopMu sync.Once
}

func newSurfaceTrack(source FrameSource, fps int) *surfaceTrack {
	t := &surfaceTrack{
		id:     domain.TrackID(utils.GenerateTrackID("canvas")),
		source: source,
		fps:    fps,
		ready:  make(chan struct{}),
		stop:   make(chan struct{}),
	}
	go t.run()
	return t
}

func (t *surfaceTrack) run() {
	ticker := time.NewTicker(utils.FrameInterval(t.fps))
	defer ticker.Stop()

	t.sample()
	for {
		select {
		case <-t.stop:
			return
		case <-ticker.C:
			t.sample()
		}
	}
}

func (t *surfaceTrack) sample() {
	frame, err := t.source.Flatten()
	if err != nil {
		return
	}
	t.mu.Lock()
	t.frame = frame
	t.mu.Unlock()
	t.once.Do(func() { close(t.ready) })
}

func (t *surfaceTrack) ID() domain.TrackID     { return t.id }
func (t *surfaceTrack) Kind() domain.TrackKind { return domain.TrackVideo }

func (t *surfaceTrack) Settings() domain.TrackSettings {
	settings := domain.TrackSettings{FrameRate: float64(t.fps)}
	if frame := t.LatestFrame(); frame != nil {
		settings.Width = frame.Bounds().Dx()
		settings.Height = frame.Bounds().Dy()
	}
	return settings
}

func (t *surfaceTrack) Capabilities() domain.Capabilities {
	s := t.Settings()
	return domain.Capabilities{MaxWidth: s.Width, MaxHeight: s.Height}
}

func (t *surfaceTrack) Stop() {
	t.stopMu.Do(func() {
		close(t.stop)
		t.mu.Lock()
		t.ended = true
		t.mu.Unlock()
	})
}

func (t *surfaceTrack) Ended() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ended
}

func (t *surfaceTrack) LatestFrame() image.Image {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.frame
}

func (t *surfaceTrack) Ready() <-chan struct{} { return t.ready }
