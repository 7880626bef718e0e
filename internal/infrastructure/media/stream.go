package media

import (
	"image"
	"math"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
	"overlaycam/pkg/utils"
)

// stream is the Stream shared by every device in this package.
type stream struct {
	id     domain.StreamID
	mu     sync.RWMutex
	tracks []ports.Track
}

func newStream(tracks ...ports.Track) *stream {
	return &stream{
		id:     domain.StreamID(utils.GenerateStreamID()),
		tracks: tracks,
	}
}

func (s *stream) ID() domain.StreamID { return s.id }

func (s *stream) Tracks() []ports.Track {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]ports.Track(nil), s.tracks...)
}

func (s *stream) VideoTracks() []ports.VideoTrack {
	var out []ports.VideoTrack
	for _, t := range s.Tracks() {
		if v, ok := t.(ports.VideoTrack); ok {
			out = append(out, v)
		}
	}
	return out
}

func (s *stream) AudioTracks() []ports.AudioTrack {
	var out []ports.AudioTrack
	for _, t := range s.Tracks() {
		if a, ok := t.(ports.AudioTrack); ok {
			out = append(out, a)
		}
	}
	return out
}

func (s *stream) AddTrack(track ports.Track) {
	s.mu.Lock()
	s.tracks = append(s.tracks, track)
	s.mu.Unlock()
}

// trackBase carries identity and the idempotent stop signal.
type trackBase struct {
	id       domain.TrackID
	kind     domain.TrackKind
	settings domain.TrackSettings
	caps     domain.Capabilities

	done     chan struct{}
	stopOnce sync.Once
}

func newTrackBase(kind domain.TrackKind, settings domain.TrackSettings, caps domain.Capabilities) trackBase {
	return trackBase{
		id:       domain.TrackID(utils.GenerateTrackID(string(kind))),
		kind:     kind,
		settings: settings,
		caps:     caps,
		done:     make(chan struct{}),
	}
}

func (t *trackBase) ID() domain.TrackID                { return t.id }
func (t *trackBase) Kind() domain.TrackKind            { return t.kind }
func (t *trackBase) Settings() domain.TrackSettings    { return t.settings }
func (t *trackBase) Capabilities() domain.Capabilities { return t.caps }

func (t *trackBase) Stop() {
	t.stopOnce.Do(func() { close(t.done) })
}

func (t *trackBase) Ended() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// frameSlot holds the latest decoded frame of a video source.
type frameSlot struct {
	mu        sync.RWMutex
	frame     image.Image
	ready     chan struct{}
	readyOnce sync.Once
}

func newFrameSlot() *frameSlot {
	return &frameSlot{ready: make(chan struct{})}
}

func (f *frameSlot) publish(frame image.Image) {
	f.mu.Lock()
	f.frame = frame
	f.mu.Unlock()
	f.readyOnce.Do(func() { close(f.ready) })
}

func (f *frameSlot) latest() image.Image {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.frame
}

// negotiate picks the frame size a device delivers for constraints, bounded
// by what the device can do.
func negotiate(c domain.Constraints, maxWidth, maxHeight int) (int, int) {
	width, height := maxWidth, maxHeight
	if c.IdealHeight > 0 && c.IdealHeight < height {
		height = c.IdealHeight
		width = maxWidth * height / maxHeight
	}
	if c.IdealWidth > 0 && c.IdealWidth < width {
		width = c.IdealWidth
	}
	if c.AspectRatio > 0 {
		if w := int(math.Round(float64(height) * c.AspectRatio)); w <= maxWidth {
			width = w
		} else {
			height = int(math.Round(float64(width) / c.AspectRatio))
		}
	}
	if width < 1 {
		width = 1
	}
	if height < 1 {
		height = 1
	}
	return width, height
}
