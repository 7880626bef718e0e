package ports

import (
	"context"
	"image"

	"overlaycam/internal/core/domain"
)

// MediaDevices acquires live capture streams. Implementations return an error
// wrapping domain.ErrMediaUnavailable when no device or permission is present.
type MediaDevices interface {
	GetUserMedia(ctx context.Context, constraints domain.Constraints) (Stream, error)
}

// Stream groups the tracks of one acquisition.
type Stream interface {
	ID() domain.StreamID
	Tracks() []Track
	VideoTracks() []VideoTrack
	AudioTracks() []AudioTrack
	AddTrack(track Track)
}

// Track is a single audio or video source. Stop must be idempotent.
type Track interface {
	ID() domain.TrackID
	Kind() domain.TrackKind
	Settings() domain.TrackSettings
	Capabilities() domain.Capabilities
	Stop()
	Ended() bool
}

type VideoTrack interface {
	Track
	// LatestFrame returns the most recent frame, or nil before the first one.
	LatestFrame() image.Image
	// Ready is closed once the first frame is available.
	Ready() <-chan struct{}
}

// AudioTrack yields interleaved signed 16-bit little-endian PCM at real-time pace.
type AudioTrack interface {
	Track
	Read(p []byte) (int, error)
}

// PreCorrectedReporter is implemented by video tracks whose frames arrive with
// display-corrected coordinates and must not be re-centered.
type PreCorrectedReporter interface {
	PreCorrectedCoordinates() bool
}

// CapabilityProbe decides, once per acquisition, whether the centering offset
// must be skipped for a track.
type CapabilityProbe interface {
	PreCorrectedCoordinates(track VideoTrack) bool
}
