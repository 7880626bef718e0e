package domain

import "time"

type StreamID string
type TrackID string

// FacingMode selects the physical camera.
type FacingMode string

const (
	FacingUser        FacingMode = "user"
	FacingEnvironment FacingMode = "environment"
)

func (f FacingMode) Valid() bool {
	return f == FacingUser || f == FacingEnvironment
}

// Toggle returns the opposite camera.
func (f FacingMode) Toggle() FacingMode {
	if f == FacingUser {
		return FacingEnvironment
	}
	return FacingUser
}

type TrackKind string

const (
	TrackVideo TrackKind = "video"
	TrackAudio TrackKind = "audio"
)

// Constraints is the request passed to a media device.
type Constraints struct {
	Video       bool
	Audio       bool
	FacingMode  FacingMode
	IdealWidth  int
	IdealHeight int
	AspectRatio float64
	FrameRate   float64
}

// TrackSettings are the values a track actually negotiated.
type TrackSettings struct {
	Width       int
	Height      int
	AspectRatio float64
	FrameRate   float64
	FacingMode  FacingMode
	SampleRate  int
	Channels    int
}

// Capabilities are the ranges a device supports.
type Capabilities struct {
	MaxWidth  int
	MaxHeight int
}

// StreamInfo is a serializable view of an acquired stream.
type StreamInfo struct {
	ID           StreamID   `json:"id"`
	FacingMode   FacingMode `json:"facing_mode"`
	Width        int        `json:"width"`
	Height       int        `json:"height"`
	PreCorrected bool       `json:"pre_corrected"`
	AcquiredAt   time.Time  `json:"acquired_at"`
	Released     bool       `json:"released"`
}
