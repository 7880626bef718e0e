package domain

import "time"

type ArtifactID string

type ArtifactKind string

const (
	ArtifactStill     ArtifactKind = "still"
	ArtifactRecording ArtifactKind = "recording"
)

// Artifact is an exported file: a captured still or a finished recording.
type Artifact struct {
	ID        ArtifactID   `json:"id"`
	Kind      ArtifactKind `json:"kind"`
	Name      string       `json:"name"`
	MimeType  string       `json:"mime_type"`
	Size      int          `json:"size"`
	CreatedAt time.Time    `json:"created_at"`
	Data      []byte       `json:"-"`
}

// RecordingState is the state of a recording session.
type RecordingState string

// Starting and stopping cover the encoder spinning up or flushing; the
// session lock is not held meanwhile.
const (
	RecordingIdle     RecordingState = "idle"
	RecordingStarting RecordingState = "starting"
	RecordingActive   RecordingState = "recording"
	RecordingStopping RecordingState = "stopping"
)
