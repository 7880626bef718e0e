package utils

import (
	"github.com/google/uuid"
)

// GenerateArtifactID generates a unique artifact ID
func GenerateArtifactID() string {
	return uuid.NewString()
}

// GenerateStreamID generates a unique stream ID
func GenerateStreamID() string {
	return GenerateID("stream")
}

// GenerateTrackID generates a unique track ID
func GenerateTrackID(kind string) string {
	return GenerateID(kind)
}

// GenerateSessionID generates a unique session ID
func GenerateSessionID() string {
	return GenerateID("session")
}

