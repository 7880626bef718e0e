package domain

import "errors"

var (
	ErrMediaUnavailable = errors.New("media device unavailable")
	ErrDecodeMiss       = errors.New("no barcode found in frame")
	ErrEncoderFault     = errors.New("encoder fault")
	ErrSurfaceGone      = errors.New("render surface disposed")
	ErrUnknownOverlay   = errors.New("unknown overlay")
	ErrStreamReleased   = errors.New("stream released")
	ErrNotOpen          = errors.New("session not open")
	ErrArtifactNotFound = errors.New("artifact not found")
)
