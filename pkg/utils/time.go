package utils

import (
	"time"
)

// FrameInterval returns the period of a frame rate, falling back to 30 fps
func FrameInterval(fps int) time.Duration {
	if fps <= 0 {
		fps = 30
	}
	return time.Second / time.Duration(fps)
}
