package domain

import "time"

// CompositorStats is a snapshot of render loop counters.
type CompositorStats struct {
	Running          bool          `json:"running"`
	Ticks            uint64        `json:"ticks"`
	VideoDraws       uint64        `json:"video_draws"`
	OverlayDraws     uint64        `json:"overlay_draws"`
	SkippedLayers    uint64        `json:"skipped_layers"`
	LastTick         time.Time     `json:"last_tick"`
	LastTickDuration time.Duration `json:"last_tick_duration"`
}

// RecordingStats describes the buffer of the current or last recording.
type RecordingStats struct {
	State     RecordingState `json:"state"`
	Chunks    int            `json:"chunks"`
	Bytes     int            `json:"bytes"`
	StartedAt time.Time      `json:"started_at,omitempty"`
}
