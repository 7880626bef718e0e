package domain

// OpenRequest starts a studio session.
type OpenRequest struct {
	Container  Bounds     `json:"container"`
	FacingMode FacingMode `json:"facing_mode"`
}

// StudioState is what the control surface renders after every command.
type StudioState struct {
	Open       bool            `json:"open"`
	Layout     Layout          `json:"layout"`
	Dimension  Dimension       `json:"dimension"`
	FacingMode FacingMode      `json:"facing_mode"`
	Stream     *StreamInfo     `json:"stream,omitempty"`
	Overlay    string          `json:"overlay"`
	OverlayOK  bool            `json:"overlay_ready"`
	Position   Position        `json:"position"`
	Scale      float64         `json:"scale"`
	Recording  RecordingStats  `json:"recording"`
	Compositor CompositorStats `json:"compositor"`
	Message    string          `json:"message,omitempty"`
}
