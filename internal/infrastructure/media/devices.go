package media

import (
	"fmt"

	"overlaycam/internal/core/ports"
	"overlaycam/pkg/config"

	"go.uber.org/zap"
)

const (
	SourceSynthetic = "synthetic"
	SourceRemote    = "remote"
)

// NewDevices builds the camera source named by the config. The remote camera
// is also returned so its websocket endpoint can be mounted; it is nil for
// the synthetic source.
func NewDevices(cfg *config.Config, logger *zap.SugaredLogger) (ports.MediaDevices, *RemoteCamera, error) {
	switch cfg.Camera.Source {
	case SourceSynthetic, "":
		return NewSyntheticCamera(SyntheticConfig{
			Width:        cfg.Camera.Synthetic.Width,
			Height:       cfg.Camera.Synthetic.Height,
			FrameRate:    cfg.Camera.Synthetic.FrameRate,
			PreCorrected: cfg.Camera.Synthetic.PreCorrected,
		}, logger), nil, nil
	case SourceRemote:
		remote := NewRemoteCamera(RemoteConfig{
			AcquireTimeout: cfg.Camera.Remote.AcquireTimeout,
			ReadTimeout:    cfg.Camera.Remote.ReadTimeout,
			PingInterval:   cfg.Camera.Remote.PingInterval,
			MaxFrameBytes:  cfg.Camera.Remote.MaxFrameBytes,
			MaxFrameSide:   cfg.Camera.Remote.MaxFrameSide,
			AllowedOrigins: cfg.Auth.AllowedOrigins,
		}, logger)
		return remote, remote, nil
	default:
		return nil, nil, fmt.Errorf("unknown camera source %q", cfg.Camera.Source)
	}
}
