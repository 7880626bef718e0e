package monitoring

import (
	"context"
	"errors"
	"time"

	"overlaycam/internal/core/ports"
)

// AddRepositoryCheck lists artifacts as a liveness probe of the store.
func (h *HealthChecker) AddRepositoryCheck(repo ports.ArtifactRepository, timeout time.Duration) {
	h.AddCheck("artifacts", func(ctx context.Context) error {
		_, err := repo.List(ctx)
		return err
	}, timeout)
}

// AddPingCheck wraps any dependency exposing a ping, such as the Redis-backed
// repository factory.
func (h *HealthChecker) AddPingCheck(name string, ping func(ctx context.Context) error, timeout time.Duration) {
	h.AddCheck(name, ping, timeout)
}

// AddStudioCheck degrades the service while the studio holds a user-visible
// error, such as an unavailable camera. The studio keeps serving overlays then.
func (h *HealthChecker) AddStudioCheck(studio ports.StudioService, timeout time.Duration) {
	h.AddSoftCheck("studio", func(ctx context.Context) error {
		state := studio.State()
		if state.Message != "" {
			return errors.New(state.Message)
		}
		return nil
	}, timeout)
}
