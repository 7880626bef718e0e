package ports

import (
	"context"

	"overlaycam/internal/core/domain"
)

// ArtifactSink receives exported artifacts.
type ArtifactSink interface {
	Save(ctx context.Context, artifact *domain.Artifact) error
}

type ArtifactRepository interface {
	ArtifactSink
	Get(ctx context.Context, id domain.ArtifactID) (*domain.Artifact, error)
	List(ctx context.Context) ([]*domain.Artifact, error)
	Delete(ctx context.Context, id domain.ArtifactID) error
}
