package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
)

type MemoryArtifactRepository struct {
	artifacts map[domain.ArtifactID]*domain.Artifact
	order     []domain.ArtifactID
	maxItems  int
	mu        sync.RWMutex
}

// NewMemoryArtifactRepository keeps at most maxItems artifacts, evicting the
// oldest first. maxItems <= 0 keeps everything.
func NewMemoryArtifactRepository(maxItems int) ports.ArtifactRepository {
	return &MemoryArtifactRepository{
		artifacts: make(map[domain.ArtifactID]*domain.Artifact),
		maxItems:  maxItems,
	}
}

func (r *MemoryArtifactRepository) Save(ctx context.Context, artifact *domain.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return fmt.Errorf("artifact id must not be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.artifacts[artifact.ID]; exists {
		return fmt.Errorf("artifact already exists: %s", artifact.ID)
	}

	stored := *artifact
	stored.Data = append([]byte(nil), artifact.Data...)
	r.artifacts[artifact.ID] = &stored
	r.order = append(r.order, artifact.ID)

	for r.maxItems > 0 && len(r.order) > r.maxItems {
		oldest := r.order[0]
		r.order = r.order[1:]
		delete(r.artifacts, oldest)
	}
	return nil
}

func (r *MemoryArtifactRepository) Get(ctx context.Context, id domain.ArtifactID) (*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	artifact, exists := r.artifacts[id]
	if !exists {
		return nil, domain.ErrArtifactNotFound
	}

	out := *artifact
	return &out, nil
}

// List returns newest first, without payloads.
func (r *MemoryArtifactRepository) List(ctx context.Context) ([]*domain.Artifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := make([]*domain.Artifact, 0, len(r.artifacts))
	for i := len(r.order) - 1; i >= 0; i-- {
		meta := *r.artifacts[r.order[i]]
		meta.Data = nil
		list = append(list, &meta)
	}
	sort.SliceStable(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	return list, nil
}

func (r *MemoryArtifactRepository) Delete(ctx context.Context, id domain.ArtifactID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.artifacts[id]; !exists {
		return domain.ErrArtifactNotFound
	}

	delete(r.artifacts, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}
