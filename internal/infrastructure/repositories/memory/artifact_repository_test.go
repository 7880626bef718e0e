package memory

import (
	"context"
	"testing"
	"time"

	"overlaycam/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryArtifactRepositoryEvictsOldest(t *testing.T) {
	repo := NewMemoryArtifactRepository(2)
	ctx := context.Background()
	now := time.Now()

	for i, id := range []domain.ArtifactID{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, &domain.Artifact{
			ID:        id,
			CreatedAt: now.Add(time.Duration(i) * time.Second),
		}))
	}

	_, err := repo.Get(ctx, "a")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, domain.ArtifactID("c"), list[0].ID)
	assert.Equal(t, domain.ArtifactID("b"), list[1].ID)
}

func TestMemoryArtifactRepositoryCopiesData(t *testing.T) {
	repo := NewMemoryArtifactRepository(0)
	ctx := context.Background()
	data := []byte{1, 2, 3}

	require.NoError(t, repo.Save(ctx, &domain.Artifact{ID: "x", Data: data}))
	data[0] = 9

	got, err := repo.Get(ctx, "x")
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got.Data)
	assert.Error(t, repo.Save(ctx, &domain.Artifact{}))
}
