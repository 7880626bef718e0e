package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"overlaycam/internal/core/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileArtifactRepositoryLayout(t *testing.T) {
	base := t.TempDir()
	repo, err := NewFileArtifactRepository(base)
	require.NoError(t, err)

	require.NoError(t, repo.Save(context.Background(), &domain.Artifact{
		ID:        "a1",
		Name:      "2024-05-01.png",
		CreatedAt: time.Now(),
		Data:      []byte("png"),
	}))

	data, err := os.ReadFile(filepath.Join(base, "a1", "2024-05-01.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))
	assert.FileExists(t, filepath.Join(base, "a1", metaFile))
}

func TestFileArtifactRepositoryRejectsEscapes(t *testing.T) {
	base := t.TempDir()
	repo, err := NewFileArtifactRepository(base)
	require.NoError(t, err)
	ctx := context.Background()

	assert.Error(t, repo.Save(ctx, &domain.Artifact{ID: "../evil"}))
	assert.Error(t, repo.Save(ctx, &domain.Artifact{ID: ""}))

	_, err = repo.Get(ctx, "../../etc")
	assert.ErrorIs(t, err, domain.ErrArtifactNotFound)

	require.NoError(t, repo.Save(ctx, &domain.Artifact{ID: "b2", Name: "../../x.png", Data: []byte("1")}))
	assert.FileExists(t, filepath.Join(base, "b2", "x.png"))

	got, err := repo.Get(ctx, "b2")
	require.NoError(t, err)
	assert.Equal(t, []byte("1"), got.Data)
}

func TestPayloadName(t *testing.T) {
	assert.Equal(t, "a.png", payloadName("a.png"))
	assert.Equal(t, "b.webm", payloadName(`dir\b.webm`))
	assert.Equal(t, "payload", payloadName(""))
	assert.Equal(t, "payload", payloadName(metaFile))
}
