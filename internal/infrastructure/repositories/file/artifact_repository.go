// Package file stores artifacts on the local filesystem, one directory per
// artifact holding the payload under its download name and a metadata file.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"
)

const metaFile = "artifact.json"

type FileArtifactRepository struct {
	basePath string
}

func NewFileArtifactRepository(basePath string) (ports.ArtifactRepository, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &FileArtifactRepository{
		basePath: basePath,
	}, nil
}

func (r *FileArtifactRepository) dir(id domain.ArtifactID) (string, error) {
	name := string(id)
	if name == "" || !filepath.IsLocal(name) || strings.ContainsAny(name, `/\`) {
		return "", fmt.Errorf("invalid artifact id %q", id)
	}
	return filepath.Join(r.basePath, name), nil
}

// payloadName keeps only the base name so the payload stays inside the
// artifact directory and cannot collide with the metadata file.
func payloadName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, `\`, "/"))
	if base == "." || base == "/" || base == "" || base == metaFile {
		return "payload"
	}
	return base
}

func (r *FileArtifactRepository) Save(ctx context.Context, artifact *domain.Artifact) error {
	if artifact == nil {
		return fmt.Errorf("artifact must not be nil")
	}
	dir, err := r.dir(artifact.ID)
	if err != nil {
		return err
	}

	if err := os.Mkdir(dir, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return fmt.Errorf("artifact already exists: %s", artifact.ID)
		}
		return fmt.Errorf("failed to create artifact directory: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, payloadName(artifact.Name)), artifact.Data, 0644); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to write artifact data: %w", err)
	}

	meta, err := json.Marshal(artifact)
	if err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, metaFile), meta, 0644); err != nil {
		os.RemoveAll(dir)
		return fmt.Errorf("failed to write artifact metadata: %w", err)
	}

	return nil
}

func (r *FileArtifactRepository) readMeta(dir string) (*domain.Artifact, error) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact metadata: %w", err)
	}

	var artifact domain.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	return &artifact, nil
}

func (r *FileArtifactRepository) Get(ctx context.Context, id domain.ArtifactID) (*domain.Artifact, error) {
	dir, err := r.dir(id)
	if err != nil {
		return nil, domain.ErrArtifactNotFound
	}

	artifact, err := r.readMeta(dir)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(dir, payloadName(artifact.Name)))
	if errors.Is(err, os.ErrNotExist) {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact data: %w", err)
	}
	artifact.Data = data

	return artifact, nil
}

// List returns newest first, without payloads. Directories without readable
// metadata are skipped.
func (r *FileArtifactRepository) List(ctx context.Context) ([]*domain.Artifact, error) {
	entries, err := os.ReadDir(r.basePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact directory: %w", err)
	}

	var artifacts []*domain.Artifact
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		artifact, err := r.readMeta(filepath.Join(r.basePath, entry.Name()))
		if err != nil {
			continue
		}
		artifacts = append(artifacts, artifact)
	}

	sort.Slice(artifacts, func(i, j int) bool {
		return artifacts[i].CreatedAt.After(artifacts[j].CreatedAt)
	})
	return artifacts, nil
}

func (r *FileArtifactRepository) Delete(ctx context.Context, id domain.ArtifactID) error {
	dir, err := r.dir(id)
	if err != nil {
		return domain.ErrArtifactNotFound
	}
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return domain.ErrArtifactNotFound
	}
	return os.RemoveAll(dir)
}
