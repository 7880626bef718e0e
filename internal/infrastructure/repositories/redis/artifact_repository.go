package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"overlaycam/internal/core/domain"
	"overlaycam/internal/core/ports"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "overlaycam:artifact:"

// RedisArtifactRepository keeps metadata and payload under separate keys so
// List never transfers payloads. Both keys expire after ttl; the index is a
// sorted set scored by creation time and is pruned lazily.
type RedisArtifactRepository struct {
	client   *redis.Client
	prefix   string
	ttl      time.Duration
	maxItems int
}

func NewRedisArtifactRepository(client *redis.Client, ttl time.Duration, maxItems int) ports.ArtifactRepository {
	return &RedisArtifactRepository{
		client:   client,
		prefix:   keyPrefix,
		ttl:      ttl,
		maxItems: maxItems,
	}
}

func (r *RedisArtifactRepository) metaKey(id domain.ArtifactID) string {
	return r.prefix + string(id) + ":meta"
}

func (r *RedisArtifactRepository) dataKey(id domain.ArtifactID) string {
	return r.prefix + string(id) + ":data"
}

func (r *RedisArtifactRepository) indexKey() string {
	return r.prefix + "index"
}

func (r *RedisArtifactRepository) Save(ctx context.Context, artifact *domain.Artifact) error {
	if artifact == nil || artifact.ID == "" {
		return fmt.Errorf("artifact id must not be empty")
	}

	meta, err := json.Marshal(artifact)
	if err != nil {
		return fmt.Errorf("failed to marshal artifact: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.metaKey(artifact.ID), meta, r.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to set artifact in Redis: %w", err)
	}
	if !ok {
		return fmt.Errorf("artifact already exists: %s", artifact.ID)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.dataKey(artifact.ID), artifact.Data, r.ttl)
		pipe.ZAdd(ctx, r.indexKey(), redis.Z{
			Score:  float64(artifact.CreatedAt.UnixNano()),
			Member: string(artifact.ID),
		})
		return nil
	})
	if err != nil {
		r.client.Del(ctx, r.metaKey(artifact.ID))
		return fmt.Errorf("failed to store artifact data in Redis: %w", err)
	}

	return r.trim(ctx)
}

// trim evicts the oldest artifacts beyond maxItems.
func (r *RedisArtifactRepository) trim(ctx context.Context) error {
	if r.maxItems <= 0 {
		return nil
	}
	stale, err := r.client.ZRange(ctx, r.indexKey(), 0, int64(-r.maxItems-1)).Result()
	if err != nil {
		return fmt.Errorf("failed to read artifact index: %w", err)
	}
	for _, id := range stale {
		if err := r.Delete(ctx, domain.ArtifactID(id)); err != nil && err != domain.ErrArtifactNotFound {
			return err
		}
	}
	return nil
}

func (r *RedisArtifactRepository) getMeta(ctx context.Context, id domain.ArtifactID) (*domain.Artifact, error) {
	data, err := r.client.Get(ctx, r.metaKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact from Redis: %w", err)
	}

	var artifact domain.Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("failed to unmarshal artifact: %w", err)
	}
	return &artifact, nil
}

func (r *RedisArtifactRepository) Get(ctx context.Context, id domain.ArtifactID) (*domain.Artifact, error) {
	artifact, err := r.getMeta(ctx, id)
	if err != nil {
		return nil, err
	}

	data, err := r.client.Get(ctx, r.dataKey(id)).Bytes()
	if err == redis.Nil {
		return nil, domain.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact data from Redis: %w", err)
	}
	artifact.Data = data

	return artifact, nil
}

// List returns newest first, without payloads.
func (r *RedisArtifactRepository) List(ctx context.Context) ([]*domain.Artifact, error) {
	ids, err := r.client.ZRevRange(ctx, r.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get artifact index from Redis: %w", err)
	}

	var artifacts []*domain.Artifact
	for _, id := range ids {
		artifact, err := r.getMeta(ctx, domain.ArtifactID(id))
		if err == domain.ErrArtifactNotFound {
			// Expired; drop the index entry.
			r.client.ZRem(ctx, r.indexKey(), id)
			continue
		}
		if err != nil {
			return nil, err
		}
		artifacts = append(artifacts, artifact)
	}

	return artifacts, nil
}

func (r *RedisArtifactRepository) Delete(ctx context.Context, id domain.ArtifactID) error {
	var removed *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		removed = pipe.Del(ctx, r.metaKey(id), r.dataKey(id))
		pipe.ZRem(ctx, r.indexKey(), string(id))
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete artifact from Redis: %w", err)
	}
	if removed.Val() == 0 {
		return domain.ErrArtifactNotFound
	}
	return nil
}
