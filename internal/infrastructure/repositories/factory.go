package repositories

import (
	"context"

	"overlaycam/internal/core/ports"
	"overlaycam/internal/infrastructure/repositories/file"
	"overlaycam/internal/infrastructure/repositories/memory"
	redisrepo "overlaycam/internal/infrastructure/repositories/redis"
	"overlaycam/pkg/config"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RepositoryFactory creates the artifact store with fallback to memory.
type RepositoryFactory struct {
	backend     string
	cfg         *config.Config
	redisClient *redis.Client
	logger      *zap.SugaredLogger
}

// NewRepositoryFactory connects to Redis when the redis backend is selected.
// A failed connection degrades to the memory backend instead of failing.
func NewRepositoryFactory(ctx context.Context, cfg *config.Config, logger *zap.SugaredLogger) (*RepositoryFactory, error) {
	factory := &RepositoryFactory{
		backend: cfg.Artifacts.Backend,
		cfg:     cfg,
		logger:  logger,
	}

	if factory.backend == "redis" {
		client, err := redisrepo.NewRedisClient(ctx, redisrepo.ClientConfig{
			Address:  cfg.Redis.Address,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			PoolSize: cfg.Redis.PoolSize,
		}, logger)
		if err != nil {
			logger.Warnw("failed to connect to Redis, falling back to memory artifacts",
				"error", err,
			)
			factory.backend = "memory"
		} else {
			factory.redisClient = client
		}
	}

	logger.Infow("artifact backend selected", "backend", factory.backend)
	return factory, nil
}

// Backend reports the backend actually in use after any fallback.
func (f *RepositoryFactory) Backend() string {
	return f.backend
}

// CreateArtifactRepository creates the configured store. A directory that
// cannot be created also falls back to memory.
func (f *RepositoryFactory) CreateArtifactRepository() ports.ArtifactRepository {
	switch f.backend {
	case "redis":
		return redisrepo.NewRedisArtifactRepository(f.redisClient, f.cfg.Artifacts.TTL, f.cfg.Artifacts.MaxItems)
	case "dir":
		repo, err := file.NewFileArtifactRepository(f.cfg.Artifacts.Dir)
		if err == nil {
			return repo
		}
		f.logger.Warnw("failed to open artifact directory, falling back to memory artifacts",
			"dir", f.cfg.Artifacts.Dir,
			"error", err,
		)
		f.backend = "memory"
	}
	return memory.NewMemoryArtifactRepository(f.cfg.Artifacts.MaxItems)
}

// Close closes Redis connection if used
func (f *RepositoryFactory) Close() error {
	if f.redisClient != nil {
		return redisrepo.CloseRedisClient(f.redisClient)
	}
	return nil
}

// HealthCheck checks Redis connection health
func (f *RepositoryFactory) HealthCheck(ctx context.Context) error {
	if f.redisClient != nil {
		return f.redisClient.Ping(ctx).Err()
	}
	return nil
}
