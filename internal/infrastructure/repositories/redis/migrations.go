package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const schemaVersionKey = "overlaycam:schema:version"

type migration struct {
	version     int
	description string
	up          func(ctx context.Context, client *redis.Client) error
}

// Versions are applied in order and never edited once released.
var migrations = []migration{
	{1, "prune index entries whose artifact expired", pruneOrphanedIndex},
}

// Migrate brings the artifact keyspace up to the latest schema version.
func Migrate(ctx context.Context, client *redis.Client, logger *zap.SugaredLogger) error {
	current, err := client.Get(ctx, schemaVersionKey).Int()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range migrations {
		if m.version <= current {
			continue
		}
		if logger != nil {
			logger.Infow("running redis migration", "version", m.version, "description", m.description)
		}
		if err := m.up(ctx, client); err != nil {
			return fmt.Errorf("migration %d failed: %w", m.version, err)
		}
		if err := client.Set(ctx, schemaVersionKey, m.version, 0).Err(); err != nil {
			return fmt.Errorf("failed to record schema version %d: %w", m.version, err)
		}
		current = m.version
	}
	return nil
}

func pruneOrphanedIndex(ctx context.Context, client *redis.Client) error {
	index := keyPrefix + "index"
	ids, err := client.ZRange(ctx, index, 0, -1).Result()
	if err != nil || len(ids) == 0 {
		return err
	}

	exists := make([]*redis.IntCmd, len(ids))
	_, err = client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			exists[i] = pipe.Exists(ctx, keyPrefix+id+":meta")
		}
		return nil
	})
	if err != nil {
		return err
	}

	var orphans []interface{}
	for i, cmd := range exists {
		if cmd.Val() == 0 {
			orphans = append(orphans, ids[i])
		}
	}
	if len(orphans) == 0 {
		return nil
	}
	return client.ZRem(ctx, index, orphans...).Err()
}
