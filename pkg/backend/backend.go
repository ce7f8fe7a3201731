// Package backend builds the storage driver and event publisher named by the
// ispoc configuration. It is shared by every command that runs a server.
package backend

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/papercomputeco/ispoc/pkg/config"
	"github.com/papercomputeco/ispoc/pkg/dotdir"
	"github.com/papercomputeco/ispoc/pkg/eventstream"
	"github.com/papercomputeco/ispoc/pkg/eventstream/kafka"
	"github.com/papercomputeco/ispoc/pkg/eventstream/nop"
	"github.com/papercomputeco/ispoc/pkg/storage"
	"github.com/papercomputeco/ispoc/pkg/storage/inmemory"
	"github.com/papercomputeco/ispoc/pkg/storage/redis"
	"github.com/papercomputeco/ispoc/pkg/storage/sqlite"
)

const (
	// EnvSQLitePath overrides the default database location.
	EnvSQLitePath = "ISPOC_SQLITE"

	defaultDBName = "ispoc.db"
)

// ResolveSQLitePath picks the database file: the explicit path, then
// $ISPOC_SQLITE, then ispoc.db inside the resolved .ispoc/ directory.
func ResolveSQLitePath(path, configDir string) (string, error) {
	if path != "" {
		return path, nil
	}

	if env := strings.TrimSpace(os.Getenv(EnvSQLitePath)); env != "" {
		return env, nil
	}

	dir, err := dotdir.NewManager().Target(configDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, defaultDBName), nil
}

// NewStorageDriver opens the audit log backend selected by cfg.Driver.
func NewStorageDriver(ctx context.Context, cfg config.StorageConfig, configDir string, logger *zap.Logger) (storage.Driver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Driver {
	case config.StorageDriverSQLite, "":
		path, err := ResolveSQLitePath(cfg.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}

		driver, err := sqlite.NewDriver(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite driver: %w", err)
		}
		logger.Info("using SQLite storage", zap.String("path", path))
		return driver, nil

	case config.StorageDriverRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("storage.redis_url is required for the redis driver")
		}

		driver, err := redis.NewDriver(ctx, redis.Config{
			URL:    cfg.RedisURL,
			Prefix: cfg.RedisPrefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Redis driver: %w", err)
		}
		logger.Info("using Redis storage", zap.String("prefix", cfg.RedisPrefix))
		return driver, nil

	case config.StorageDriverMemory:
		logger.Info("using in-memory storage")
		return inmemory.NewDriver(), nil

	default:
		return nil, fmt.Errorf("unknown storage driver: %q (available: sqlite, redis, memory)", cfg.Driver)
	}
}

// NewPublisher builds the turn event publisher selected by cfg.Provider.
func NewPublisher(cfg config.EventStreamConfig, logger *zap.Logger) (eventstream.Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	switch cfg.Provider {
	case config.EventStreamNop, "":
		return nop.NewPublisher(), nil

	case config.EventStreamKafka:
		pub, err := kafka.NewPublisher(kafka.Config{
			Brokers: SplitList(cfg.Brokers),
			Topic:   cfg.Topic,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		logger.Info("publishing turn events to kafka",
			zap.String("brokers", cfg.Brokers),
			zap.String("topic", cfg.Topic),
		)
		return pub, nil

	default:
		return nil, fmt.Errorf("unknown event stream provider: %q (available: nop, kafka)", cfg.Provider)
	}
}

// SplitList splits a comma separated list, dropping blanks.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
