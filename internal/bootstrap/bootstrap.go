// Package bootstrap builds the infrastructure shared by the api and migrate binaries.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/gocomet/rider-service/internal/config"
	"github.com/gocomet/rider-service/internal/domain/rider"
	"github.com/gocomet/rider-service/internal/repository/memory"
	"github.com/gocomet/rider-service/internal/repository/postgres"
	"github.com/gocomet/rider-service/pkg/blobstore"
	"github.com/gocomet/rider-service/pkg/cache"
	"github.com/gocomet/rider-service/pkg/database"
	"github.com/gocomet/rider-service/pkg/logger"
)

// Logger creates the application logger
func Logger(cfg *config.Config) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// Postgres opens the connection pool
func Postgres(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	return database.NewPostgresDB(ctx, database.Config{
		Host:        cfg.Database.Host,
		Port:        cfg.Database.Port,
		User:        cfg.Database.User,
		Password:    cfg.Database.Password,
		DBName:      cfg.Database.Name,
		SSLMode:     cfg.Database.SSLMode,
		MaxConns:    cfg.Database.MaxConnections,
		MaxIdle:     cfg.Database.MaxIdleConns,
		MaxLifetime: cfg.Database.MaxLifetime,
	})
}

// Redis connects to Redis
func Redis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	return cache.NewRedisClient(ctx, cache.Config{
		Host:        cfg.Redis.Host,
		Port:        cfg.Redis.Port,
		Password:    cfg.Redis.Password,
		DB:          cfg.Redis.DB,
		MaxRetries:  cfg.Redis.MaxRetries,
		PoolSize:    cfg.Redis.PoolSize,
		MinIdleConn: cfg.Redis.MinIdleConn,
		DialTimeout: cfg.Redis.DialTimeout,
		ReadTimeout: cfg.Redis.ReadTimeout,
	})
}

// Profiles returns the configured profile repository. The returned db is nil for
// the memory driver; callers close it otherwise.
func Profiles(ctx context.Context, cfg *config.Config) (rider.Repository, *sql.DB, error) {
	switch cfg.Storage.Driver {
	case config.StorageMemory:
		return memory.NewProfileRepository(), nil, nil
	case config.StoragePostgres:
		db, err := Postgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := postgres.EnsureSchema(ctx, db); err != nil {
			db.Close()
			return nil, nil, err
		}
		return postgres.NewProfileRepository(db), db, nil
	}
	return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// Blobs returns the configured blob store
func Blobs(ctx context.Context, cfg *config.Config) (blobstore.Store, error) {
	if cfg.BlobStore.Driver == "memory" {
		return blobstore.NewMemoryStore(), nil
	}
	return blobstore.NewS3Store(ctx, blobstore.S3Config{
		Region:        cfg.BlobStore.Region,
		Bucket:        cfg.BlobStore.Bucket,
		Endpoint:      cfg.BlobStore.Endpoint,
		PublicBaseURL: cfg.BlobStore.PublicBaseURL,
	})
}
