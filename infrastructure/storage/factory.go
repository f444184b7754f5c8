package storage

import (
	"fmt"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/storage/adapters/fs"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/storage/adapters/s3"
)

// CreateObjectStore builds the single storage backend selected by config
func CreateObjectStore(cfg *config.Config, obs ports.Observability) (ports.ObjectStore, error) {
	logger, err := obs.LoggerScoped("storage.factory")
	if err != nil {
		return nil, fmt.Errorf("failed to get logger: %w", err)
	}

	switch cfg.Adapters.Storage {
	case "s3":
		logger.Info("Creating S3 storage adapter",
			"bucket", cfg.Storage.BucketOrPath,
			"region", cfg.Storage.S3.Region)
		return s3.New(&cfg.Storage, obs)

	case "filesystem":
		logger.Info("Creating filesystem storage adapter",
			"path", cfg.Storage.BucketOrPath)
		return fs.NewStorage(cfg.Storage.BucketOrPath, obs)

	default:
		return nil, fmt.Errorf("unsupported storage adapter: %s", cfg.Adapters.Storage)
	}
}
