package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/JonMunkholm/bowlhouse/internal/config"
)

// Open builds the archive backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.ArchiveConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case config.ArchiveNone, "":
		return Nop{}, nil

	case config.ArchiveLocal:
		local, err := NewLocal(cfg.Dir)
		if err != nil {
			return nil, err
		}
		slog.Info("archiving imports to disk", "dir", cfg.Dir)
		return local, nil

	case config.ArchiveS3:
		remote, err := NewS3(ctx, S3Config{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		})
		if err != nil {
			return nil, err
		}
		slog.Info("archiving imports to s3", "bucket", cfg.S3Bucket, "prefix", cfg.S3Prefix)
		return remote, nil

	default:
		return nil, fmt.Errorf("unknown archive backend %q", cfg.Backend)
	}
}
