package source

import (
	"context"
	"fmt"

	"forumsync/internal/config"
	"forumsync/internal/fs"
	"forumsync/internal/importer"
)

// NewSourceFromConfig creates a Source implementation based on the source config type.
func NewSourceFromConfig(ctx context.Context, cfg config.SourceConfig) (importer.Source, error) {
	switch cfg.Type {
	case "filesystem":
		if cfg.Root == "" {
			return nil, fmt.Errorf("filesystem source requires root to be set")
		}
		src, err := fs.NewSource(cfg.Root, cfg.Ignore)
		if err != nil {
			return nil, err
		}
		return src, nil
	case "tarball":
		if cfg.URL == "" {
			return nil, fmt.Errorf("tarball source requires url to be set")
		}
		strip := cfg.StripComponents
		switch {
		case strip == 0:
			strip = 1
		case strip < 0:
			strip = 0
		}
		return NewTarballSource(cfg.URL, cfg.Ignore, WithToken(cfg.Token), WithStripComponents(strip)), nil
	case "s3":
		if cfg.S3Bucket == "" {
			return nil, fmt.Errorf("s3 source requires s3_bucket to be set")
		}
		src, err := NewS3Source(ctx, S3Options{
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Ignore:          cfg.Ignore,
		})
		if err != nil {
			return nil, err
		}
		return src, nil
	case "memory":
		return NewMemorySource(), nil
	default:
		return nil, fmt.Errorf("unknown source type: %s", cfg.Type)
	}
}
