// Package storage stores uploaded files (user avatars) on a local directory
// or an S3-compatible bucket.
package storage

import (
	"context"
	"fmt"
	"io"
)

// Disk is the file storage driver used for uploads.
type Disk interface {
	// Put writes r to path, replacing any existing file.
	Put(ctx context.Context, path string, r io.Reader) error

	Exists(ctx context.Context, path string) bool

	// Delete removes path. A missing file is not an error.
	Delete(ctx context.Context, path string) error

	// URL returns the public URL for path.
	URL(path string) string
}

type Config struct {
	Driver    string
	LocalRoot string
	LocalURL  string
	S3        S3Config
}

// New builds the disk named by cfg.Driver ("local" or "s3").
func New(ctx context.Context, cfg Config) (Disk, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalDisk(cfg.LocalRoot, cfg.LocalURL)
	case "s3":
		return NewS3Disk(ctx, cfg.S3)
	default:
		return nil, fmt.Errorf("storage: unknown driver %q", cfg.Driver)
	}
}
