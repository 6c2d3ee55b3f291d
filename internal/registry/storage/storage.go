package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/clawdhub/clawdhub/internal/registry/config"
)

// ErrNotFound is returned when a blob does not exist in the store.
var ErrNotFound = errors.New("blob not found")

// Store holds the bytes of published files, addressed by an opaque storage
// id. The registry never interprets blob contents; integrity is enforced
// upstream by per-file SHA-256 checks.
type Store interface {
	// Put writes a blob under the given id, overwriting any previous value.
	Put(ctx context.Context, id string, reader io.Reader) error
	// Get opens the blob for reading.
	Get(ctx context.Context, id string) (io.ReadCloser, error)
	// GetBytes reads the whole blob into memory.
	GetBytes(ctx context.Context, id string) ([]byte, error)
	// Delete removes the blob; deleting a missing blob is not an error.
	Delete(ctx context.Context, id string) error
	// Exists reports whether a blob is present.
	Exists(ctx context.Context, id string) (bool, error)
}

// New creates a Store based on configuration.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Provider {
	case "s3", "minio":
		return NewS3(S3Config{
			Endpoint:        cfg.S3BaseURL,
			Region:          cfg.S3Region,
			Bucket:          cfg.S3Bucket,
			Prefix:          cfg.S3Prefix,
			AccessKeyID:     cfg.S3Key,
			SecretAccessKey: cfg.S3Secret,
			UsePathStyle:    cfg.Provider == "minio",
		})
	case "local", "":
		return NewLocal(cfg.LocalDir)
	case "memory":
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unsupported storage provider: %s", cfg.Provider)
	}
}

func readAll(ctx context.Context, s Store, id string) ([]byte, error) {
	reader, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	defer reader.Close()
	return io.ReadAll(reader)
}
