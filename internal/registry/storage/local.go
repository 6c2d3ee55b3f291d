package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Local stores blobs as files under a base directory, sharded by the first
// two characters of the id to keep directories small.
type Local struct {
	baseDir string
}

// NewLocal creates a local filesystem store rooted at baseDir.
func NewLocal(baseDir string) (*Local, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}
	return &Local{baseDir: baseDir}, nil
}

func (l *Local) path(id string) (string, error) {
	clean := strings.ReplaceAll(id, "/", "")
	if clean == "" || clean != id {
		return "", fmt.Errorf("invalid storage id %q", id)
	}
	shard := "00"
	if len(clean) >= 2 {
		shard = clean[:2]
	}
	return filepath.Join(l.baseDir, shard, clean), nil
}

func (l *Local) Put(ctx context.Context, id string, reader io.Reader) error {
	p, err := l.path(id)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("failed to create shard directory: %w", err)
	}

	// Write to a temp file and rename so readers never see partial blobs.
	tmp, err := os.CreateTemp(filepath.Dir(p), ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), p); err != nil {
		return fmt.Errorf("failed to finalize blob: %w", err)
	}
	return nil
}

func (l *Local) Get(ctx context.Context, id string) (io.ReadCloser, error) {
	p, err := l.path(id)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}
	return f, nil
}

func (l *Local) GetBytes(ctx context.Context, id string) ([]byte, error) {
	return readAll(ctx, l, id)
}

func (l *Local) Delete(ctx context.Context, id string) error {
	p, err := l.path(id)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}
	return nil
}

func (l *Local) Exists(ctx context.Context, id string) (bool, error) {
	p, err := l.path(id)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}
	return true, nil
}
