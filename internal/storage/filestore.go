package storage

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// fileStore keeps one file per key under a directory. Writes go through a
// temp file and rename while holding a per-key flock, so two processes
// writing the same user namespace never interleave.
type fileStore struct {
	dir string
}

// NewFileStore creates a KVStore backed by files in dir. The directory is
// created lazily on first write.
func NewFileStore(dir string) KVStore {
	return &fileStore{dir: dir}
}

func (s *fileStore) valuePath(key string) string {
	return filepath.Join(s.dir, key+".yaml")
}

func (s *fileStore) lockPath(key string) string {
	return filepath.Join(s.dir, "."+key+".lock")
}

func (s *fileStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if err := validateKey(key); err != nil {
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	data, err := os.ReadFile(s.valuePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s: %w", key, err)
	}
	return data, true, nil
}

func (s *fileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := os.MkdirAll(s.dir, 0o750); err != nil {
		return fmt.Errorf("writing %s: creating directory: %w", key, err)
	}

	unlock, err := lockFile(s.lockPath(key))
	if err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	defer func() { _ = unlock() }()

	tmp, err := os.CreateTemp(s.dir, "."+key+".*.tmp")
	if err != nil {
		return fmt.Errorf("writing %s: creating temp file: %w", key, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: closing temp file: %w", key, err)
	}
	if err := os.Rename(tmpName, s.valuePath(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: replacing file: %w", key, err)
	}
	return nil
}

func (s *fileStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return nil
	}

	unlock, err := lockFile(s.lockPath(key))
	if err != nil {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	defer func() { _ = unlock() }()

	if err := os.Remove(s.valuePath(key)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", key, err)
	}
	return nil
}

func (s *fileStore) Close() error { return nil }
