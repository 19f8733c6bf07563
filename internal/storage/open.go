package storage

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/valter-silva-au/taskclock/pkg/models"
)

// Open builds the KVStore selected by cfg. Relative paths are resolved
// against basePath; an empty path falls back to the backend's default
// location under basePath.
func Open(ctx context.Context, basePath string, cfg models.StorageConfig) (KVStore, error) {
	switch cfg.Backend {
	case models.BackendFile, "":
		return NewFileStore(resolvePath(basePath, cfg.Path, "data")), nil
	case models.BackendSQLite:
		return OpenSQLiteStore(resolvePath(basePath, cfg.Path, "taskclock.db"))
	case models.BackendRedis:
		addr := cfg.RedisAddr
		if addr == "" {
			addr = "localhost:6379"
		}
		return OpenRedisStore(ctx, addr, cfg.RedisPrefix)
	case models.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("opening storage: unknown backend %q", cfg.Backend)
	}
}

func resolvePath(basePath, path, fallback string) string {
	if path == "" {
		return filepath.Join(basePath, fallback)
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(basePath, path)
}
