// Package storage provides the key-value persistence backends that hold
// per-user task collections and identity records, plus the versioned codec
// used to serialize them.
package storage

import (
	"context"
	"fmt"
	"strings"
)

// KVStore is a namespaced key-value store. Get reports found=false for an
// absent key rather than returning an error.
type KVStore interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	Close() error
}

// Well-known keys.
const (
	IdentityKey = "user"
	AccountsKey = "accounts"
	taskPrefix  = "tasks_"
)

// TasksKey returns the key under which userID's task collection is stored.
func TasksKey(userID string) string {
	return taskPrefix + userID
}

// validateKey rejects keys that are empty or could escape a backend's
// namespace (path separators for the file backend).
func validateKey(key string) error {
	if strings.TrimSpace(key) == "" {
		return fmt.Errorf("key must not be empty")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return fmt.Errorf("key %q contains illegal characters", key)
	}
	return nil
}
