package storage

import (
	"context"
	"fmt"
	"sync"
)

// MemoryStore is an in-process KVStore. It backs the "memory" backend and
// doubles as a test fake: SetFailWrites makes every Set and Remove fail and
// SetFailReads does the same for Get.
type MemoryStore struct {
	mu         sync.Mutex
	data       map[string][]byte
	writes     int
	failWrites error
	failReads  error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failReads != nil {
		return nil, false, s.failReads
	}
	v, ok := s.data[key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	v := make([]byte, len(value))
	copy(v, value)
	s.data[key] = v
	s.writes++
	return nil
}

func (s *MemoryStore) Remove(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWrites != nil {
		return s.failWrites
	}
	delete(s.data, key)
	s.writes++
	return nil
}

func (s *MemoryStore) Close() error { return nil }

// Writes returns the number of successful Set and Remove calls.
func (s *MemoryStore) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// SetFailWrites toggles write failure under the store's lock.
func (s *MemoryStore) SetFailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWrites = err
}

// SetFailReads toggles read failure under the store's lock.
func (s *MemoryStore) SetFailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failReads = err
}
