package storage

import (
	"context"
	"sort"
	"strings"
	"sync"

	"familytree/application/ports"
	pkgerrors "familytree/pkg/errors"
)

var _ ports.KeyValueStore = (*MemoryStore)(nil)

// MemoryStore is an in-process key/value store with an optional byte quota,
// mirroring the behavior of browser local storage.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string][]byte
	quota int
}

// NewMemoryStore creates a store. A quota of zero means unlimited.
func NewMemoryStore(quota int) *MemoryStore {
	return &MemoryStore{
		data:  make(map[string][]byte),
		quota: quota,
	}
}

// Get returns a copy of the value for key
func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, pkgerrors.NewNotFoundError("key").WithDetail("key", key)
	}
	return append([]byte(nil), v...), nil
}

// Set writes value under key, failing with QUOTA_EXCEEDED when the total would pass the quota
func (s *MemoryStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		used := s.usedLocked() - len(s.data[key])
		if used+len(key)+len(value) > s.quota {
			return pkgerrors.NewQuotaExceededError(key, len(value), s.quota)
		}
	}
	s.data[key] = append([]byte(nil), value...)
	return nil
}

// Delete removes key
func (s *MemoryStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, key)
	return nil
}

// Keys lists keys with prefix in lexicographic order
func (s *MemoryStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Used returns the bytes currently held, keys included
func (s *MemoryStore) Used() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.usedLocked()
}

func (s *MemoryStore) usedLocked() int {
	total := 0
	for k, v := range s.data {
		total += len(k) + len(v)
	}
	return total
}
