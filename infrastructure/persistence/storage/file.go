package storage

import (
	"context"
	"errors"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"familytree/application/ports"
	pkgerrors "familytree/pkg/errors"
)

const fileSuffix = ".json"

var _ ports.KeyValueStore = (*FileStore)(nil)

// FileStore keeps one file per key in a directory. Writes go through a
// temporary file and a rename so a crash never leaves a half-written value.
type FileStore struct {
	mu     sync.Mutex
	dir    string
	logger *zap.Logger
}

// NewFileStore creates the directory if needed
func NewFileStore(dir string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, pkgerrors.NewStorageError("mkdir", err).WithDetail("dir", dir)
	}
	logger.Debug("file store opened", zap.String("dir", dir))
	return &FileStore{dir: dir, logger: logger}, nil
}

// Get reads the file for key
func (s *FileStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, pkgerrors.NewNotFoundError("key").WithDetail("key", key)
	}
	if err != nil {
		return nil, pkgerrors.NewStorageError("read", err).WithDetail("key", key)
	}
	return data, nil
}

// Set atomically replaces the file for key
func (s *FileStore) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tmp, err := os.CreateTemp(s.dir, ".tmp-*")
	if err != nil {
		return pkgerrors.NewStorageError("create temp", err).WithDetail("key", key)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		cleanup()
		return pkgerrors.NewStorageError("write", err).WithDetail("key", key)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return pkgerrors.NewStorageError("sync", err).WithDetail("key", key)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return pkgerrors.NewStorageError("close", err).WithDetail("key", key)
	}
	if err := os.Rename(tmpName, s.path(key)); err != nil {
		cleanup()
		return pkgerrors.NewStorageError("rename", err).WithDetail("key", key)
	}
	return nil
}

// Delete removes the file for key
func (s *FileStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return pkgerrors.NewStorageError("delete", err).WithDetail("key", key)
	}
	return nil
}

// Keys lists stored keys with prefix
func (s *FileStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, pkgerrors.NewStorageError("list", err).WithDetail("dir", s.dir)
	}

	var keys []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		key, err := url.PathUnescape(strings.TrimSuffix(name, fileSuffix))
		if err != nil {
			s.logger.Debug("skipping foreign file", zap.String("name", name))
			continue
		}
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *FileStore) path(key string) string {
	return filepath.Join(s.dir, url.PathEscape(key)+fileSuffix)
}
