package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"familytree/application/ports"
	pkgerrors "familytree/pkg/errors"
)

// storeContract runs the behavior every KeyValueStore must share
func storeContract(t *testing.T, store ports.KeyValueStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, pkgerrors.IsNotFound(err))

	require.NoError(t, store.Set(ctx, "familyTreeData", []byte(`{"a":1}`)))
	require.NoError(t, store.Set(ctx, "familyTreeData_backup_2", []byte("two")))
	require.NoError(t, store.Set(ctx, "familyTreeData_backup_1", []byte("one")))
	require.NoError(t, store.Set(ctx, "other", []byte("x")))

	got, err := store.Get(ctx, "familyTreeData")
	require.NoError(t, err)
	assert.Equal(t, `{"a":1}`, string(got))

	require.NoError(t, store.Set(ctx, "familyTreeData", []byte(`{"a":2}`)))
	got, err = store.Get(ctx, "familyTreeData")
	require.NoError(t, err)
	assert.Equal(t, `{"a":2}`, string(got))

	keys, err := store.Keys(ctx, "familyTreeData_backup_")
	require.NoError(t, err)
	assert.Equal(t, []string{"familyTreeData_backup_1", "familyTreeData_backup_2"}, keys)

	all, err := store.Keys(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 4)

	require.NoError(t, store.Delete(ctx, "familyTreeData_backup_1"))
	require.NoError(t, store.Delete(ctx, "never-existed"))
	keys, err = store.Keys(ctx, "familyTreeData_backup_")
	require.NoError(t, err)
	assert.Equal(t, []string{"familyTreeData_backup_2"}, keys)
}

func TestMemoryStore(t *testing.T) {
	storeContract(t, NewMemoryStore(0))
}

func TestMemoryStore_Quota(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(20)

	require.NoError(t, store.Set(ctx, "k", []byte("0123456789")))
	err := store.Set(ctx, "k2", []byte("0123456789"))
	assert.True(t, pkgerrors.IsQuotaExceeded(err))

	// replacing a value only counts the difference
	require.NoError(t, store.Set(ctx, "k", []byte("0123456789abcdefg")))
	assert.Equal(t, 18, store.Used())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(0)
	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value))
	value[0] = 'z'

	got, _ := store.Get(ctx, "k")
	got[1] = 'z'
	again, _ := store.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryStore_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewMemoryStore(0).Set(ctx, "k", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFileStore(t *testing.T) {
	store, err := NewFileStore(filepath.Join(t.TempDir(), "data"), nil)
	require.NoError(t, err)
	storeContract(t, store)
}

func TestFileStore_EscapesKeys(t *testing.T) {
	ctx := context.Background()
	store, err := NewFileStore(t.TempDir(), nil)
	require.NoError(t, err)

	require.NoError(t, store.Set(ctx, "a/b c", []byte("v")))
	keys, err := store.Keys(ctx, "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"a/b c"}, keys)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(filepath.Join(t.TempDir(), "tree.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	storeContract(t, store)
}

// MockStore is a mock implementation of ports.KeyValueStore
type MockStore struct {
	mock.Mock
}

func (m *MockStore) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockStore) Set(ctx context.Context, key string, value []byte) error {
	return m.Called(ctx, key, value).Error(0)
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	return m.Called(ctx, key).Error(0)
}

func (m *MockStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func TestBreakerStore_OpensAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	next := new(MockStore)
	quota := pkgerrors.NewQuotaExceededError("k", 10, 5)
	next.On("Set", ctx, "k", mock.Anything).Return(quota).Times(3)

	cfg := DefaultBreakerConfig("test")
	cfg.Timeout = time.Hour
	store := NewBreakerStore(next, cfg, nil)

	for i := 0; i < 3; i++ {
		err := store.Set(ctx, "k", []byte("payload"))
		assert.True(t, pkgerrors.IsQuotaExceeded(err))
	}
	assert.Equal(t, gobreaker.StateOpen, store.State())

	err := store.Set(ctx, "k", []byte("payload"))
	require.Error(t, err)
	appErr := pkgerrors.GetAppError(err)
	require.NotNil(t, appErr)
	assert.Equal(t, "BREAKER_OPEN", appErr.Code)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))

	next.AssertNumberOfCalls(t, "Set", 3)
}

func TestBreakerStore_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	next := new(MockStore)
	next.On("Delete", ctx, "gone").Return(pkgerrors.NewNotFoundError("key"))
	next.On("Get", ctx, "k").Return([]byte("v"), nil)

	store := NewBreakerStore(next, DefaultBreakerConfig("test"), nil)
	for i := 0; i < 5; i++ {
		_ = store.Delete(ctx, "gone")
	}
	assert.Equal(t, gobreaker.StateClosed, store.State())

	got, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
}
