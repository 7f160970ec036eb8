package storage

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"familytree/application/ports"
	pkgerrors "familytree/pkg/errors"
)

var _ ports.KeyValueStore = (*BreakerStore)(nil)

// BreakerConfig holds configuration for the store circuit breaker
type BreakerConfig struct {
	Name        string
	MaxRequests uint32
	Interval    time.Duration
	Timeout     time.Duration
	// ReadyToTrip trips once FailureThreshold of at least MinRequests failed
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns a default configuration for the circuit breaker
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		MaxRequests:      1,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 0.6,
		MinRequests:      3,
	}
}

// BreakerStore guards writes to a durable store with a circuit breaker so a
// backend that keeps failing (a full quota) stops being hit on every autosave.
// Reads pass straight through.
type BreakerStore struct {
	next    ports.KeyValueStore
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps next
func NewBreakerStore(next ports.KeyValueStore, config BreakerConfig, logger *zap.Logger) *BreakerStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("store circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// a missing key or a cancelled context says nothing about backend health
			return err == nil || pkgerrors.IsNotFound(err) || errors.Is(err, context.Canceled)
		},
	})
	return &BreakerStore{next: next, breaker: cb}
}

// Get passes through
func (s *BreakerStore) Get(ctx context.Context, key string) ([]byte, error) {
	return s.next.Get(ctx, key)
}

// Set runs through the breaker
func (s *BreakerStore) Set(ctx context.Context, key string, value []byte) error {
	return s.execute("set", func() error { return s.next.Set(ctx, key, value) })
}

// Delete runs through the breaker
func (s *BreakerStore) Delete(ctx context.Context, key string) error {
	return s.execute("delete", func() error { return s.next.Delete(ctx, key) })
}

// Keys passes through
func (s *BreakerStore) Keys(ctx context.Context, prefix string) ([]string, error) {
	return s.next.Keys(ctx, prefix)
}

// State exposes the breaker state
func (s *BreakerStore) State() gobreaker.State {
	return s.breaker.State()
}

func (s *BreakerStore) execute(op string, fn func() error) error {
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, fn()
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return pkgerrors.NewStorageError(op, err).WithCode("BREAKER_OPEN")
	}
	return err
}
