// Package memory implements kvstore.Store in process memory. It backs the
// cart in mock runtime mode and in tests, and can be told to fail on demand
// to exercise persistence error paths.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/comstore/storefront_sdk_go/pkg/kvstore"
)

// Store is an in-memory kvstore.Store.
type Store struct {
	mu      sync.RWMutex
	items   map[string][]byte
	failErr error
	writes  int
}

var _ kvstore.Store = (*Store)(nil)

// Option configures the store.
type Option func(*Store)

// WithItems preloads raw values.
func WithItems(items map[string][]byte) Option {
	return func(s *Store) {
		for k, v := range items {
			s.items[k] = append([]byte(nil), v...)
		}
	}
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{items: make(map[string][]byte)}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// FailWith makes every subsequent operation fail with err wrapped in a
// *kvstore.PersistenceError. Passing nil restores normal behaviour.
func (s *Store) FailWith(err error) {
	s.mu.Lock()
	s.failErr = err
	s.mu.Unlock()
}

// Writes returns the number of successful Set calls.
func (s *Store) Writes() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writes
}

func (s *Store) check(ctx context.Context, op, key string) error {
	if err := ctx.Err(); err != nil {
		return &kvstore.PersistenceError{Op: op, Key: key, Err: err}
	}
	if s.failErr != nil {
		return &kvstore.PersistenceError{Op: op, Key: key, Err: s.failErr}
	}
	return nil
}

// Get returns a copy of the value stored under key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, kvstore.ErrKeyRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "get", key); err != nil {
		return nil, err
	}
	v, ok := s.items[key]
	if !ok {
		return nil, kvstore.ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

// Set stores a copy of value under key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return kvstore.ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "set", key); err != nil {
		return err
	}
	s.items[key] = append([]byte(nil), value...)
	s.writes++
	return nil
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return kvstore.ErrKeyRequired
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.check(ctx, "delete", key); err != nil {
		return err
	}
	delete(s.items, key)
	return nil
}

// Keys lists keys with the given prefix in ascending order.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.check(ctx, "keys", prefix); err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(s.items))
	for k := range s.items {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
