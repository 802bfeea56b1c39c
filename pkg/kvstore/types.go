package kvstore

import (
	"context"
	"errors"
	"fmt"
)

// Store is a flat key/value store. Implementations must be safe for
// concurrent use and must copy values on the way in and out.
type Store interface {
	// Get returns the value stored under key or an error matching ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// Keys lists the keys starting with prefix in ascending order.
	Keys(ctx context.Context, prefix string) ([]string, error)
}

var (
	// ErrNotFound is returned when a key is missing.
	ErrNotFound = errors.New("kvstore: not found")
	// ErrKeyRequired is returned for blank keys.
	ErrKeyRequired = errors.New("kvstore: key is required")
)

// PersistenceError reports that the storage itself failed (unavailable,
// full, closed). It never wraps ErrNotFound.
type PersistenceError struct {
	Op  string
	Key string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("kvstore: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("kvstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// IsPersistenceError reports whether err carries a *PersistenceError.
func IsPersistenceError(err error) bool {
	var pe *PersistenceError
	return errors.As(err, &pe)
}
