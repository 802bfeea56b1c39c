package kvstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// GetJSON loads key and decodes it into T. Missing keys return ErrNotFound;
// undecodable values return a decode error that is not a PersistenceError.
func GetJSON[T any](ctx context.Context, store Store, key string) (T, error) {
	var value T
	data, err := store.Get(ctx, key)
	if err != nil {
		return value, err
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return value, fmt.Errorf("%w: %s holds no value", ErrNotFound, key)
	}
	if err := json.Unmarshal(trimmed, &value); err != nil {
		return value, fmt.Errorf("kvstore: decode %q: %w", key, err)
	}
	return value, nil
}

// PutJSON encodes value as JSON and stores it under key.
func PutJSON[T any](ctx context.Context, store Store, key string, value T) error {
	data, err := Marshal(value)
	if err != nil {
		return fmt.Errorf("kvstore: encode %q: %w", key, err)
	}
	return store.Set(ctx, key, data)
}

// Marshal encodes v as compact JSON without HTML escaping.
func Marshal(v any) ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
