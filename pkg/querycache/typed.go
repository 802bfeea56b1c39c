package querycache

import (
	"context"
	"errors"
	"fmt"
)

// Get awaits key and returns its data as T.
func Get[T any](ctx context.Context, c *Cache, key Key, fetch func(ctx context.Context) (T, error), tags ...Tag) (T, error) {
	var zero T
	if fetch == nil {
		return zero, ErrNoFetcher
	}
	entry, err := c.Await(ctx, key, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		return v, err
	}, tags...)
	if err != nil {
		return zero, err
	}
	return as[T](entry)
}

// Mutate runs fetch through (*Cache).Mutate and returns its result as T.
func Mutate[T any](ctx context.Context, c *Cache, fetch func(ctx context.Context) (T, error), invalidates ...Tag) (T, error) {
	var zero T
	if fetch == nil {
		return zero, errors.New("querycache: mutation fetcher is nil")
	}
	data, err := c.Mutate(ctx, func(ctx context.Context) (any, error) {
		v, err := fetch(ctx)
		return v, err
	}, invalidates...)
	if err != nil {
		return zero, err
	}
	v, ok := data.(T)
	if !ok {
		return zero, fmt.Errorf("querycache: mutation returned %T, not %T", data, zero)
	}
	return v, nil
}

// Data returns the entry's data as T. The boolean is false when the entry
// holds no data of that type yet.
func Data[T any](entry Entry) (T, bool) {
	v, ok := entry.Data.(T)
	return v, ok
}

func as[T any](entry Entry) (T, error) {
	v, ok := entry.Data.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("querycache: entry %s holds %T, not %T", entry.Key, entry.Data, zero)
	}
	return v, nil
}
