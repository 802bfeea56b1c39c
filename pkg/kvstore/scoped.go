package kvstore

import (
	"context"
	"strings"
)

const scopeSeparator = "/"

type scoped struct {
	inner  Store
	prefix string
}

// Scoped returns a Store whose keys live under "scope/" in inner. Keys
// returned by Keys have the scope stripped. A blank scope returns inner.
func Scoped(inner Store, scope string) Store {
	scope = strings.Trim(strings.TrimSpace(scope), scopeSeparator)
	if scope == "" {
		return inner
	}
	if s, ok := inner.(*scoped); ok {
		return &scoped{inner: s.inner, prefix: s.prefix + scope + scopeSeparator}
	}
	return &scoped{inner: inner, prefix: scope + scopeSeparator}
}

func (s *scoped) Get(ctx context.Context, key string) ([]byte, error) {
	if strings.TrimSpace(key) == "" {
		return nil, ErrKeyRequired
	}
	return s.inner.Get(ctx, s.prefix+key)
}

func (s *scoped) Set(ctx context.Context, key string, value []byte) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	return s.inner.Set(ctx, s.prefix+key, value)
}

func (s *scoped) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" {
		return ErrKeyRequired
	}
	return s.inner.Delete(ctx, s.prefix+key)
}

func (s *scoped) Keys(ctx context.Context, prefix string) ([]string, error) {
	keys, err := s.inner.Keys(ctx, s.prefix+prefix)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, strings.TrimPrefix(k, s.prefix))
	}
	return out, nil
}
