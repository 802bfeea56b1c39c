package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/pkg/kvstore"
)

func TestStoreCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()

	_, err := s.Get(ctx, "missing")
	require.ErrorIs(t, err, kvstore.ErrNotFound)

	require.NoError(t, s.Set(ctx, "b", []byte("2")))
	require.NoError(t, s.Set(ctx, "a", []byte("1")))
	v, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, []byte("1"), v)

	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, keys)

	require.NoError(t, s.Delete(ctx, "a"))
	require.NoError(t, s.Delete(ctx, "a"))
	_, err = s.Get(ctx, "a")
	require.ErrorIs(t, err, kvstore.ErrNotFound)
	require.Equal(t, 2, s.Writes())
}

func TestStoreCopiesValues(t *testing.T) {
	ctx := context.Background()
	s := New()
	in := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", in))
	in[0] = 'x'

	out, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(out))
	out[0] = 'y'

	again, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "abc", string(again))
}

func TestStoreFailWith(t *testing.T) {
	ctx := context.Background()
	s := New(WithItems(map[string][]byte{"k": []byte("v")}))
	boom := errors.New("disk full")
	s.FailWith(boom)

	err := s.Set(ctx, "k", []byte("w"))
	var pe *kvstore.PersistenceError
	require.ErrorAs(t, err, &pe)
	require.Equal(t, "set", pe.Op)
	require.ErrorIs(t, err, boom)

	s.FailWith(nil)
	v, err := s.Get(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, "v", string(v))
}

func TestStoreRejectsBlankKey(t *testing.T) {
	_, err := New().Get(context.Background(), " ")
	require.ErrorIs(t, err, kvstore.ErrKeyRequired)
}
