package mock_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/pkg/product"
	"github.com/comstore/storefront_sdk_go/pkg/product/mock"
)

func TestMockCRUDThroughClient(t *testing.T) {
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	m := mock.New(
		mock.WithClock(func() time.Time { return now }),
		mock.WithIDGenerator(func() string { return "p1" }),
	)
	client := product.NewWithBackend(m)
	ctx := context.Background()

	name := "Lamp"
	price := decimal.RequireFromString("100")
	created, err := client.Create(ctx, product.Patch{Name: &name, Price: &price})
	require.NoError(t, err)
	require.Equal(t, "p1", created.ID)
	require.Equal(t, now, created.UpdatedAt)

	now = now.Add(time.Hour)
	category := "home"
	updated, err := client.Update(ctx, "p1", product.Patch{Category: &category})
	require.NoError(t, err)
	require.Equal(t, "home", updated.Category)
	require.Equal(t, "Lamp", updated.Name)
	require.Equal(t, now, updated.UpdatedAt)

	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, client.Delete(ctx, "p1"))
	require.Zero(t, m.Len())
	require.Equal(t, 1, m.Calls("delete"))
}

func TestMockNotFound(t *testing.T) {
	m := mock.New()
	ctx := context.Background()

	_, err := m.Get(ctx, "nope")
	require.True(t, product.IsNotFound(err))

	_, err = m.Update(ctx, "nope", product.Patch{})
	require.True(t, product.IsNotFound(err))

	require.True(t, product.IsNotFound(m.Delete(ctx, "nope")))
}

func TestMockSeedKeepsOrder(t *testing.T) {
	m := mock.New()
	require.NoError(t, m.Seed([]product.Product{{ID: "b"}, {ID: "a"}, {ID: "b", Name: "again"}}))

	list, err := m.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[0].ID)
	require.Equal(t, "again", list[0].Name)
	require.Equal(t, "a", list[1].ID)

	require.Error(t, m.Seed([]product.Product{{Name: "no id"}}))
}

func TestMockCanceledContext(t *testing.T) {
	m := mock.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.List(ctx)
	var netErr *product.NetworkError
	require.True(t, errors.As(err, &netErr))
	require.ErrorIs(t, err, context.Canceled)
}

func TestMockCreateRejectsInvalidPatch(t *testing.T) {
	m := mock.New()
	_, err := m.Create(context.Background(), product.Patch{})
	var statusErr *product.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusBadRequest, statusErr.Code)
}

func TestMockUpdateRejectsInvalidPatch(t *testing.T) {
	ctx := context.Background()
	m := mock.New()
	require.NoError(t, m.Seed([]product.Product{{ID: "p1", Name: "Lamp", Price: decimal.RequireFromString("10")}}))

	negative := decimal.RequireFromString("-1")
	for name, patch := range map[string]product.Patch{
		"empty":          {},
		"negative price": {Price: &negative},
	} {
		_, err := m.Update(ctx, "p1", patch)
		var statusErr *product.HTTPStatusError
		require.True(t, errors.As(err, &statusErr), name)
		require.Equal(t, http.StatusBadRequest, statusErr.Code, name)
	}

	got, err := m.Get(ctx, "p1")
	require.NoError(t, err)
	require.True(t, got.Price.Equal(decimal.RequireFromString("10")))
}
