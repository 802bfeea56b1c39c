package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/internal/httpx"
	"github.com/comstore/storefront_sdk_go/pkg/product"
	productmock "github.com/comstore/storefront_sdk_go/pkg/product/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T, cfg serverConfig, seed ...product.Product) *httptest.Server {
	t.Helper()
	store := productmock.New()
	require.NoError(t, store.Seed(seed))
	logger := log.New()
	logger.SetOutput(io.Discard)
	srv := httptest.NewServer(newRouter(store, cfg, log.NewEntry(logger)))
	t.Cleanup(srv.Close)
	return srv
}

func TestClientRoundTripAgainstSandbox(t *testing.T) {
	srv := newTestServer(t, serverConfig{token: "tkn"})
	client, err := product.New(srv.URL, httpx.WithBearerToken("tkn"))
	require.NoError(t, err)
	ctx := context.Background()

	name, price := "Lamp", decimal.RequireFromString("19.90")
	created, err := client.Create(ctx, product.Patch{Name: &name, Price: &price})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	got, err := client.Get(ctx, created.ID)
	require.NoError(t, err)
	require.True(t, got.Equal(created))

	category := "home"
	updated, err := client.Update(ctx, created.ID, product.Patch{Category: &category})
	require.NoError(t, err)
	require.Equal(t, "home", updated.Category)

	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, client.Delete(ctx, created.ID))
	_, err = client.Get(ctx, created.ID)
	require.True(t, product.IsNotFound(err))
}

func TestSandboxRequiresToken(t *testing.T) {
	srv := newTestServer(t, serverConfig{token: "tkn"})
	client, err := product.New(srv.URL, httpx.WithBearerToken("wrong"))
	require.NoError(t, err)

	_, err = client.List(context.Background())
	var statusErr *product.HTTPStatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusUnauthorized, statusErr.Code)
}

func TestSandboxFailureInjection(t *testing.T) {
	srv := newTestServer(t, serverConfig{
		fail:   failConfig{rate: 0.5, code: http.StatusServiceUnavailable},
		chance: func() float64 { return 0.1 },
	})
	resp, err := http.Get(srv.URL + "/product")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestSandboxListPaginationAndFilter(t *testing.T) {
	seed := []product.Product{
		{ID: "a", Name: "A", Category: "home"},
		{ID: "b", Name: "B", Category: "garden"},
		{ID: "c", Name: "C", Category: "home"},
	}
	srv := newTestServer(t, serverConfig{}, seed...)

	resp, err := http.Get(srv.URL + "/product?limit=2&page=2")
	require.NoError(t, err)
	defer resp.Body.Close()
	var page listResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&page))
	require.Equal(t, 3, page.Total)
	require.Len(t, page.Data, 1)
	require.Equal(t, "c", page.Data[0].ID)

	resp2, err := http.Get(srv.URL + "/product?category=HOME")
	require.NoError(t, err)
	defer resp2.Body.Close()
	var filtered listResponse
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&filtered))
	require.Equal(t, 2, filtered.Total)
}

func TestSandboxRejectsInvalidCreate(t *testing.T) {
	srv := newTestServer(t, serverConfig{})
	resp, err := http.Post(srv.URL+"/product", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSandboxRejectsInvalidUpdate(t *testing.T) {
	srv := newTestServer(t, serverConfig{}, product.Product{ID: "p1", Name: "Lamp", Price: decimal.RequireFromString("10")})

	for _, body := range []string{`{}`, `{"product_price":-5}`} {
		req, err := http.NewRequest(http.MethodPut, srv.URL+"/product/p1", strings.NewReader(body))
		require.NoError(t, err)
		req.Header.Set("Content-Type", "application/json")
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
	}
}

func TestParseFailConfig(t *testing.T) {
	cfg, err := parseFailConfig("")
	require.NoError(t, err)
	require.Zero(t, cfg.rate)

	cfg, err = parseFailConfig("rate=0.25, code=503")
	require.NoError(t, err)
	require.Equal(t, failConfig{rate: 0.25, code: 503}, cfg)

	cfg, err = parseFailConfig("rate=1")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, cfg.code)

	for _, raw := range []string{"rate", "rate=x", "code=200", "rate=2", "speed=1"} {
		_, err := parseFailConfig(raw)
		require.Error(t, err, raw)
	}
}
