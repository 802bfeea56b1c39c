package product_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/comstore/storefront_sdk_go/internal/httpx"
	"github.com/comstore/storefront_sdk_go/pkg/product"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

func newRESTServer(t *testing.T) (*httptest.Server, *[]recordedRequest) {
	t.Helper()
	var (
		mu       sync.Mutex
		requests []recordedRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		requests = append(requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: string(body)})
		mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/product":
			io.WriteString(w, `[{"id":"1","product_name":"Lamp","product_price":"19.90","product_image":"https://img/1.png","product_description":"warm","product_category":"home","updatedAt":"2025-10-01T10:00:00Z"}]`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/product/1":
			io.WriteString(w, `{"id":"1","product_name":"Lamp","product_price":19.9,"updatedAt":"2025-10-01T10:00:00Z"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/api/product/broken":
			io.WriteString(w, `{"id":`)
		case r.Method == http.MethodPost && r.URL.Path == "/api/product":
			var in map[string]any
			json.Unmarshal(body, &in)
			in["id"] = "2"
			in["updatedAt"] = "2025-10-02T10:00:00Z"
			json.NewEncoder(w).Encode(in)
		case r.Method == http.MethodPut && r.URL.Path == "/api/product/1":
			io.WriteString(w, `{"id":"1","product_name":"Desk lamp","product_price":"19.90","updatedAt":"2025-10-03T10:00:00Z"}`)
		case r.Method == http.MethodDelete && r.URL.Path == "/api/product/1":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `"Not found"`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, &requests
}

func TestClientCRUD(t *testing.T) {
	srv, requests := newRESTServer(t)
	client, err := product.New(srv.URL+"/api", httpx.WithBearerToken("123"))
	require.NoError(t, err)
	ctx := context.Background()

	list, err := client.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "Lamp", list[0].Name)
	require.True(t, list[0].Price.Equal(decimal.RequireFromString("19.90")))
	require.Equal(t, "home", list[0].Category)

	got, err := client.Get(ctx, "1")
	require.NoError(t, err)
	require.Equal(t, "19.9", got.Price.String())

	name := "Chair"
	price := decimal.RequireFromString("49.00")
	created, err := client.Create(ctx, product.Patch{Name: &name, Price: &price})
	require.NoError(t, err)
	require.Equal(t, "2", created.ID)
	require.Equal(t, "Chair", created.Name)

	newName := "Desk lamp"
	updated, err := client.Update(ctx, "1", product.Patch{Name: &newName})
	require.NoError(t, err)
	require.Equal(t, "Desk lamp", updated.Name)

	require.NoError(t, client.Delete(ctx, "1"))

	require.Len(t, *requests, 5)
	for _, r := range *requests {
		require.Equal(t, "application/json", r.Header.Get("Content-Type"), r.Method+" "+r.Path)
		require.Equal(t, "Bearer 123", r.Header.Get("Authorization"))
	}
	post := (*requests)[2]
	require.JSONEq(t, `{"product_name":"Chair","product_price":"49"}`, post.Body)
	put := (*requests)[3]
	require.Equal(t, http.MethodPut, put.Method)
	require.JSONEq(t, `{"product_name":"Desk lamp"}`, put.Body)
}

func TestClientStatusError(t *testing.T) {
	srv, _ := newRESTServer(t)
	client, err := product.New(srv.URL + "/api")
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "missing")
	var statusErr *product.HTTPStatusError
	require.True(t, errors.As(err, &statusErr))
	require.Equal(t, http.StatusNotFound, statusErr.Code)
	require.Equal(t, "get", statusErr.Op)
	require.True(t, product.IsNotFound(err))
}

func TestClientDecodeError(t *testing.T) {
	srv, _ := newRESTServer(t)
	client, err := product.New(srv.URL + "/api")
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "broken")
	var decodeErr *product.DecodeError
	require.True(t, errors.As(err, &decodeErr))
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client, err := product.New(url)
	require.NoError(t, err)

	_, err = client.List(context.Background())
	var netErr *product.NetworkError
	require.True(t, errors.As(err, &netErr))
	require.Equal(t, "list", netErr.Op)
}

func TestClientDoesNotRetry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	client, err := product.New(srv.URL)
	require.NoError(t, err)

	_, err = client.List(context.Background())
	require.Error(t, err)
	require.Equal(t, 1, calls)
}

func TestClientListEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"data":[{"id":"a","product_price":"1"},{"id":"b","product_price":"2"}],"total":2,"page":1,"limit":20}`)
	}))
	defer srv.Close()

	client, err := product.New(srv.URL)
	require.NoError(t, err)

	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "b", list[1].ID)
}

func TestClientValidatesBeforeSending(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	defer srv.Close()

	client, err := product.New(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	blank := "  "
	_, err = client.Create(ctx, product.Patch{Name: &blank})
	require.ErrorIs(t, err, product.ErrInvalidPatch)

	_, err = client.Update(ctx, "1", product.Patch{})
	require.ErrorIs(t, err, product.ErrInvalidPatch)

	_, err = client.Get(ctx, " ")
	require.ErrorIs(t, err, product.ErrIDRequired)

	require.ErrorIs(t, client.Delete(ctx, ""), product.ErrIDRequired)
	require.Zero(t, calls)
}

func TestPatchValidation(t *testing.T) {
	name := "Lamp"
	neg := decimal.RequireFromString("-1")
	zero := decimal.Zero
	relative := "/img.png"
	absolute := "https://cdn.example.com/img.png"

	require.ErrorIs(t, product.Patch{Name: &name}.ValidateCreate(), product.ErrInvalidPatch)
	require.ErrorIs(t, product.Patch{Name: &name, Price: &neg}.ValidateCreate(), product.ErrInvalidPatch)
	require.NoError(t, product.Patch{Name: &name, Price: &zero}.ValidateCreate())
	require.ErrorIs(t, product.Patch{ImageURL: &relative}.ValidateUpdate(), product.ErrInvalidPatch)
	require.NoError(t, product.Patch{ImageURL: &absolute}.ValidateUpdate())

	err := product.Patch{}.ValidateUpdate()
	require.True(t, strings.Contains(err.Error(), "no fields"))
}

func TestPatchApplyLeavesOriginalUntouched(t *testing.T) {
	orig := product.Product{ID: "1", Name: "Lamp", Category: "home"}
	name := "Desk lamp"
	patched := product.Patch{Name: &name}.Apply(orig)

	require.Equal(t, "Lamp", orig.Name)
	require.Equal(t, "Desk lamp", patched.Name)
	require.Equal(t, "home", patched.Category)
}

func TestClientListToleratesBlankFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{"id":"p1","product_name":"Lamp","product_price":"","updatedAt":""},
			{"id":"p2","product_name":"Desk","product_price":null,"updatedAt":null},
			{"id":"p3","product_name":"Chair","product_price":"12.5","updatedAt":"2025-01-02T03:04:05Z"}
		]`))
	}))
	defer srv.Close()

	client, err := product.New(srv.URL)
	require.NoError(t, err)

	list, err := client.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.True(t, list[0].Price.IsZero())
	require.True(t, list[0].UpdatedAt.IsZero())
	require.True(t, list[1].Price.IsZero())
	require.True(t, list[2].Price.Equal(decimal.RequireFromString("12.5")))
	require.Equal(t, time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC), list[2].UpdatedAt.UTC())
}

func TestProductRejectsMalformedPrice(t *testing.T) {
	var p product.Product
	err := json.Unmarshal([]byte(`{"id":"p1","product_price":"ten"}`), &p)
	require.ErrorContains(t, err, "product_price")
}
