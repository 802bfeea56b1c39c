package product

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/comstore/storefront_sdk_go/internal/httpx"
	"github.com/comstore/storefront_sdk_go/internal/restapi"
)

const collectionPath = "product"

// Backend performs the raw resource operations. The HTTP backend talks to the
// REST service; package mock provides an in-memory implementation.
type Backend interface {
	List(ctx context.Context) ([]Product, error)
	Get(ctx context.Context, id string) (Product, error)
	Create(ctx context.Context, patch Patch) (Product, error)
	Update(ctx context.Context, id string, patch Patch) (Product, error)
	Delete(ctx context.Context, id string) error
}

// Client provides access to the remote product resource.
type Client struct {
	backend Backend
}

// New constructs a Client bound to the provided base URL. Requests are sent
// once, without retries, unless an httpx.WithRetryPolicy option says otherwise.
func New(baseURL string, opts ...httpx.Option) (*Client, error) {
	opts = append([]httpx.Option{httpx.WithRetryPolicy(httpx.NoRetry)}, opts...)
	cl, err := httpx.NewClient(baseURL, opts...)
	if err != nil {
		return nil, err
	}
	return NewWithHTTPClient(cl), nil
}

// NewWithHTTPClient wraps an existing httpx.Client.
func NewWithHTTPClient(httpClient *httpx.Client) *Client {
	return &Client{backend: &httpBackend{client: httpClient}}
}

// NewWithBackend allows callers to supply a custom backend (e.g., mocks).
func NewWithBackend(b Backend) *Client {
	return &Client{backend: b}
}

// List returns every product.
func (c *Client) List(ctx context.Context) ([]Product, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.backend.List(ctx)
}

// Get returns the product with the given id.
func (c *Client) Get(ctx context.Context, id string) (Product, error) {
	if err := c.ready(); err != nil {
		return Product{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrIDRequired
	}
	return c.backend.Get(ctx, id)
}

// Create validates the patch and creates a product from it.
func (c *Client) Create(ctx context.Context, patch Patch) (Product, error) {
	if err := c.ready(); err != nil {
		return Product{}, err
	}
	if err := patch.ValidateCreate(); err != nil {
		return Product{}, err
	}
	return c.backend.Create(ctx, patch)
}

// Update validates the patch and applies it to the product with the given id.
func (c *Client) Update(ctx context.Context, id string, patch Patch) (Product, error) {
	if err := c.ready(); err != nil {
		return Product{}, err
	}
	if strings.TrimSpace(id) == "" {
		return Product{}, ErrIDRequired
	}
	if err := patch.ValidateUpdate(); err != nil {
		return Product{}, err
	}
	return c.backend.Update(ctx, id, patch)
}

// Delete removes the product with the given id.
func (c *Client) Delete(ctx context.Context, id string) error {
	if err := c.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return ErrIDRequired
	}
	return c.backend.Delete(ctx, id)
}

func (c *Client) ready() error {
	if c == nil || c.backend == nil {
		return errors.New("product: client is nil")
	}
	return nil
}

type httpBackend struct {
	client *httpx.Client
}

func (b *httpBackend) List(ctx context.Context) ([]Product, error) {
	data, err := b.exchange(ctx, "list", http.MethodGet, collectionPath, nil)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := restapi.DecodeData(data, &products); err != nil {
		return nil, &DecodeError{Op: "list", Err: err}
	}
	if products == nil {
		products = []Product{}
	}
	return products, nil
}

func (b *httpBackend) Get(ctx context.Context, id string) (Product, error) {
	data, err := b.exchange(ctx, "get", http.MethodGet, itemPath(id), nil)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct("get", data)
}

func (b *httpBackend) Create(ctx context.Context, patch Patch) (Product, error) {
	data, err := b.exchange(ctx, "create", http.MethodPost, collectionPath, patch)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct("create", data)
}

func (b *httpBackend) Update(ctx context.Context, id string, patch Patch) (Product, error) {
	data, err := b.exchange(ctx, "update", http.MethodPut, itemPath(id), patch)
	if err != nil {
		return Product{}, err
	}
	return decodeProduct("update", data)
}

func (b *httpBackend) Delete(ctx context.Context, id string) error {
	_, err := b.exchange(ctx, "delete", http.MethodDelete, itemPath(id), nil)
	return err
}

func (b *httpBackend) exchange(ctx context.Context, op, method, path string, body any) ([]byte, error) {
	if b == nil || b.client == nil {
		return nil, fmt.Errorf("product: http backend not configured")
	}
	req := &httpx.Request{Method: method, Path: path}
	if body != nil {
		reader, err := httpx.JSONBody(body)
		if err != nil {
			return nil, fmt.Errorf("product: %s: encode body: %w", op, err)
		}
		req.Body = reader
	}

	resp, err := b.client.Do(ctx, req)
	if err != nil {
		return nil, classify(op, err)
	}
	data, err := httpx.ReadAllAndClose(resp.Body)
	if err != nil {
		return nil, &NetworkError{Op: op, Err: err}
	}
	return data, nil
}

func classify(op string, err error) error {
	var httpErr *httpx.HTTPError
	if errors.As(err, &httpErr) {
		return &HTTPStatusError{Op: op, Code: httpErr.StatusCode, Body: httpErr.Body}
	}
	var transportErr *httpx.TransportError
	if errors.As(err, &transportErr) {
		return &NetworkError{Op: op, Err: transportErr}
	}
	return err
}

func decodeProduct(op string, data []byte) (Product, error) {
	var p Product
	if err := restapi.DecodeData(data, &p); err != nil {
		return Product{}, &DecodeError{Op: op, Err: err}
	}
	if strings.TrimSpace(p.ID) == "" {
		return Product{}, &DecodeError{Op: op, Err: errors.New("response has no product id")}
	}
	return p, nil
}

func itemPath(id string) string {
	return collectionPath + "/" + url.PathEscape(id)
}
