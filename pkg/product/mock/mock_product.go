// Package mock provides an in-memory product service that behaves like the
// remote REST resource, including 404s for unknown ids.
package mock

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/comstore/storefront_sdk_go/pkg/product"
)

// Mock implements product.Backend in memory. It is safe for concurrent use.
type Mock struct {
	mu    sync.RWMutex
	items map[string]product.Product
	order []string
	calls map[string]int
	now   func() time.Time
	newID func() string
}

// Option configures the mock instance.
type Option func(*Mock)

// WithClock overrides the clock used to stamp UpdatedAt (useful in tests).
func WithClock(fn func() time.Time) Option {
	return func(m *Mock) {
		if fn != nil {
			m.now = fn
		}
	}
}

// WithIDGenerator overrides the id generator used by Create.
func WithIDGenerator(fn func() string) Option {
	return func(m *Mock) {
		if fn != nil {
			m.newID = fn
		}
	}
}

// New creates an empty mock service.
func New(opts ...Option) *Mock {
	m := &Mock{
		items: make(map[string]product.Product),
		calls: make(map[string]int),
		now: func() time.Time {
			return time.Now().UTC()
		},
		newID: func() string {
			return uuid.NewString()
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Seed loads initial products, replacing any with the same id.
func (m *Mock) Seed(products []product.Product) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("mock product: seed entry missing id")
		}
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = m.now()
		}
		if _, ok := m.items[p.ID]; !ok {
			m.order = append(m.order, p.ID)
		}
		m.items[p.ID] = p
	}
	return nil
}

// Calls returns how many times the named operation ("list", "get", "create",
// "update", "delete") was invoked.
func (m *Mock) Calls(op string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[op]
}

// Len returns the number of stored products.
func (m *Mock) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

// List returns all products in creation order.
func (m *Mock) List(ctx context.Context) ([]product.Product, error) {
	if err := m.enter(ctx, "list"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]product.Product, 0, len(m.order))
	for _, id := range m.order {
		out = append(out, m.items[id])
	}
	return out, nil
}

// Get returns one product or a 404 HTTPStatusError.
func (m *Mock) Get(ctx context.Context, id string) (product.Product, error) {
	if err := m.enter(ctx, "get"); err != nil {
		return product.Product{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.items[id]
	if !ok {
		return product.Product{}, notFound("get", id)
	}
	return p, nil
}

// Create stores a new product built from the patch.
func (m *Mock) Create(ctx context.Context, patch product.Patch) (product.Product, error) {
	if err := m.enter(ctx, "create"); err != nil {
		return product.Product{}, err
	}
	if err := patch.ValidateCreate(); err != nil {
		return product.Product{}, &product.HTTPStatusError{Op: "create", Code: http.StatusBadRequest, Body: []byte(err.Error())}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p := patch.Apply(product.Product{ID: m.newID(), UpdatedAt: m.now()})
	m.items[p.ID] = p
	m.order = append(m.order, p.ID)
	return p, nil
}

// Update patches an existing product. An invalid patch yields a 400 and an
// unknown id a 404 HTTPStatusError.
func (m *Mock) Update(ctx context.Context, id string, patch product.Patch) (product.Product, error) {
	if err := m.enter(ctx, "update"); err != nil {
		return product.Product{}, err
	}
	if err := patch.ValidateUpdate(); err != nil {
		return product.Product{}, &product.HTTPStatusError{Op: "update", Code: http.StatusBadRequest, Body: []byte(err.Error())}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.items[id]
	if !ok {
		return product.Product{}, notFound("update", id)
	}
	p = patch.Apply(p)
	p.UpdatedAt = m.now()
	m.items[id] = p
	return p, nil
}

// Delete removes a product or returns a 404 HTTPStatusError.
func (m *Mock) Delete(ctx context.Context, id string) error {
	if err := m.enter(ctx, "delete"); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.items[id]; !ok {
		return notFound("delete", id)
	}
	delete(m.items, id)
	for i, existing := range m.order {
		if existing == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *Mock) enter(ctx context.Context, op string) error {
	m.mu.Lock()
	m.calls[op]++
	m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return &product.NetworkError{Op: op, Err: err}
	}
	return nil
}

func notFound(op, id string) error {
	return &product.HTTPStatusError{Op: op, Code: http.StatusNotFound, Body: []byte(fmt.Sprintf("%q not found", id))}
}
