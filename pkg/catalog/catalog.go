package catalog

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/comstore/storefront_sdk_go/pkg/product"
	"github.com/comstore/storefront_sdk_go/pkg/querycache"
)

const (
	resource = "Product"
	endpoint = "product"
)

// Tags shared by the product entries.
var (
	ProductTag = querycache.TypeTag(resource)
	ListTag    = querycache.IDTag(resource, "LIST")
)

// prefetchLimit bounds concurrent fetches started by Prefetch.
const prefetchLimit = 4

// Option configures a Catalog.
type Option func(*Catalog)

// WithLogger sets the logger used for mutation traces.
func WithLogger(logger *log.Entry) Option {
	return func(c *Catalog) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Catalog serves products through a query cache.
type Catalog struct {
	products product.Backend
	cache    *querycache.Cache
	logger   *log.Entry
}

// New returns a Catalog reading from products and caching in cache.
func New(products product.Backend, cache *querycache.Cache, opts ...Option) *Catalog {
	c := &Catalog{
		products: products,
		cache:    cache,
		logger:   log.WithField("component", "catalog"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListKey is the cache key of the product list.
func ListKey() querycache.Key {
	return querycache.NewKey(endpoint, nil)
}

// ProductKey is the cache key of one product.
func ProductKey(id string) querycache.Key {
	return querycache.NewKey(endpoint, map[string]any{"id": id})
}

// ProductTagFor returns the tag of a single product entry.
func ProductTagFor(id string) querycache.Tag {
	return querycache.IDTag(resource, id)
}

func (c *Catalog) listFetcher() querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return c.products.List(ctx)
	}
}

func (c *Catalog) productFetcher(id string) querycache.Fetcher {
	return func(ctx context.Context) (any, error) {
		return c.products.Get(ctx, id)
	}
}

// Products returns the product list, fetching it when the cached copy is
// missing or stale.
func (c *Catalog) Products(ctx context.Context) ([]product.Product, error) {
	entry, err := c.cache.Await(ctx, ListKey(), c.listFetcher(), ProductTag, ListTag)
	if err != nil {
		return nil, err
	}
	list, ok := querycache.Data[[]product.Product](entry)
	if !ok {
		return nil, fmt.Errorf("catalog: list entry holds %T", entry.Data)
	}
	return cloneProducts(list), nil
}

// Product returns one product.
func (c *Catalog) Product(ctx context.Context, id string) (product.Product, error) {
	if strings.TrimSpace(id) == "" {
		return product.Product{}, product.ErrIDRequired
	}
	return querycache.Get(ctx, c.cache, ProductKey(id), func(ctx context.Context) (product.Product, error) {
		return c.products.Get(ctx, id)
	}, ProductTag, ProductTagFor(id))
}

// QueryProducts starts or joins the list fetch without waiting. The entry
// carries a copy of the cached list.
func (c *Catalog) QueryProducts() querycache.Entry {
	return cloneListEntry(c.cache.Query(ListKey(), c.listFetcher(), ProductTag, ListTag))
}

// QueryProduct starts or joins the fetch of one product without waiting.
func (c *Catalog) QueryProduct(id string) querycache.Entry {
	return c.cache.Query(ProductKey(id), c.productFetcher(id), ProductTag, ProductTagFor(id))
}

// WatchProducts subscribes fn to the list entry and starts a fetch when the
// list is not fresh. Each delivery carries its own copy of the list.
func (c *Catalog) WatchProducts(fn querycache.Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	unsubscribe = c.cache.Subscribe(ListKey(), func(e querycache.Entry) {
		fn(cloneListEntry(e))
	})
	c.QueryProducts()
	return unsubscribe
}

// WatchProduct subscribes fn to the entry of one product and starts a fetch
// when it is not fresh.
func (c *Catalog) WatchProduct(id string, fn querycache.Listener) (unsubscribe func()) {
	unsubscribe = c.cache.Subscribe(ProductKey(id), fn)
	c.QueryProduct(id)
	return unsubscribe
}

// CreateProduct creates a product and invalidates every product entry.
func (c *Catalog) CreateProduct(ctx context.Context, patch product.Patch) (product.Product, error) {
	created, err := querycache.Mutate(ctx, c.cache, func(ctx context.Context) (product.Product, error) {
		return c.products.Create(ctx, patch)
	}, ProductTag)
	if err != nil {
		return product.Product{}, err
	}
	c.logger.WithField("product_id", created.ID).Debug("product created")
	return created, nil
}

// UpdateProduct patches a product and invalidates its entry and the list.
func (c *Catalog) UpdateProduct(ctx context.Context, id string, patch product.Patch) (product.Product, error) {
	if strings.TrimSpace(id) == "" {
		return product.Product{}, product.ErrIDRequired
	}
	updated, err := querycache.Mutate(ctx, c.cache, func(ctx context.Context) (product.Product, error) {
		return c.products.Update(ctx, id, patch)
	}, ProductTagFor(id), ListTag)
	if err != nil {
		return product.Product{}, err
	}
	c.logger.WithField("product_id", id).Debug("product updated")
	return updated, nil
}

// DeleteProduct deletes a product and invalidates its entry and the list.
func (c *Catalog) DeleteProduct(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return product.ErrIDRequired
	}
	_, err := c.cache.Mutate(ctx, func(ctx context.Context) (any, error) {
		return nil, c.products.Delete(ctx, id)
	}, ProductTagFor(id), ListTag)
	if err != nil {
		return err
	}
	c.logger.WithField("product_id", id).Debug("product deleted")
	return nil
}

// Prefetch warms the entries of ids concurrently. It returns the first
// failure once every fetch has settled; failed entries stay rejected.
func (c *Catalog) Prefetch(ctx context.Context, ids ...string) error {
	var g errgroup.Group
	g.SetLimit(prefetchLimit)
	for _, id := range ids {
		if strings.TrimSpace(id) == "" {
			continue
		}
		g.Go(func() error {
			if _, err := c.Product(ctx, id); err != nil {
				return fmt.Errorf("catalog: prefetch %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}

func cloneProducts(in []product.Product) []product.Product {
	if in == nil {
		return []product.Product{}
	}
	out := make([]product.Product, len(in))
	copy(out, in)
	return out
}

func cloneListEntry(e querycache.Entry) querycache.Entry {
	if list, ok := e.Data.([]product.Product); ok {
		e.Data = cloneProducts(list)
	}
	return e
}
