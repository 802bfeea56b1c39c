package storefront_sdk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/comstore/storefront_sdk_go/internal/config"
	"github.com/comstore/storefront_sdk_go/internal/devseed"
	"github.com/comstore/storefront_sdk_go/internal/httpx"
	"github.com/comstore/storefront_sdk_go/internal/metrics"
	"github.com/comstore/storefront_sdk_go/pkg/cart"
	"github.com/comstore/storefront_sdk_go/pkg/catalog"
	"github.com/comstore/storefront_sdk_go/pkg/kvstore"
	"github.com/comstore/storefront_sdk_go/pkg/kvstore/memory"
	"github.com/comstore/storefront_sdk_go/pkg/kvstore/sqlite"
	"github.com/comstore/storefront_sdk_go/pkg/product"
	productmock "github.com/comstore/storefront_sdk_go/pkg/product/mock"
	"github.com/comstore/storefront_sdk_go/pkg/querycache"
)

const (
	asyncPersistAttempts = 5
	asyncPersistBase     = 50 * time.Millisecond
	asyncPersistMax      = 2 * time.Second
)

// SDK bundles the storefront components. Close releases them.
type SDK struct {
	Products *product.Client
	Cache    *querycache.Cache
	Catalog  *catalog.Catalog
	Cart     *cart.Store

	storage *sqlite.Store
}

// Option configures New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer registers the cache and cart collectors on reg instead of
// the default registerer.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// NewFromEnv builds the SDK from environment variables. It returns the
// resolved mode ("http" or "mock").
func NewFromEnv(ctx context.Context, opts ...Option) (*SDK, string, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, "", fmt.Errorf("storefront_sdk: %w", err)
	}
	return New(ctx, cfg, opts...)
}

// New builds the SDK from cfg.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*SDK, string, error) {
	if err := cfg.Validate(); err != nil {
		return nil, "", fmt.Errorf("storefront_sdk: %w", err)
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	log.SetLevel(cfg.Level())

	products, mode, err := newProducts(cfg)
	if err != nil {
		return nil, "", err
	}

	kv, storage, err := newCartStorage(cfg)
	if err != nil {
		return nil, "", err
	}

	cacheOpts := []querycache.Option{
		querycache.WithMetrics(metrics.NewCacheMetricsWithRegisterer(o.registerer)),
	}
	if cfg.CacheRetention > 0 {
		cacheOpts = append(cacheOpts, querycache.WithRetention(cfg.CacheRetention))
	}
	cache := querycache.New(cacheOpts...)

	cartOpts := []cart.Option{
		cart.WithMetrics(metrics.NewCartMetricsWithRegisterer(o.registerer)),
	}
	if cfg.AsyncPersist {
		cartOpts = append(cartOpts, cart.WithAsyncPersistence(asyncPersistAttempts, asyncPersistBase, asyncPersistMax))
	}

	sdk := &SDK{
		Products: products,
		Cache:    cache,
		Catalog:  catalog.New(products, cache),
		Cart:     cart.New(ctx, kv, cartOpts...),
		storage:  storage,
	}
	log.WithFields(log.Fields{
		"component": "storefront_sdk",
		"mode":      mode,
		"cart_db":   cfg.CartDB,
	}).Debug("storefront sdk ready")
	return sdk, mode, nil
}

func newProducts(cfg config.Config) (*product.Client, string, error) {
	switch cfg.Mode {
	case config.ModeAuto:
		if cfg.BaseURL != "" {
			return newHTTPProducts(cfg)
		}
		return newMockProducts(cfg)
	case config.ModeHTTP:
		if cfg.BaseURL == "" {
			return nil, "", fmt.Errorf("storefront_sdk: HTTP mode requires STOREFRONT_API_BASE_URL")
		}
		return newHTTPProducts(cfg)
	case config.ModeMock:
		return newMockProducts(cfg)
	default:
		return nil, "", fmt.Errorf("storefront_sdk: unsupported STOREFRONT_RUNTIME_MODE value %q", cfg.Mode)
	}
}

func newHTTPProducts(cfg config.Config) (*product.Client, string, error) {
	httpClient, err := httpx.NewClient(cfg.BaseURL, httpOptions(cfg)...)
	if err != nil {
		return nil, "", fmt.Errorf("storefront_sdk: init product HTTP client: %w", err)
	}
	log.WithFields(log.Fields{"base_url": httpClient.BaseURL(), "timeout": httpClient.Timeout()}).Debug("product HTTP client ready")
	return product.NewWithHTTPClient(httpClient), config.ModeHTTP, nil
}

// httpOptions maps cfg onto the product HTTP client. A zero timeout is passed
// through and disables the request deadline.
func httpOptions(cfg config.Config) []httpx.Option {
	opts := []httpx.Option{
		httpx.WithRetryPolicy(httpx.NoRetry),
		httpx.WithLogger(log.WithField("component", "product_http")),
		httpx.WithTimeout(cfg.Timeout),
	}
	if cfg.Token != "" {
		opts = append(opts, httpx.WithBearerToken(cfg.Token))
	}
	return opts
}

func newMockProducts(cfg config.Config) (*product.Client, string, error) {
	m := productmock.New()
	if cfg.MockSeed != "" {
		seed, err := devseed.LoadProductSeed(cfg.MockSeed)
		if err != nil {
			return nil, "", fmt.Errorf("storefront_sdk: load product seed: %w", err)
		}
		if err := m.Seed(seed); err != nil {
			return nil, "", fmt.Errorf("storefront_sdk: apply product seed: %w", err)
		}
	}
	return product.NewWithBackend(m), config.ModeMock, nil
}

func newCartStorage(cfg config.Config) (kvstore.Store, *sqlite.Store, error) {
	if cfg.CartDB == "" {
		return kvstore.Scoped(memory.New(), cfg.CartScope), nil, nil
	}
	db, err := sqlite.Open(cfg.CartDB)
	if err != nil {
		return nil, nil, fmt.Errorf("storefront_sdk: open cart storage: %w", err)
	}
	return kvstore.Scoped(db, cfg.CartScope), db, nil
}

// Close flushes the cart, stops the cache and closes the cart storage.
func (s *SDK) Close(ctx context.Context) error {
	if s == nil {
		return nil
	}
	var errs []error
	if s.Cart != nil {
		if err := s.Cart.Flush(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush cart: %w", err))
		}
		if err := s.Cart.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close cart: %w", err))
		}
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
	if err := s.storage.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close cart storage: %w", err))
	}
	return errors.Join(errs...)
}
