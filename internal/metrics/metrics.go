// Package metrics holds the Prometheus collectors of the query cache and the cart.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// CacheMetrics tracks query cache traffic.
type CacheMetrics struct {
	hits          prometheus.Counter
	misses        prometheus.Counter
	fetches       *prometheus.CounterVec
	invalidations prometheus.Counter
	evictions     prometheus.Counter
	entries       prometheus.Gauge
}

// NewCacheMetrics registers cache collectors on the default registerer.
func NewCacheMetrics() *CacheMetrics {
	return NewCacheMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCacheMetricsWithRegisterer registers cache collectors on registerer,
// reusing collectors that are already registered.
func NewCacheMetricsWithRegisterer(registerer prometheus.Registerer) *CacheMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &CacheMetrics{
		hits: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_query_cache_hits_total",
			Help: "Queries answered from a fresh or in-flight cache entry",
		}),
		misses: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_query_cache_misses_total",
			Help: "Queries that had to start a fetch",
		}),
		fetches: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_query_cache_fetches_total",
			Help: "Completed fetches grouped by result",
		}, []string{"result"}),
		invalidations: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_query_cache_invalidated_entries_total",
			Help: "Entries marked stale by tag invalidation",
		}),
		evictions: registerCounter(registerer, prometheus.CounterOpts{
			Name: "storefront_query_cache_evictions_total",
			Help: "Entries evicted after the retention window",
		}),
		entries: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_query_cache_entries",
			Help: "Entries currently held by the cache",
		}),
	}
}

// RecordHit counts a query served without a new fetch.
func (m *CacheMetrics) RecordHit() {
	if m == nil {
		return
	}
	m.hits.Inc()
}

// RecordMiss counts a query that started a fetch.
func (m *CacheMetrics) RecordMiss() {
	if m == nil {
		return
	}
	m.misses.Inc()
}

// RecordFetch counts a finished fetch.
func (m *CacheMetrics) RecordFetch(err error) {
	if m == nil {
		return
	}
	result := "fulfilled"
	if err != nil {
		result = "rejected"
	}
	m.fetches.WithLabelValues(result).Inc()
}

// RecordInvalidated counts entries marked stale.
func (m *CacheMetrics) RecordInvalidated(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.invalidations.Add(float64(n))
}

// RecordEvicted counts pruned entries.
func (m *CacheMetrics) RecordEvicted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.evictions.Add(float64(n))
}

// SetEntries reports the current number of entries.
func (m *CacheMetrics) SetEntries(n int) {
	if m == nil {
		return
	}
	m.entries.Set(float64(n))
}

// CartMetrics tracks cart mutations and persistence.
type CartMetrics struct {
	mutations *prometheus.CounterVec
	persists  *prometheus.CounterVec
	items     prometheus.Gauge
}

// NewCartMetrics registers cart collectors on the default registerer.
func NewCartMetrics() *CartMetrics {
	return NewCartMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewCartMetricsWithRegisterer registers cart collectors on registerer.
func NewCartMetricsWithRegisterer(registerer prometheus.Registerer) *CartMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &CartMetrics{
		mutations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_mutations_total",
			Help: "Cart mutations grouped by operation",
		}, []string{"op"}),
		persists: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "storefront_cart_persist_total",
			Help: "Cart persistence writes grouped by result",
		}, []string{"result"}),
		items: registerGauge(registerer, prometheus.GaugeOpts{
			Name: "storefront_cart_items",
			Help: "Total quantity of items in the cart",
		}),
	}
}

// RecordMutation counts a cart mutation and updates the item gauge.
func (m *CartMetrics) RecordMutation(op string, count int) {
	if m == nil {
		return
	}
	m.mutations.WithLabelValues(op).Inc()
	m.items.Set(float64(count))
}

// RecordPersist counts a persistence write.
func (m *CartMetrics) RecordPersist(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.persists.WithLabelValues(result).Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerGauge(registerer prometheus.Registerer, opts prometheus.GaugeOpts) prometheus.Gauge {
	collector := prometheus.NewGauge(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Gauge)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register gauge %q: %v", opts.Name, err))
	}
	return collector
}
