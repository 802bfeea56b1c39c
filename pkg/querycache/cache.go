package querycache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/comstore/storefront_sdk_go/internal/dispatch"
	"github.com/comstore/storefront_sdk_go/internal/metrics"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for cache traffic.
func WithLogger(logger *log.Entry) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics sets the collectors the cache reports to.
func WithMetrics(m *metrics.CacheMetrics) Option {
	return func(c *Cache) {
		c.metrics = m
	}
}

// WithRetention enables eviction of entries that have had no subscribers for
// longer than d. A background janitor prunes every d until Close.
func WithRetention(d time.Duration) Option {
	return func(c *Cache) {
		if d > 0 {
			c.retention = d
		}
	}
}

// WithClock overrides the clock used for retention bookkeeping.
func WithClock(fn func() time.Time) Option {
	return func(c *Cache) {
		if fn != nil {
			c.now = fn
		}
	}
}

// WithRefetchOnInvalidate makes invalidated entries that have subscribers
// refetch immediately instead of on their next query.
func WithRefetchOnInvalidate(enabled bool) Option {
	return func(c *Cache) {
		c.refetchOnInvalidate = enabled
	}
}

// Cache is a keyed, tag-invalidated query cache. It is safe for concurrent use.
type Cache struct {
	mu      sync.Mutex
	entries map[string]*entry
	nextSub uint64
	closed  bool

	// notes holds listener calls queued under mu, delivered in that order.
	notes dispatch.Queue[notification]

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger              *log.Entry
	metrics             *metrics.CacheMetrics
	retention           time.Duration
	refetchOnInvalidate bool
	now                 func() time.Time
}

type entry struct {
	id        string
	status    Status
	data      any
	err       error
	tags      map[Tag]struct{}
	stale     bool
	gen       uint64
	flight    *flight
	fetch     Fetcher
	subs      []subscription
	updatedAt time.Time
	lastUsed  time.Time
}

type flight struct {
	gen    uint64
	done   chan struct{}
	result Entry
}

type subscription struct {
	id uint64
	fn Listener
}

// notification is one transition announced to the listeners subscribed when
// it happened.
type notification struct {
	listeners []Listener
	entry     Entry
}

type notifications []notification

// New creates an empty cache.
func New(opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		entries: make(map[string]*entry),
		ctx:     ctx,
		cancel:  cancel,
		logger:  log.WithField("component", "query-cache"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.retention > 0 {
		c.wg.Add(1)
		go c.janitor()
	}
	return c
}

// Query returns the entry for key without blocking. A fresh or pending entry
// is returned as is; otherwise a fetch is started and the entry is returned
// in pending state, still holding any previous data.
func (c *Cache) Query(key Key, fetch Fetcher, tags ...Tag) Entry {
	snap, _ := c.query(key, fetch, tags)
	return snap
}

// Await queries key and waits for the in-flight fetch, if any, to resolve.
// ctx bounds only the wait; the fetch keeps running for other callers. A
// rejected entry is returned together with its error.
func (c *Cache) Await(ctx context.Context, key Key, fetch Fetcher, tags ...Tag) (Entry, error) {
	snap, fl := c.query(key, fetch, tags)
	if fl != nil {
		select {
		case <-fl.done:
			snap = fl.result
		case <-ctx.Done():
			return snap, ctx.Err()
		}
	}
	if snap.Status == StatusRejected {
		return snap, snap.Err
	}
	return snap, nil
}

func (c *Cache) query(key Key, fetch Fetcher, tags []Tag) (Entry, *flight) {
	id := key.String()

	c.mu.Lock()
	e := c.entryLocked(id)
	for _, t := range tags {
		e.tags[t] = struct{}{}
	}
	if fetch != nil {
		e.fetch = fetch
	}
	e.lastUsed = c.now()

	var (
		notes notifications
		start func()
	)
	switch {
	case e.flight != nil, e.status == StatusFulfilled && !e.stale:
		c.metrics.RecordHit()
	default:
		c.metrics.RecordMiss()
		notes, start = c.startLocked(e)
	}
	snap := e.snapshot()
	fl := e.flight
	c.notes.Push(notes...)
	c.mu.Unlock()

	c.notes.Drain(notification.deliver)
	if start != nil {
		start()
	}
	return snap, fl
}

// startLocked moves e to pending and returns the transition to announce and
// a function launching the fetch. Callers queue the transition before
// releasing the lock, so the pending state always reaches listeners ahead of
// the fetch result.
func (c *Cache) startLocked(e *entry) (notifications, func()) {
	switch {
	case c.closed:
		e.status, e.err = StatusRejected, ErrClosed
		return e.notificationLocked(), nil
	case e.fetch == nil:
		e.status, e.err = StatusRejected, ErrNoFetcher
		return e.notificationLocked(), nil
	}

	f := &flight{gen: e.gen, done: make(chan struct{})}
	e.flight = f
	e.status = StatusPending
	e.err = nil
	fetch := e.fetch
	c.wg.Add(1)
	c.logger.WithField("key", e.id).Debug("fetch started")
	return e.notificationLocked(), func() {
		go c.run(e, f, fetch)
	}
}

func (c *Cache) run(e *entry, f *flight, fetch Fetcher) {
	defer c.wg.Done()

	data, err := safeFetch(c.ctx, fetch)

	c.mu.Lock()
	var (
		notes notifications
		start func()
	)
	if c.entries[e.id] == e && e.flight == f {
		e.flight = nil
		if err != nil {
			e.status, e.err = StatusRejected, err
		} else {
			e.status, e.data, e.err = StatusFulfilled, data, nil
		}
		// Invalidated while in flight: keep the data but refetch on the next read.
		e.stale = e.gen != f.gen
		e.updatedAt = c.now()
		f.result = e.snapshot()
		notes = e.notificationLocked()
		if e.stale && c.refetchOnInvalidate && len(e.subs) > 0 {
			next, launch := c.startLocked(e)
			notes = append(notes, next...)
			start = launch
		}
	} else {
		f.result = Entry{Key: e.id, Status: StatusFulfilled, Data: data, Err: err, UpdatedAt: c.now()}
		if err != nil {
			f.result.Status = StatusRejected
		}
	}
	c.notes.Push(notes...)
	c.mu.Unlock()

	close(f.done)
	c.metrics.RecordFetch(err)
	logger := c.logger.WithField("key", e.id)
	if err != nil {
		logger.WithError(err).Debug("fetch rejected")
	} else {
		logger.Debug("fetch fulfilled")
	}

	c.notes.Drain(notification.deliver)
	if start != nil {
		start()
	}
}

func safeFetch(ctx context.Context, fetch Fetcher) (data any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("querycache: fetch panicked: %v", r)
		}
	}()
	return fetch(ctx)
}

// Mutate runs fetch and then, whether or not it succeeded, invalidates every
// entry tagged with one of invalidates.
func (c *Cache) Mutate(ctx context.Context, fetch Fetcher, invalidates ...Tag) (any, error) {
	if fetch == nil {
		return nil, errors.New("querycache: mutation fetcher is nil")
	}
	data, err := safeFetch(ctx, fetch)
	n := c.Invalidate(invalidates...)
	c.logger.WithFields(log.Fields{"tags": invalidates, "invalidated": n}).Debug("mutation settled")
	return data, err
}

// Invalidate marks every entry tagged with one of tags stale and returns how
// many entries matched. A fetch already in flight for a matched entry still
// stores its result, but the entry stays stale.
func (c *Cache) Invalidate(tags ...Tag) int {
	if len(tags) == 0 {
		return 0
	}

	c.mu.Lock()
	var (
		notes  notifications
		starts []func()
		n      int
	)
	for _, e := range c.entries {
		if !e.taggedAny(tags) {
			continue
		}
		n++
		e.gen++
		e.stale = true
		if c.refetchOnInvalidate && e.flight == nil && len(e.subs) > 0 && e.fetch != nil {
			note, start := c.startLocked(e)
			notes = append(notes, note...)
			if start != nil {
				starts = append(starts, start)
			}
		}
	}
	c.notes.Push(notes...)
	c.mu.Unlock()

	c.metrics.RecordInvalidated(n)
	c.notes.Drain(notification.deliver)
	for _, start := range starts {
		start()
	}
	return n
}

// Subscribe registers fn for status transitions of key and returns a function
// that removes it. Subscribing to an unknown key creates an uninitialized
// entry so later queries are delivered.
func (c *Cache) Subscribe(key Key, fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	id := key.String()

	c.mu.Lock()
	e := c.entryLocked(id)
	c.nextSub++
	subID := c.nextSub
	e.subs = append(e.subs, subscription{id: subID, fn: fn})
	e.lastUsed = c.now()
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			for i, s := range e.subs {
				if s.id == subID {
					e.subs = append(e.subs[:i:i], e.subs[i+1:]...)
					break
				}
			}
			e.lastUsed = c.now()
		})
	}
}

// Peek returns the current entry for key without fetching.
func (c *Cache) Peek(key Key) (Entry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key.String()]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotFound, key.String())
	}
	return e.snapshot(), nil
}

// Len returns the number of entries.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Prune evicts entries with no subscribers and no in-flight fetch that were
// last used longer ago than the retention window. With no retention
// configured every such entry is evicted.
func (c *Cache) Prune() int {
	c.mu.Lock()
	cutoff := c.now().Add(-c.retention)
	n := 0
	for id, e := range c.entries {
		if len(e.subs) > 0 || e.flight != nil || e.lastUsed.After(cutoff) {
			continue
		}
		delete(c.entries, id)
		n++
	}
	size := len(c.entries)
	c.mu.Unlock()

	if n > 0 {
		c.metrics.RecordEvicted(n)
		c.metrics.SetEntries(size)
		c.logger.WithField("evicted", n).Debug("pruned idle entries")
	}
	return n
}

// Close stops the janitor, cancels the context of in-flight fetches and waits
// for them to settle. Queries after Close reject with ErrClosed.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.mu.Unlock()

	c.cancel()
	c.wg.Wait()
}

func (c *Cache) janitor() {
	defer c.wg.Done()
	ticker := time.NewTicker(c.retention)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}

func (c *Cache) entryLocked(id string) *entry {
	e, ok := c.entries[id]
	if !ok {
		e = &entry{id: id, tags: make(map[Tag]struct{})}
		c.entries[id] = e
		c.metrics.SetEntries(len(c.entries))
	}
	return e
}

func (e *entry) taggedAny(tags []Tag) bool {
	for _, t := range tags {
		if _, ok := e.tags[t]; ok {
			return true
		}
	}
	return false
}

func (e *entry) snapshot() Entry {
	return Entry{
		Key:         e.id,
		Status:      e.status,
		Data:        e.data,
		Err:         e.err,
		Tags:        sortedTags(e.tags),
		Stale:       e.stale,
		Subscribers: len(e.subs),
		UpdatedAt:   e.updatedAt,
	}
}

func (e *entry) notificationLocked() notifications {
	if len(e.subs) == 0 {
		return nil
	}
	listeners := make([]Listener, len(e.subs))
	for i, s := range e.subs {
		listeners[i] = s.fn
	}
	return notifications{{listeners: listeners, entry: e.snapshot()}}
}

func (n notification) deliver() {
	for _, fn := range n.listeners {
		fn(n.entry)
	}
}
