package cart

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/shopspring/decimal"

	"github.com/comstore/storefront_sdk_go/internal/backoff"
	"github.com/comstore/storefront_sdk_go/internal/dispatch"
	"github.com/comstore/storefront_sdk_go/internal/metrics"
	"github.com/comstore/storefront_sdk_go/pkg/kvstore"
	"github.com/comstore/storefront_sdk_go/pkg/product"
)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for restore and persistence warnings.
func WithLogger(logger *log.Entry) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the collectors the cart reports to.
func WithMetrics(m *metrics.CartMetrics) Option {
	return func(s *Store) {
		s.metrics = m
	}
}

// WithKey overrides the storage key (StateKey by default).
func WithKey(key string) Option {
	return func(s *Store) {
		if strings.TrimSpace(key) != "" {
			s.key = key
		}
	}
}

// WithAsyncPersistence makes mutations return as soon as memory is updated.
// A background writer persists the latest snapshot, retrying failed writes up
// to maxAttempts times with exponential backoff between baseDelay and maxDelay.
func WithAsyncPersistence(maxAttempts int, baseDelay, maxDelay time.Duration) Option {
	return func(s *Store) {
		if maxAttempts < 1 {
			maxAttempts = 1
		}
		s.async = &writer{
			backoff:  backoff.New(backoff.Policy{BaseDelay: baseDelay, MaxDelay: maxDelay, Jitter: 0.1}),
			attempts: maxAttempts,
		}
	}
}

// WithPersistErrorHandler registers fn to receive every persistence failure.
func WithPersistErrorHandler(fn func(error)) Option {
	return func(s *Store) {
		s.onPersistErr = fn
	}
}

type subscription struct {
	id uint64
	fn Listener
}

type notification struct {
	snap Snapshot
	subs []subscription
}

func (n notification) deliver() {
	for _, sub := range n.subs {
		sub.fn(n.snap)
	}
}

// Store is a persisted cart. It is safe for concurrent use; all state is
// guarded by a single mutex. Listeners run outside it, one snapshot at a
// time and in version order.
type Store struct {
	kv           kvstore.Store
	key          string
	logger       *log.Entry
	metrics      *metrics.CartMetrics
	onPersistErr func(error)

	mu      sync.Mutex
	items   map[string]Item
	order   []string
	version uint64
	subs    []subscription
	nextSub uint64
	closed  bool

	notes dispatch.Queue[notification]

	// saveMu serializes writes; saved is the newest version in storage.
	saveMu sync.Mutex
	saved  uint64

	async *writer
}

// New creates a cart backed by kv and restores any persisted state. A
// missing, corrupt or unreadable state yields an empty cart; the problem is
// logged and never returned.
func New(ctx context.Context, kv kvstore.Store, opts ...Option) *Store {
	s := &Store{
		kv:     kv,
		key:    StateKey,
		logger: log.WithField("component", "cart"),
		items:  make(map[string]Item),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.restore(ctx)
	if s.async != nil {
		s.async.start(s)
	}
	return s
}

func (s *Store) restore(ctx context.Context) {
	if s.kv == nil {
		return
	}
	state, err := kvstore.GetJSON[State](ctx, s.kv, s.key)
	switch {
	case errors.Is(err, kvstore.ErrNotFound):
		return
	case err != nil:
		s.logger.WithError(err).WithField("key", s.key).Warn("discarding unreadable cart state")
		return
	}

	ids := make([]string, 0, len(state.Items))
	for id, it := range state.Items {
		if it.Product.ID == "" {
			it.Product.ID = id
		}
		if strings.TrimSpace(id) == "" || it.Product.ID != id || it.Quantity < 1 {
			s.logger.WithField("product_id", id).Warn("dropping invalid cart entry")
			continue
		}
		s.items[id] = it
		ids = append(ids, id)
	}
	sort.Strings(ids)
	s.order = ids
	s.metrics.RecordMutation("restore", s.countLocked())
}

// AddItem adds qty units of p. An existing entry keeps its position, gains
// qty and takes p as its new product snapshot.
func (s *Store) AddItem(ctx context.Context, p product.Product, qty int) error {
	if qty < 1 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	if strings.TrimSpace(p.ID) == "" {
		return ErrProductIDRequired
	}
	return s.mutate(ctx, "add", func() bool {
		if it, ok := s.items[p.ID]; ok {
			it.Product = p
			it.Quantity += qty
			s.items[p.ID] = it
			return true
		}
		s.items[p.ID] = Item{Product: p, Quantity: qty}
		s.order = append(s.order, p.ID)
		return true
	})
}

// RemoveItem deletes the entry for id. Removing an absent id is a no-op.
func (s *Store) RemoveItem(ctx context.Context, id string) error {
	return s.mutate(ctx, "remove", func() bool {
		return s.removeLocked(id)
	})
}

// SetQuantity replaces the quantity of id. n <= 0 removes the entry; a
// positive n for an absent id returns ErrNotFound.
func (s *Store) SetQuantity(ctx context.Context, id string, n int) error {
	if n <= 0 {
		return s.mutate(ctx, "remove", func() bool {
			return s.removeLocked(id)
		})
	}
	var missing bool
	err := s.mutate(ctx, "set_quantity", func() bool {
		it, ok := s.items[id]
		if !ok {
			missing = true
			return false
		}
		if it.Quantity == n {
			return false
		}
		it.Quantity = n
		s.items[id] = it
		return true
	})
	if missing {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

// Clear empties the cart.
func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, "clear", func() bool {
		s.items = make(map[string]Item)
		s.order = nil
		return true
	})
}

func (s *Store) removeLocked(id string) bool {
	if _, ok := s.items[id]; !ok {
		return false
	}
	delete(s.items, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// mutate applies fn under the lock and, when fn reports a change, notifies
// listeners and persists the new snapshot. While another goroutine is
// delivering, the snapshot is queued behind it and mutate does not wait.
func (s *Store) mutate(ctx context.Context, op string, fn func() bool) error {
	s.mu.Lock()
	if !fn() {
		s.mu.Unlock()
		return nil
	}
	s.version++
	snap := s.snapshotLocked()
	if len(s.subs) > 0 {
		s.notes.Push(notification{snap: snap, subs: append([]subscription(nil), s.subs...)})
	}
	async := s.async != nil && !s.closed
	s.mu.Unlock()

	s.metrics.RecordMutation(op, snap.Count)
	s.notes.Drain(notification.deliver)

	if async {
		s.async.enqueue(snap)
		return nil
	}
	wrote, err := s.persist(ctx, snap)
	if wrote {
		s.reportPersist(err)
	}
	return err
}

// persist writes snap unless a newer snapshot is already in storage. It
// reports whether a write was attempted.
func (s *Store) persist(ctx context.Context, snap Snapshot) (bool, error) {
	if s.kv == nil {
		return false, nil
	}
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if snap.Version <= s.saved {
		return false, nil
	}

	err := kvstore.PutJSON(ctx, s.kv, s.key, snap.State())
	if err != nil {
		var pe *kvstore.PersistenceError
		if !errors.As(err, &pe) {
			err = &kvstore.PersistenceError{Op: "set", Key: s.key, Err: err}
		}
		return true, err
	}
	s.saved = snap.Version
	return true, nil
}

func (s *Store) reportPersist(err error) {
	s.metrics.RecordPersist(err)
	if err == nil {
		return
	}
	s.logger.WithError(err).WithField("key", s.key).Warn("cart persistence failed")
	if s.onPersistErr != nil {
		s.onPersistErr(err)
	}
}

// Items returns the cart entries in insertion order.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.itemsLocked()
}

// Count returns the sum of all quantities.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countLocked()
}

// Total returns the sum of price times quantity over all entries.
func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := decimal.Zero
	for _, it := range s.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Get returns the entry for id.
func (s *Store) Get(id string) (Item, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	it, ok := s.items[id]
	if !ok {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return it, nil
}

// Snapshot returns a consistent copy of the cart.
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every mutation, in
// subscription order. Snapshots arrive one at a time with increasing versions. The returned function unsubscribes and is idempotent.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	if fn == nil {
		return func() {}
	}
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					break
				}
			}
		})
	}
}

// Flush waits until the latest mutation is in storage. With write-through
// persistence it retries a write that previously failed.
func (s *Store) Flush(ctx context.Context) error {
	s.mu.Lock()
	snap := s.snapshotLocked()
	async := s.async != nil && !s.closed
	s.mu.Unlock()

	if async {
		return s.async.flush(ctx, snap)
	}
	wrote, err := s.persist(ctx, snap)
	if wrote {
		s.reportPersist(err)
	}
	return err
}

// Close flushes pending writes and stops the background writer. Later
// mutations persist synchronously.
func (s *Store) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if s.async == nil {
		return nil
	}
	err := s.async.flush(ctx, snap)
	s.async.stop()
	return err
}

func (s *Store) itemsLocked() []Item {
	out := make([]Item, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.items[id])
	}
	return out
}

func (s *Store) countLocked() int {
	n := 0
	for _, it := range s.items {
		n += it.Quantity
	}
	return n
}

func (s *Store) snapshotLocked() Snapshot {
	items := s.itemsLocked()
	total := decimal.Zero
	count := 0
	for _, it := range items {
		count += it.Quantity
		total = total.Add(it.Subtotal())
	}
	return Snapshot{Items: items, Count: count, Total: total, Version: s.version}
}
