package cart

import (
	"context"
	"errors"
	"sync"

	"github.com/comstore/storefront_sdk_go/internal/backoff"
)

var errWriterStopped = errors.New("cart: persistence writer stopped")

type flushWaiter struct {
	version uint64
	ch      chan error
}

// writer persists the newest snapshot in the background. Intermediate
// snapshots are skipped when a newer one is queued.
type writer struct {
	backoff  *backoff.Backoff
	attempts int
	store    *Store

	mu      sync.Mutex
	latest  Snapshot
	waiters []flushWaiter

	wake     chan struct{}
	ctx      context.Context
	cancel   context.CancelFunc
	done     chan struct{}
	stopOnce sync.Once
}

func (w *writer) start(s *Store) {
	w.store = s
	w.wake = make(chan struct{}, 1)
	w.done = make(chan struct{})
	w.ctx, w.cancel = context.WithCancel(context.Background())
	go w.loop()
}

func (w *writer) enqueue(snap Snapshot) {
	w.mu.Lock()
	if snap.Version > w.latest.Version {
		w.latest = snap
	}
	w.mu.Unlock()
	w.signal()
}

func (w *writer) signal() {
	select {
	case w.wake <- struct{}{}:
	default:
	}
}

// flush waits until snap, or something newer, has been written.
func (w *writer) flush(ctx context.Context, snap Snapshot) error {
	ch := make(chan error, 1)
	w.mu.Lock()
	if snap.Version > w.latest.Version {
		w.latest = snap
	}
	w.waiters = append(w.waiters, flushWaiter{version: snap.Version, ch: ch})
	w.mu.Unlock()
	w.signal()

	select {
	case err := <-ch:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		select {
		case err := <-ch:
			return err
		default:
			return errWriterStopped
		}
	}
}

func (w *writer) stop() {
	w.stopOnce.Do(func() {
		w.cancel()
		<-w.done
	})
}

func (w *writer) loop() {
	defer close(w.done)
	for {
		select {
		case <-w.ctx.Done():
			w.resolve(^uint64(0), errWriterStopped)
			return
		case <-w.wake:
		}
		w.drain()
	}
}

func (w *writer) drain() {
	for {
		w.mu.Lock()
		snap := w.latest
		w.mu.Unlock()

		attempted := false
		err := w.backoff.Retry(w.ctx, w.attempts, func(ctx context.Context) error {
			wrote, err := w.store.persist(ctx, snap)
			attempted = attempted || wrote
			return err
		})
		if attempted {
			w.store.reportPersist(err)
		}
		w.resolve(snap.Version, err)

		w.mu.Lock()
		more := w.latest.Version > snap.Version
		w.mu.Unlock()
		if !more || w.ctx.Err() != nil {
			return
		}
	}
}

// resolve answers every waiter at or below version.
func (w *writer) resolve(version uint64, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	kept := w.waiters[:0]
	for _, fw := range w.waiters {
		if fw.version <= version {
			fw.ch <- err
			continue
		}
		kept = append(kept, fw)
	}
	w.waiters = kept
}
