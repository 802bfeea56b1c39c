package querycache

import (
	"context"
	"errors"
	"sort"
	"time"
)

// Status is the lifecycle state of a cache entry.
type Status int

const (
	// StatusUninitialized marks an entry that has subscribers but was never queried.
	StatusUninitialized Status = iota
	StatusPending
	StatusFulfilled
	StatusRejected
)

func (s Status) String() string {
	switch s {
	case StatusUninitialized:
		return "uninitialized"
	case StatusPending:
		return "pending"
	case StatusFulfilled:
		return "fulfilled"
	case StatusRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// Tag labels cache entries for bulk invalidation.
type Tag string

// TypeTag returns the tag covering every entry of a resource type, e.g. "Product".
func TypeTag(resource string) Tag {
	return Tag(resource)
}

// IDTag returns the tag of a single resource, e.g. "Product:42".
func IDTag(resource, id string) Tag {
	return Tag(resource + ":" + id)
}

// Entry is a point-in-time snapshot of a cache entry.
type Entry struct {
	Key         string
	Status      Status
	Data        any
	Err         error
	Tags        []Tag
	Stale       bool
	Subscribers int
	UpdatedAt   time.Time
}

// Fresh reports whether the entry holds data that no invalidation has touched.
func (e Entry) Fresh() bool {
	return e.Status == StatusFulfilled && !e.Stale
}

// Fetcher loads the data of one entry.
type Fetcher func(ctx context.Context) (any, error)

// Listener receives entry snapshots on status transitions.
type Listener func(Entry)

var (
	// ErrNotFound is returned when a key has no entry.
	ErrNotFound = errors.New("querycache: entry not found")
	// ErrClosed is the error of entries queried after Close.
	ErrClosed = errors.New("querycache: cache closed")
	// ErrNoFetcher is the error of entries that must fetch but were given no Fetcher.
	ErrNoFetcher = errors.New("querycache: no fetcher for entry")
)

func sortedTags(set map[Tag]struct{}) []Tag {
	if len(set) == 0 {
		return nil
	}
	tags := make([]Tag, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Slice(tags, func(i, j int) bool { return tags[i] < tags[j] })
	return tags
}
