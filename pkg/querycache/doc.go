// Package querycache caches the results of read operations against remote
// resources and keeps them consistent with writes.
//
// Entries are keyed by the canonical form of a Key (endpoint plus
// parameters, independent of map ordering). At most one fetch per key is in
// flight at any time: concurrent queries for the same key attach to the
// running fetch. Entries carry Tags; a Mutate or Invalidate call marks every
// entry sharing one of the given tags stale, and the next query for a stale
// entry refetches while the previous data stays readable.
//
// Subscribers observe every status transition of a key, one at a time and in
// the order the transitions happened. Unsubscribing only stops delivery; it
// never cancels a fetch shared with other callers.
//
// Entry.Data is the cached value itself. Callers that hand out reference
// types such as slices copy them first.
package querycache
