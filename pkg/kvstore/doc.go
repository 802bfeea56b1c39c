// Package kvstore is the persistence adapter of the storefront client: a small
// key/value contract with durable (SQLite) and in-memory backends, key
// scoping, and JSON helpers. Backend failures are reported as
// *PersistenceError so callers can tell storage trouble apart from their own
// errors.
package kvstore
