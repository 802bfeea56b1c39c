// Package catalog binds the product endpoints to the query cache: reads go
// through cache entries tagged by product, and mutations invalidate the
// entries they affect so the next read is fresh.
package catalog
