// Package product is the client for the storefront's remote product resource.
// The HTTP surface is a conventional REST collection rooted at /product with
// list, get, create (POST), update (PUT) and delete verbs. The client performs
// exactly one request per call: caching, coalescing and retries are layered
// above it (see package querycache). Failures surface as *NetworkError,
// *HTTPStatusError or *DecodeError.
package product
