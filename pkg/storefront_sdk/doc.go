// Package storefront_sdk wires the storefront client core from environment
// variables: a product client (HTTP or in-memory mock), the query cache, the
// catalog bindings and a persisted cart.
//
// STOREFRONT_RUNTIME_MODE selects the product backend. "auto" (the default)
// uses HTTP when STOREFRONT_API_BASE_URL is set and falls back to a mock
// otherwise; "http" requires the URL; "mock" always uses the in-memory
// service, seeded from STOREFRONT_MOCK_PRODUCT_SEED when given. The cart is
// stored in SQLite when STOREFRONT_CART_DB is set and in memory otherwise.
package storefront_sdk
