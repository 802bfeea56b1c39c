// Package cart implements the persisted shopping cart: an in-memory map of
// product snapshots and quantities that merges repeated adds, saves itself
// through a kvstore.Store after every mutation and notifies subscribers.
//
// Typical usage:
//
//	c := cart.New(ctx, kvstore.Scoped(store, "storefront"))
//	if err := c.AddItem(ctx, p, 2); err != nil && !kvstore.IsPersistenceError(err) {
//		return err
//	}
//	fmt.Println(c.Count(), c.Total())
//
// A *kvstore.PersistenceError means the in-memory mutation succeeded but the
// write did not; the cart stays usable.
package cart
