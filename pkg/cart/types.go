package cart

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/comstore/storefront_sdk_go/pkg/product"
)

// StateKey is the storage key of the persisted cart.
const StateKey = "cart_state_v1"

var (
	// ErrNotFound is returned when an expected cart entry is absent.
	ErrNotFound = errors.New("cart: item not found")
	// ErrInvalidQuantity is returned when AddItem receives a quantity below one.
	ErrInvalidQuantity = errors.New("cart: quantity must be at least 1")
	// ErrProductIDRequired is returned for products without an id.
	ErrProductIDRequired = errors.New("cart: product id is required")
)

// Item is one cart line: a product snapshot and its quantity (always >= 1).
type Item struct {
	Product  product.Product `json:"product"`
	Quantity int             `json:"qty"`
}

// Subtotal returns price times quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// State is the persisted form of the cart.
type State struct {
	Items map[string]Item `json:"items"`
}

// Snapshot is a consistent read of the cart at one version.
type Snapshot struct {
	Items   []Item
	Count   int
	Total   decimal.Decimal
	Version uint64
}

// State converts the snapshot to its persisted form.
func (s Snapshot) State() State {
	st := State{Items: make(map[string]Item, len(s.Items))}
	for _, it := range s.Items {
		st.Items[it.Product.ID] = it
	}
	return st
}

// Listener observes the cart after each mutation.
type Listener func(Snapshot)
