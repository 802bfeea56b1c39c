package product

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is an immutable catalog entry as served by the remote resource.
type Product struct {
	ID          string          `json:"id"`
	Name        string          `json:"product_name"`
	Price       decimal.Decimal `json:"product_price"`
	ImageURL    string          `json:"product_image"`
	Description string          `json:"product_description"`
	Category    string          `json:"product_category"`
	UpdatedAt   time.Time       `json:"updatedAt"`
}

// UnmarshalJSON decodes a product, reading a blank or null product_price as
// zero and a blank or null updatedAt as the zero time.
func (p *Product) UnmarshalJSON(data []byte) error {
	type plain Product
	var raw struct {
		plain
		Price     json.RawMessage `json:"product_price"`
		UpdatedAt json.RawMessage `json:"updatedAt"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := Product(raw.plain)
	if !blankJSON(raw.Price) {
		if err := out.Price.UnmarshalJSON(raw.Price); err != nil {
			return fmt.Errorf("product_price: %w", err)
		}
	}
	if !blankJSON(raw.UpdatedAt) {
		if err := out.UpdatedAt.UnmarshalJSON(raw.UpdatedAt); err != nil {
			return fmt.Errorf("updatedAt: %w", err)
		}
	}
	*p = out
	return nil
}

func blankJSON(v json.RawMessage) bool {
	v = bytes.TrimSpace(v)
	return len(v) == 0 || bytes.Equal(v, []byte("null")) || bytes.Equal(v, []byte(`""`))
}

// Equal reports whether two products carry the same values. Prices compare
// numerically, so "10" equals "10.00".
func (p Product) Equal(o Product) bool {
	return p.ID == o.ID &&
		p.Name == o.Name &&
		p.Price.Equal(o.Price) &&
		p.ImageURL == o.ImageURL &&
		p.Description == o.Description &&
		p.Category == o.Category &&
		p.UpdatedAt.Equal(o.UpdatedAt)
}

// Patch lists the mutable product fields. Nil fields are left untouched.
type Patch struct {
	Name        *string          `json:"product_name,omitempty"`
	Price       *decimal.Decimal `json:"product_price,omitempty"`
	ImageURL    *string          `json:"product_image,omitempty"`
	Description *string          `json:"product_description,omitempty"`
	Category    *string          `json:"product_category,omitempty"`
}

// Empty reports whether no field is set.
func (p Patch) Empty() bool {
	return p.Name == nil && p.Price == nil && p.ImageURL == nil && p.Description == nil && p.Category == nil
}

// ValidateCreate checks a patch used to create a product: name and price are required.
func (p Patch) ValidateCreate() error {
	if p.Name == nil {
		return fmt.Errorf("%w: product_name is required", ErrInvalidPatch)
	}
	if p.Price == nil {
		return fmt.Errorf("%w: product_price is required", ErrInvalidPatch)
	}
	return p.validateFields()
}

// ValidateUpdate checks a patch used to update a product: at least one field must be set.
func (p Patch) ValidateUpdate() error {
	if p.Empty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidPatch)
	}
	return p.validateFields()
}

func (p Patch) validateFields() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return fmt.Errorf("%w: product_name must not be blank", ErrInvalidPatch)
	}
	if p.Price != nil && p.Price.IsNegative() {
		return fmt.Errorf("%w: product_price must be non-negative", ErrInvalidPatch)
	}
	if p.ImageURL != nil && *p.ImageURL != "" {
		u, err := url.Parse(*p.ImageURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%w: product_image must be an absolute URL", ErrInvalidPatch)
		}
	}
	return nil
}

// Apply returns a copy of prod with the patch's fields written over it.
func (p Patch) Apply(prod Product) Product {
	if p.Name != nil {
		prod.Name = *p.Name
	}
	if p.Price != nil {
		prod.Price = *p.Price
	}
	if p.ImageURL != nil {
		prod.ImageURL = *p.ImageURL
	}
	if p.Description != nil {
		prod.Description = *p.Description
	}
	if p.Category != nil {
		prod.Category = *p.Category
	}
	return prod
}

var (
	// ErrIDRequired is returned when an operation is called with a blank id.
	ErrIDRequired = errors.New("product: id is required")
	// ErrInvalidPatch is returned when a patch fails validation before transmission.
	ErrInvalidPatch = errors.New("product: invalid patch")
)

// NetworkError reports a transport failure: the request never produced a response.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("product: %s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response.
type HTTPStatusError struct {
	Op   string
	Code int
	Body []byte
}

func (e *HTTPStatusError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("product: %s: http status %d", e.Op, e.Code)
	}
	return fmt.Sprintf("product: %s: http status %d: %s", e.Op, e.Code, string(e.Body))
}

// DecodeError reports a response payload that could not be decoded.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("product: %s: decode response: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a 404 from the remote resource.
func IsNotFound(err error) bool {
	var statusErr *HTTPStatusError
	return errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound
}
