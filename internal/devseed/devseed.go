// Package devseed loads development fixtures used to seed mock services.
package devseed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/comstore/storefront_sdk_go/pkg/product"
)

// LoadProductSeed reads a JSON file holding either an array of products or a
// {"data": [...]} envelope.
func LoadProductSeed(path string) ([]product.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("devseed: read %s: %w", path, err)
	}
	return DecodeProductSeed(raw)
}

// DecodeProductSeed decodes seed bytes in the LoadProductSeed format.
func DecodeProductSeed(raw []byte) ([]product.Product, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, nil
	}
	if raw[0] == '{' {
		var envelope struct {
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(raw, &envelope); err != nil {
			return nil, fmt.Errorf("devseed: decode envelope: %w", err)
		}
		raw = envelope.Data
	}
	var products []product.Product
	if err := json.Unmarshal(raw, &products); err != nil {
		return nil, fmt.Errorf("devseed: decode products: %w", err)
	}
	for i, p := range products {
		if strings.TrimSpace(p.ID) == "" {
			return nil, fmt.Errorf("devseed: product %d has no id", i)
		}
	}
	return products, nil
}
