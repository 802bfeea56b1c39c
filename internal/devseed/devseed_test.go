package devseed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadProductSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.json")
	require.NoError(t, os.WriteFile(path, []byte(`[
		{"id":"p1","product_name":"Lamp","product_price":"19.90","product_category":"home"},
		{"id":"p2","product_name":"Desk","product_price":120}
	]`), 0o600))

	products, err := LoadProductSeed(path)
	require.NoError(t, err)
	require.Len(t, products, 2)
	require.Equal(t, "Lamp", products[0].Name)
	require.Equal(t, "19.9", products[0].Price.String())
	require.Equal(t, "120", products[1].Price.String())
}

func TestDecodeProductSeedEnvelope(t *testing.T) {
	products, err := DecodeProductSeed([]byte(`{"data":[{"id":"p1"}],"total":1}`))
	require.NoError(t, err)
	require.Len(t, products, 1)

	products, err = DecodeProductSeed([]byte("  "))
	require.NoError(t, err)
	require.Empty(t, products)
}

func TestDecodeProductSeedErrors(t *testing.T) {
	_, err := DecodeProductSeed([]byte(`[{"product_name":"nameless"}]`))
	require.ErrorContains(t, err, "has no id")

	_, err = DecodeProductSeed([]byte(`{"data":`))
	require.Error(t, err)

	_, err = LoadProductSeed(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}
