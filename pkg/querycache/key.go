package querycache

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Key identifies a read by endpoint and parameters.
type Key struct {
	Endpoint string
	Params   map[string]any
}

// NewKey builds a Key.
func NewKey(endpoint string, params map[string]any) Key {
	return Key{Endpoint: endpoint, Params: params}
}

// String returns the canonical form of the key. Equal endpoints and
// parameters always produce the same string regardless of map iteration or
// construction order, because map keys are emitted sorted at every depth.
func (k Key) String() string {
	endpoint := strings.Trim(strings.TrimSpace(k.Endpoint), "/")
	if len(k.Params) == 0 {
		return endpoint
	}

	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(k.Params); err != nil {
		// Unencodable params (channels, funcs) still get a stable-per-value key.
		return fmt.Sprintf("%s#%v", endpoint, k.Params)
	}
	return endpoint + string(bytes.TrimRight(buf.Bytes(), "\n"))
}
