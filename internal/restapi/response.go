// Package restapi normalises response bodies returned by the product REST service.
package restapi

import (
	"bytes"
	"encoding/json"
)

// Page mirrors the paginated envelope some deployments wrap list responses in.
type Page struct {
	Data  json.RawMessage `json:"data"`
	Total *int            `json:"total,omitempty"`
	Page  *int            `json:"page,omitempty"`
	Limit *int            `json:"limit,omitempty"`
}

// ExtractData returns the JSON payload stored under the "data" field of a
// paginated envelope. Bodies that are not objects, or objects without a
// "data" field, are returned unchanged. An empty body yields nil.
func ExtractData(body []byte) []byte {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] != '{' {
		return append([]byte(nil), trimmed...)
	}

	var envelope Page
	if err := json.Unmarshal(trimmed, &envelope); err != nil || len(envelope.Data) == 0 {
		return append([]byte(nil), trimmed...)
	}
	return append([]byte(nil), bytes.TrimSpace(envelope.Data)...)
}

// DecodeData decodes the payload obtained via ExtractData into out. An empty
// body decodes as JSON null.
func DecodeData(body []byte, out any) error {
	payload := ExtractData(body)
	if len(payload) == 0 {
		payload = []byte("null")
	}
	return json.Unmarshal(payload, out)
}
