package storefront_sdk

import (
	"testing"
	"time"

	"github.com/comstore/storefront_sdk_go/internal/config"
	"github.com/comstore/storefront_sdk_go/internal/httpx"
)

func TestHTTPOptionsTimeout(t *testing.T) {
	cases := map[string]struct {
		timeout time.Duration
		want    time.Duration
	}{
		"configured": {timeout: 3 * time.Second, want: 3 * time.Second},
		"disabled":   {timeout: 0, want: 0},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := config.Config{BaseURL: "http://example.test", Timeout: tc.timeout}
			client, err := httpx.NewClient(cfg.BaseURL, httpOptions(cfg)...)
			if err != nil {
				t.Fatalf("NewClient: %v", err)
			}
			if got := client.Timeout(); got != tc.want {
				t.Fatalf("expected timeout %v, got %v", tc.want, got)
			}
		})
	}
}
