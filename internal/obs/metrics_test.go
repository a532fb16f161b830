package obs

import "testing"

func TestCanonicalPath(t *testing.T) {
	cases := map[string]string{
		"":                              "/",
		"/metrics":                      "/metrics",
		"/v1/tokens/42":                 "/v1/tokens/:id",
		"/v1/addresses/0xabc/balance":   "/v1/addresses/:address/balance",
		"/v1/sale/phases":               "/v1/sale/phases",
		"/v1/sale/phases/public/buyers/0xabc": "/v1/sale/phases/:phase/buyers/:address",
		"/v1/sale/supply?verbose=1":     "/v1/sale/supply",
		"/v1/sale/whitelist/buy":        "/v1/sale/whitelist/buy",
	}
	for input, expected := range cases {
		if got := CanonicalPath(input); got != expected {
			t.Fatalf("CanonicalPath(%q)=%q, want %q", input, got, expected)
		}
	}
}
