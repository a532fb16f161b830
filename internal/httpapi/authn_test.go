package httpapi

import "testing"

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		name    string
		header  string
		want    string
		wantErr bool
	}{
		{name: "plain", header: "Bearer abc.def.ghi", want: "abc.def.ghi"},
		{name: "lowercase scheme", header: "bearer abc", want: "abc"},
		{name: "padded", header: "  Bearer   tok  ", want: "tok"},
		{name: "empty", header: "", wantErr: true},
		{name: "wrong scheme", header: "Basic dXNlcg==", wantErr: true},
		{name: "scheme only", header: "Bearer ", wantErr: true},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("%s: expected error", tc.name)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}

func TestIsPublicPath(t *testing.T) {
	for _, path := range []string{"/v1/auth/token", "/metrics", "/healthz", "/readyz", "/openapi.yaml", "/"} {
		if !isPublicPath(path) {
			t.Fatalf("%s should be public", path)
		}
	}
	for _, path := range []string{"/v1/sale/whitelist/buy", "/v1/admin/withdraw", "/v1/auth/token/extra"} {
		if isPublicPath(path) {
			t.Fatalf("%s should not be public", path)
		}
	}
}
