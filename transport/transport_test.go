package transport

import (
	"net/url"
	"testing"
)

func TestRequestValues(t *testing.T) {
	tests := []struct {
		name   string
		rawURL string
		form   url.Values
		key    string
		want   string
	}{
		{
			name:   "query only",
			rawURL: "https://server.example.com/authorize?wrap_client_id=query-client",
			key:    "wrap_client_id",
			want:   "query-client",
		},
		{
			name:   "form only",
			rawURL: "https://server.example.com/token",
			form:   url.Values{"wrap_client_id": {"form-client"}},
			key:    "wrap_client_id",
			want:   "form-client",
		},
		{
			name:   "form takes precedence over query",
			rawURL: "https://server.example.com/token?wrap_client_id=query-client",
			form:   url.Values{"wrap_client_id": {"form-client"}},
			key:    "wrap_client_id",
			want:   "form-client",
		},
		{
			name:   "missing key",
			rawURL: "https://server.example.com/token",
			key:    "wrap_client_id",
			want:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := NewRequest("POST", tt.rawURL, tt.form)
			if err != nil {
				t.Fatalf("NewRequest() error = %v", err)
			}
			if got := req.Values().Get(tt.key); got != tt.want {
				t.Errorf("Values().Get(%q) = %q, want %q", tt.key, got, tt.want)
			}
		})
	}
}

func TestRequestValuesNilURL(t *testing.T) {
	req := &Request{Form: url.Values{"a": {"1"}}}
	if got := req.Values().Get("a"); got != "1" {
		t.Errorf("Values().Get(a) = %q, want %q", got, "1")
	}
}
