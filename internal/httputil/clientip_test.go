package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientIP(t *testing.T) {
	tests := []struct {
		name       string
		headers    map[string]string
		remoteAddr string
		trustProxy bool
		expectedIP string
	}{
		{
			name:       "first X-Forwarded-For entry behind a proxy",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7, 203.0.113.9"},
			remoteAddr: "10.0.0.2:1234",
			trustProxy: true,
			expectedIP: "198.51.100.7",
		},
		{
			name:       "X-Forwarded-For IPv6 with spaces",
			headers:    map[string]string{"X-Forwarded-For": "  2001:db8::1 , 203.0.113.9"},
			remoteAddr: "10.0.0.2:1234",
			trustProxy: true,
			expectedIP: "2001:db8::1",
		},
		{
			name:       "X-Real-IP when no X-Forwarded-For",
			headers:    map[string]string{"X-Real-IP": "203.0.113.12"},
			remoteAddr: "10.0.0.2:1234",
			trustProxy: true,
			expectedIP: "203.0.113.12",
		},
		{
			name:       "garbage forwarding headers fall back to RemoteAddr",
			headers:    map[string]string{"X-Forwarded-For": "not-an-ip", "X-Real-IP": "nope"},
			remoteAddr: "192.0.2.55:54321",
			trustProxy: true,
			expectedIP: "192.0.2.55",
		},
		{
			name:       "headers ignored without a trusted proxy",
			headers:    map[string]string{"X-Forwarded-For": "198.51.100.7"},
			remoteAddr: "192.0.2.55:54321",
			expectedIP: "192.0.2.55",
		},
		{
			name:       "bracketed IPv6 RemoteAddr",
			remoteAddr: "[2001:db8::5]:8443",
			expectedIP: "2001:db8::5",
		},
		{
			name:       "RemoteAddr without port",
			remoteAddr: "192.0.2.99",
			expectedIP: "192.0.2.99",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "http://example.com", nil)
			r.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				r.Header.Set(k, v)
			}
			assert.Equal(t, tt.expectedIP, ClientIP(r, tt.trustProxy))
		})
	}
}
