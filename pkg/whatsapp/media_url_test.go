package whatsapp

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateMediaURL(t *testing.T) {
	tests := []struct {
		name    string
		base    string
		url     string
		wantErr bool
	}{
		{"same host and port", "http://localhost:3000", "http://localhost:3000/api/files/a.jpg", false},
		{"host compare ignores case", "http://WAHA.example.com", "http://waha.example.com/api/files/a.jpg", false},
		{"default https port", "https://waha.example.com", "https://waha.example.com:443/api/files/a.jpg", false},
		{"container name on api port", "http://localhost:3000", "http://waha:3000/api/files/a.jpg", false},
		{"bridge address on api port", "http://localhost:3000", "http://172.17.0.2:3000/api/files/a.jpg", false},
		{"container name on other port", "http://localhost:3000", "http://waha:8080/a.jpg", true},
		{"public host", "http://localhost:3000", "http://evil.example.com:3000/a.jpg", true},
		{"public ip", "http://localhost:3000", "http://8.8.8.8:3000/a.jpg", true},
		{"same host other port", "http://localhost:3000", "http://localhost:6379/", true},
		{"file scheme", "http://localhost:3000", "file:///etc/passwd", true},
		{"unparseable", "http://localhost:3000", "http://[::1", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateMediaURL(tt.base, tt.url)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestClient_DownloadMedia_RejectsForeignHost(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		io.WriteString(w, "x")
	})

	_, _, err := client.DownloadMedia(context.Background(), "http://evil.example.com/steal.jpg")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allowed")
	assert.False(t, called)
}
