package main

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"event":"message"}`)

	tests := []struct {
		name      string
		secret    string
		signature string
		algorithm string
		env       string
		wantErr   string
	}{
		{name: "valid signature", secret: "s3cret", signature: sign("s3cret", body)},
		{name: "uppercase hex accepted", secret: "s3cret", signature: strings.ToUpper(sign("s3cret", body))},
		{name: "explicit sha512 algorithm", secret: "s3cret", signature: sign("s3cret", body), algorithm: "sha512"},
		{name: "missing header", secret: "s3cret", wantErr: "missing signature header"},
		{name: "wrong secret", secret: "s3cret", signature: sign("other", body), wantErr: "signature mismatch"},
		{name: "unsupported algorithm", secret: "s3cret", signature: sign("s3cret", body), algorithm: "sha1", wantErr: "unsupported signature algorithm"},
		{name: "no secret in development"},
		{name: "no secret in production", env: "production", wantErr: "required in production"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CSBRIDGE_ENV", tt.env)
			req := httptest.NewRequest("POST", "/webhook/whatsapp", strings.NewReader(string(body)))
			if tt.signature != "" {
				req.Header.Set(webhookSignatureHeader, tt.signature)
			}
			if tt.algorithm != "" {
				req.Header.Set("X-Webhook-Hmac-Algorithm", tt.algorithm)
			}

			got, err := verifySignature(req, tt.secret)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, body, got)
		})
	}
}

func TestRateLimiter_BurstTraffic(t *testing.T) {
	rl := NewRateLimiter(0.001, 10)

	allowed := 0
	for i := 0; i < 20; i++ {
		if rl.Allow("127.0.0.1") {
			allowed++
		}
	}
	assert.Equal(t, 10, allowed)
}

func TestRateLimiter_Refill(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(5, 5)
	rl.now = func() time.Time { return now }

	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("192.168.1.1"), "request %d", i+1)
	}
	assert.False(t, rl.Allow("192.168.1.1"))

	now = now.Add(time.Second)
	for i := 0; i < 5; i++ {
		assert.True(t, rl.Allow("192.168.1.1"), "request %d after refill", i+1)
	}
}

func TestRateLimiter_MultipleIPs(t *testing.T) {
	rl := NewRateLimiter(0.001, 2)

	for _, ip := range []string{"10.0.0.1", "10.0.0.2", "2001:db8::1"} {
		assert.True(t, rl.Allow(ip))
		assert.True(t, rl.Allow(ip))
		assert.False(t, rl.Allow(ip), ip)
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(1, 1)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.Allow("10.0.0.2")
	now = now.Add(6 * time.Minute)

	assert.Equal(t, 1, rl.Cleanup(10*time.Minute))
	assert.Len(t, rl.visitors, 1)
	assert.Contains(t, rl.visitors, "10.0.0.2")
}

func TestRateLimiter_Concurrent(t *testing.T) {
	rl := NewRateLimiter(0.001, 50)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if rl.Allow(fmt.Sprintf("10.0.%d.1", n%2)) {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 100, allowed)
}

func TestRateLimiter_RunStops(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		rl.Run(time.Millisecond, time.Hour, done)
		close(finished)
	}()
	close(done)

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after done was closed")
	}
}
