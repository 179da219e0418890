package main

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	apperrors "csbridge/internal/errors"
	"csbridge/internal/httputil"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"
)

const webhookSignatureHeader = "X-Webhook-Hmac"

// verifySignature reads the body and checks its HMAC-SHA512 against the
// X-Webhook-Hmac header. With no secret configured every body is accepted,
// except in production.
func verifySignature(r *http.Request, secretKey string) ([]byte, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	r.Body = io.NopCloser(bytes.NewBuffer(body))

	if secretKey == "" {
		if os.Getenv("CSBRIDGE_ENV") == "production" {
			return nil, fmt.Errorf("webhook secret is required in production mode")
		}
		return body, nil
	}

	expected := strings.TrimSpace(r.Header.Get(webhookSignatureHeader))
	if expected == "" {
		return nil, fmt.Errorf("missing signature header: %s", webhookSignatureHeader)
	}
	if alg := r.Header.Get("X-Webhook-Hmac-Algorithm"); alg != "" && !strings.EqualFold(alg, "sha512") {
		return nil, fmt.Errorf("unsupported signature algorithm: %s", alg)
	}

	mac := hmac.New(sha512.New, []byte(secretKey))
	mac.Write(body)
	computed := hex.EncodeToString(mac.Sum(nil))

	if !hmac.Equal([]byte(computed), []byte(strings.ToLower(expected))) {
		return nil, fmt.Errorf("signature mismatch")
	}
	return body, nil
}

// basicAuth guards the dashboard with one operator account whose password is
// stored as a bcrypt hash. An empty hash disables the check.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	user := s.cfg.Server.DashboardUser
	hash := []byte(s.cfg.Server.DashboardPasswordHash)
	if len(hash) == 0 {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		userOK := subtle.ConstantTimeCompare([]byte(u), []byte(user)) == 1
		// Compare the password even on a user mismatch so both paths cost the same.
		passErr := bcrypt.CompareHashAndPassword(hash, []byte(p))
		if !ok || !userOK || passErr != nil {
			w.Header().Set("WWW-Authenticate", `Basic realm="csbridge", charset="UTF-8"`)
			s.writeError(w, r, apperrors.NewAuthError("invalid credentials"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// rateLimit applies the per-client limiter to the wrapped handler.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(httputil.ClientIP(r, s.cfg.Server.TrustProxy)) {
			w.Header().Set("Retry-After", "1")
			s.writeError(w, r, apperrors.NewRateLimitError())
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RateLimiter keeps one token bucket per client IP.
type RateLimiter struct {
	mu       sync.Mutex
	perSec   rate.Limit
	burst    int
	visitors map[string]*visitor
	now      func() time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewRateLimiter(perSecond float64, burst int) *RateLimiter {
	if burst < 1 {
		burst = 1
	}
	return &RateLimiter{
		perSec:   rate.Limit(perSecond),
		burst:    burst,
		visitors: make(map[string]*visitor),
		now:      time.Now,
	}
}

// Allow reports whether ip may make a request now.
func (rl *RateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	v, ok := rl.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(rl.perSec, rl.burst)}
		rl.visitors[ip] = v
	}
	now := rl.now()
	v.lastSeen = now
	rl.mu.Unlock()

	return v.limiter.AllowN(now, 1)
}

// Cleanup forgets clients idle for longer than maxIdle and returns how many.
func (rl *RateLimiter) Cleanup(maxIdle time.Duration) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	cutoff := rl.now().Add(-maxIdle)
	removed := 0
	for ip, v := range rl.visitors {
		if v.lastSeen.Before(cutoff) {
			delete(rl.visitors, ip)
			removed++
		}
	}
	return removed
}

// Run cleans up idle clients every interval until done is closed.
func (rl *RateLimiter) Run(interval, maxIdle time.Duration, done <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			rl.Cleanup(maxIdle)
		}
	}
}
