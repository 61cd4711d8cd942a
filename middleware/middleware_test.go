package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/villageone/api/config"
	"github.com/villageone/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
	config.Set(config.AppConfig{JWTSecret: "test-secret", TokenTTLHours: 1})
}

func newEngine(mw gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.GET("/", mw, func(ctx *gin.Context) {
		uid, _ := UserID(ctx)
		ctx.String(http.StatusOK, uid)
	})
	return r
}

func do(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuthRequired(t *testing.T) {
	token, err := utils.GenerateToken("user-1", "ana", time.Hour)
	if err != nil {
		t.Fatalf("token: %v", err)
	}
	revoked, _ := utils.GenerateToken("user-2", "bo", time.Hour)
	utils.BlacklistToken(revoked, time.Now().Add(time.Hour))

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid", "Bearer " + token, http.StatusOK, "user-1"},
		{"missing", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, ""},
		{"revoked", "Bearer " + revoked, http.StatusUnauthorized, ""},
	}
	r := newEngine(AuthRequired())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header)
			if w.Code != tt.status {
				t.Fatalf("status = %d, want %d (%s)", w.Code, tt.status, w.Body.String())
			}
			if tt.status == http.StatusOK && w.Body.String() != tt.body {
				t.Fatalf("body = %q, want %q", w.Body.String(), tt.body)
			}
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	r := newEngine(OptionalAuth())
	if w := do(r, ""); w.Code != http.StatusOK || w.Body.String() != "" {
		t.Fatalf("anonymous request: %d %q", w.Code, w.Body.String())
	}
	if w := do(r, "Bearer broken"); w.Code != http.StatusUnauthorized {
		t.Fatalf("invalid token should still be rejected, got %d", w.Code)
	}
	token, _ := utils.GenerateToken("user-9", "cy", time.Hour)
	if w := do(r, "Bearer "+token); w.Body.String() != "user-9" {
		t.Fatalf("identity not attached: %q", w.Body.String())
	}
}

func TestRateLimiter(t *testing.T) {
	l := NewRateLimiter(4) // burst 2
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	if !l.Allow("a") || !l.Allow("a") {
		t.Fatalf("burst should admit two requests")
	}
	if l.Allow("a") {
		t.Fatalf("third immediate request should be limited")
	}
	if !l.Allow("b") {
		t.Fatalf("clients must not share a bucket")
	}
	now = now.Add(16 * time.Second)
	if !l.Allow("a") {
		t.Fatalf("bucket should refill after 15s of idle")
	}

	now = now.Add(limiterIdleTTL + time.Second)
	l.Allow("c")
	if _, ok := l.clients["b"]; ok {
		t.Fatalf("idle limiter was not evicted")
	}
}

func TestRateLimiterSweepsOnInterval(t *testing.T) {
	l := NewRateLimiter(60)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	l.now = func() time.Time { return now }

	l.Allow("a")
	if !l.lastSweep.Equal(start) {
		t.Fatalf("first request should sweep, last sweep %v", l.lastSweep)
	}
	now = start.Add(limiterSweepInterval / 2)
	l.Allow("b")
	if !l.lastSweep.Equal(start) {
		t.Fatalf("swept again inside the interval at %v", l.lastSweep)
	}
	now = start.Add(limiterSweepInterval)
	l.Allow("b")
	if !l.lastSweep.Equal(now) {
		t.Fatalf("sweep interval elapsed without a sweep")
	}
	if len(l.clients) != 2 {
		t.Fatalf("active clients evicted: %d left", len(l.clients))
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	r := newEngine(NewRateLimiter(1).Middleware())
	if w := do(r, ""); w.Code != http.StatusOK {
		t.Fatalf("first request: %d", w.Code)
	}
	if w := do(r, ""); w.Code != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", w.Code)
	}
}
