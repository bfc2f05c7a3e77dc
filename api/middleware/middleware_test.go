package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricehist/config"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newEngine(mw ...gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(mw...)
	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(apiKeyContextKey))
	})
	return r
}

func do(r http.Handler, header, value string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(header, value)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestAuth(t *testing.T) {
	r := newEngine(Auth([]string{"k1", ""}))

	tests := []struct {
		name   string
		header string
		value  string
		status int
	}{
		{"missing", "", "", http.StatusUnauthorized},
		{"invalid", "X-API-Key", "nope", http.StatusUnauthorized},
		{"header", "X-API-Key", "k1", http.StatusOK},
		{"bearer", "Authorization", "Bearer k1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(r, tt.header, tt.value)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			if tt.status == http.StatusOK && w.Body.String() != "k1" {
				t.Errorf("api key in context = %q", w.Body.String())
			}
		})
	}
}

func TestAuth_NoKeysIsOpen(t *testing.T) {
	r := newEngine(Auth(nil))
	if w := do(r, "", ""); w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	l := NewLimiters(config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 2})
	defer l.Close()
	r := newEngine(Auth([]string{"a", "b"}), RateLimit(l))

	for i := 0; i < 2; i++ {
		if w := do(r, "X-API-Key", "a"); w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	if w := do(r, "X-API-Key", "a"); w.Code != http.StatusTooManyRequests {
		t.Errorf("third request: status = %d, want 429", w.Code)
	}
	if w := do(r, "X-API-Key", "b"); w.Code != http.StatusOK {
		t.Errorf("other key should have its own bucket, status = %d", w.Code)
	}
}

func TestLimiters_EvictIdle(t *testing.T) {
	l := NewLimiters(config.RateLimitConfig{RequestsPerSecond: 1, Burst: 1})
	defer l.Close()

	l.Allow("x")
	l.evictIdle(time.Now().Add(2 * time.Hour))

	l.mu.Lock()
	n := len(l.entries)
	l.mu.Unlock()
	if n != 0 {
		t.Errorf("entries = %d, want 0", n)
	}
}
