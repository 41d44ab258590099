package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"intake-forms/backend/config"
	"intake-forms/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (f *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return f.revoked[jti], f.err
}

type fakeLimiter struct {
	calls int
	limit int
	err   error
}

func (f *fakeLimiter) CheckRateLimit(_ context.Context, _ string, limit int, _ time.Duration) (bool, error) {
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	return f.calls <= limit, nil
}

func newTestManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret-key-at-least-16", AccessTokenTTL: time.Hour})
}

func authedEngine(mgr *jwt.Manager, blacklist TokenChecker) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth(mgr, blacklist), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(ContextAdminID))
	})
	return r
}

func doGet(r *gin.Engine, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest("GET", "/me", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTAuth_Valid(t *testing.T) {
	mgr := newTestManager()
	token, _ := mgr.GenerateAccessToken("admin-1", "principal")

	w := doGet(authedEngine(mgr, nil), token)

	if w.Code != http.StatusOK || w.Body.String() != "admin-1" {
		t.Errorf("expected 200 admin-1, got %d %q", w.Code, w.Body.String())
	}
}

func TestJWTAuth_MissingOrInvalid(t *testing.T) {
	r := authedEngine(newTestManager(), nil)

	if w := doGet(r, ""); w.Code != http.StatusUnauthorized {
		t.Errorf("missing header: expected 401, got %d", w.Code)
	}
	if w := doGet(r, "garbage"); w.Code != http.StatusUnauthorized {
		t.Errorf("invalid token: expected 401, got %d", w.Code)
	}
}

func TestJWTAuth_Blacklisted(t *testing.T) {
	mgr := newTestManager()
	token, _ := mgr.GenerateAccessToken("admin-1", "principal")
	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	w := doGet(authedEngine(mgr, &fakeBlacklist{revoked: map[string]bool{claims.ID: true}}), token)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", w.Code)
	}

	// Redis 故障时降级放行
	w = doGet(authedEngine(mgr, &fakeBlacklist{err: errors.New("redis down")}), token)
	if w.Code != http.StatusOK {
		t.Errorf("blacklist error should fail open, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	limiter := &fakeLimiter{}
	r := gin.New()
	r.POST("/forms/:slug", RateLimit(limiter, 2, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest("POST", "/forms/a", nil))
		codes = append(codes, w.Code)
	}
	if codes[0] != http.StatusCreated || codes[1] != http.StatusCreated || codes[2] != http.StatusTooManyRequests {
		t.Errorf("unexpected status sequence: %v", codes)
	}
}

func TestRateLimit_DegradesOnError(t *testing.T) {
	r := gin.New()
	r.POST("/forms/:slug", RateLimit(&fakeLimiter{err: errors.New("redis down")}, 1, time.Minute, zap.NewNop()), func(c *gin.Context) {
		c.Status(http.StatusCreated)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("POST", "/forms/a", nil))
	if w.Code != http.StatusCreated {
		t.Errorf("expected fail-open 201, got %d", w.Code)
	}
}

func TestBodyLimit_ContentLength(t *testing.T) {
	r := gin.New()
	r.Use(BodyLimit(4))
	r.POST("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest("POST", "/x", http.NoBody)
	req.ContentLength = 10
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("expected 413, got %d", w.Code)
	}
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc" || w.Body.String() != "abc" {
		t.Errorf("expected request id abc to be propagated, got %q", w.Header().Get("X-Request-ID"))
	}

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest("GET", "/x", nil))
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}
}
