package middleware_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/pkg/middleware"
	"github.com/shashiranjanraj/drivegate/pkg/response"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestRecovery(t *testing.T) {
	h := middleware.Recovery(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "internal_error", body["code"])
}

func TestRateLimiter_PerClient(t *testing.T) {
	rl := middleware.NewRateLimiter(1, 2)
	h := rl.Handler(ok)

	hit := func(ip string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = ip + ":1234"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, hit("10.0.0.1"))
	assert.Equal(t, http.StatusOK, hit("10.0.0.2"), "other clients keep their own bucket")
	assert.Equal(t, 2, rl.Len())

	assert.Equal(t, 2, rl.Prune(time.Now().Add(time.Second)))
	assert.Zero(t, rl.Len())
}

func TestRateLimiter_Disabled(t *testing.T) {
	rl := middleware.NewRateLimiter(0, 0)
	assert.False(t, rl.Enabled())
	for i := 0; i < 100; i++ {
		rec := httptest.NewRecorder()
		rl.Handler(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		require.Equal(t, http.StatusOK, rec.Code)
	}
}

func TestClientIP(t *testing.T) {
	t.Cleanup(func() { _ = middleware.SetTrustedProxies(nil) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:5555"
	assert.Equal(t, "192.0.2.7", middleware.ClientIP(req))

	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	assert.Equal(t, "192.0.2.7", middleware.ClientIP(req), "untrusted peers cannot pick their address")

	require.NoError(t, middleware.SetTrustedProxies([]string{"192.0.2.7", "10.0.0.0/8"}))
	assert.Equal(t, "203.0.113.9", middleware.ClientIP(req))

	// A forged leftmost hop does not hide the real client.
	req.Header.Set("X-Forwarded-For", "1.1.1.1, 198.51.100.4, 10.0.0.1")
	assert.Equal(t, "198.51.100.4", middleware.ClientIP(req))

	assert.Error(t, middleware.SetTrustedProxies([]string{"not-an-ip"}))
}

func TestRateLimiter_SpoofedForwardedFor(t *testing.T) {
	t.Cleanup(func() { _ = middleware.SetTrustedProxies(nil) })
	require.NoError(t, middleware.SetTrustedProxies(nil))

	h := middleware.NewRateLimiter(1, 1).Handler(ok)
	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "192.0.2.50:1000"
		req.Header.Set("X-Forwarded-For", "203.0.113."+strconv.Itoa(i))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusTooManyRequests, http.StatusTooManyRequests}, codes)
}

func TestBodyLimit(t *testing.T) {
	h := middleware.BodyLimit(8)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			response.Fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("small")))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/", strings.NewReader("definitely too large")))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTimeout(t *testing.T) {
	var deadline bool
	h := middleware.Timeout(time.Minute)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		_, deadline = r.Context().Deadline()
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.True(t, deadline)
}

func TestCORS(t *testing.T) {
	h := middleware.CORS(middleware.DefaultCORSOptions())(ok)

	req := httptest.NewRequest(http.MethodOptions, "/list", nil)
	req.Header.Set("Origin", "https://app.example")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), "X-Session-ID")
	assert.Contains(t, rec.Header().Get("Access-Control-Expose-Headers"), "Content-Disposition")
}

func TestCORS_RestrictedOrigin(t *testing.T) {
	h := middleware.CORS(middleware.CORSFromList([]string{"https://good.example"}))(ok)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

type authFunc func(r *http.Request) (context.Context, error)

func (f authFunc) Authenticate(r *http.Request) (context.Context, error) { return f(r) }

type ctxKey struct{}

func TestAuth(t *testing.T) {
	a := authFunc(func(r *http.Request) (context.Context, error) {
		if r.Header.Get("X-Session-ID") == "" {
			return nil, apierr.Auth(apierr.ErrMissingCredential)
		}
		return context.WithValue(r.Context(), ctxKey{}, "alice"), nil
	})

	var who any
	h := middleware.Auth(a)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		who = r.Context().Value(ctxKey{})
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, who)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Session-ID", "token")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", who)
}

func TestLogger_PassesThrough(t *testing.T) {
	h := middleware.Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = io.WriteString(w, "hi")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())
}
