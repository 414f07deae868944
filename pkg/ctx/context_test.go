package ctx_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	appctx "github.com/shashiranjanraj/drivegate/pkg/ctx"
	"github.com/shashiranjanraj/drivegate/pkg/middleware"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return body
}

func TestSuccessAndWarning(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Success(map[string]any{"path": "/"})
		if c.WrittenStatus() != http.StatusOK {
			t.Errorf("WrittenStatus = %d", c.WrittenStatus())
		}
	})(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	body := decode(t, rec)
	if body["status"] != "success" || body["path"] != "/" {
		t.Errorf("unexpected body: %v", body)
	}

	rec = httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Warning(map[string]string{"message": "no session"})
	})(rec, httptest.NewRequest(http.MethodPost, "/logout", nil))
	if decode(t, rec)["status"] != "warning" {
		t.Errorf("unexpected body: %s", rec.Body.String())
	}
}

func TestFail(t *testing.T) {
	rec := httptest.NewRecorder()
	appctx.Wrap(func(c *appctx.Context) {
		c.Fail(apierr.Auth(apierr.ErrSessionExpired))
		if c.WrittenStatus() != http.StatusUnauthorized {
			t.Errorf("WrittenStatus = %d", c.WrittenStatus())
		}
	})(rec, httptest.NewRequest(http.MethodGet, "/list", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := decode(t, rec)["code"]; code != "session_expired" {
		t.Errorf("code = %v", code)
	}
}

func TestBindJSON(t *testing.T) {
	type input struct {
		Credential string `json:"credential"`
		SessionID  string `json:"session_id" validate:"nullable,alpha_dash,max=8"`
	}

	cases := []struct {
		body string
		want error
	}{
		{`{"credential":"abc","session_id":"ok_1"}`, nil},
		{``, nil},
		{`{"session_id":"not ok"}`, apierr.ErrInvalidParameter},
		{`{not json`, apierr.ErrInvalidParameter},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodPost, "/login", strings.NewReader(tc.body))
		appctx.Wrap(func(c *appctx.Context) {
			var in input
			err := c.BindJSON(&in)
			if tc.want == nil && err != nil {
				t.Errorf("body %q: unexpected error %v", tc.body, err)
			}
			if tc.want != nil && !errors.Is(err, tc.want) {
				t.Errorf("body %q: got %v, want %v", tc.body, err, tc.want)
			}
		})(httptest.NewRecorder(), req)
	}
}

func TestParamAndQuery(t *testing.T) {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("*", "docs/a.txt")
	req := httptest.NewRequest(http.MethodGet, "/api/files/docs/a.txt?path=x", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	appctx.Wrap(func(c *appctx.Context) {
		if got := c.Param("*"); got != "docs/a.txt" {
			t.Errorf("Param = %q", got)
		}
		if got := c.Query("path"); got != "x" {
			t.Errorf("Query = %q", got)
		}
		if got := c.DefaultQuery("missing", "/"); got != "/" {
			t.Errorf("DefaultQuery = %q", got)
		}
		if c.Session() != nil {
			t.Error("expected no session")
		}
	})(httptest.NewRecorder(), req)
}

func TestClientIP(t *testing.T) {
	// httptest requests come from 192.0.2.1.
	if err := middleware.SetTrustedProxies([]string{"192.0.2.1"}); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = middleware.SetTrustedProxies(nil) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Forwarded-For", "1.2.3.4")

	appctx.Wrap(func(c *appctx.Context) {
		if ip := c.ClientIP(); ip != "1.2.3.4" {
			t.Errorf("expected 1.2.3.4, got %s", ip)
		}
	})(httptest.NewRecorder(), req)
}
