// Package ctx provides a request context for drivegate handlers.
//
// Instead of accepting (http.ResponseWriter, *http.Request), a handler
// receives a single *Context with helpers for parameters and responses:
//
//	func (dc *DriveController) Delete(c *ctx.Context) {
//	    res, err := dc.mapper.DeleteEntry(c.Context(), c.Session(), c.Query("path"))
//	    if err != nil {
//	        c.Fail(err)
//	        return
//	    }
//	    c.Success(res)
//	}
//
//	// Register with ctx.Wrap:
//	router.Delete("/delete", "files.delete", ctx.Wrap(dc.Delete))
package ctx

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/internal/session"
	"github.com/shashiranjanraj/drivegate/pkg/bind"
	"github.com/shashiranjanraj/drivegate/pkg/middleware"
	"github.com/shashiranjanraj/drivegate/pkg/response"
)

// HandlerFunc is the context-aware handler signature.
type HandlerFunc func(c *Context)

// Wrap converts a HandlerFunc to a standard http.HandlerFunc so it can be
// passed to any router method.
func Wrap(h HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := acquire(w, r)
		defer release(c)
		h(c)
	}
}

// ─── Context ──────────────────────────────────────────────────────────────────

// Context wraps a request/response pair.
type Context struct {
	W      http.ResponseWriter
	R      *http.Request
	status int // written status code (0 = not written yet)
}

// pool recycles Context objects to reduce GC pressure.
var pool = sync.Pool{
	New: func() any { return &Context{} },
}

func acquire(w http.ResponseWriter, r *http.Request) *Context {
	c := pool.Get().(*Context)
	c.W = w
	c.R = r
	c.status = 0
	return c
}

func release(c *Context) {
	c.W = nil
	c.R = nil
	pool.Put(c)
}

// ─── Request helpers ──────────────────────────────────────────────────────────

// Param returns a URL path parameter ("*" for a wildcard tail).
func (c *Context) Param(key string) string {
	return chi.URLParam(c.R, key)
}

// Query returns a query-string value. Returns "" if not present.
func (c *Context) Query(key string) string {
	return c.R.URL.Query().Get(key)
}

// DefaultQuery returns a query-string value, or def if it is empty.
func (c *Context) DefaultQuery(key, def string) string {
	if v := c.Query(key); v != "" {
		return v
	}
	return def
}

// Header returns the value of a request header.
func (c *Context) Header(key string) string {
	return c.R.Header.Get(key)
}

// ClientIP returns the client IP, honouring X-Forwarded-For from trusted proxies.
func (c *Context) ClientIP() string { return middleware.ClientIP(c.R) }

// Context returns the underlying request context.
func (c *Context) Context() context.Context { return c.R.Context() }

// Session returns the session attached by the auth middleware, or nil.
func (c *Context) Session() *session.Session {
	s, _ := session.FromContext(c.R.Context())
	return s
}

// ─── Binding ──────────────────────────────────────────────────────────────────

// BindJSON decodes and validates the JSON body into dest. Failures come back
// in the error taxonomy: malformed bodies and rule violations are
// ValidationErrors, oversized bodies keep their *http.MaxBytesError.
func (c *Context) BindJSON(dest any) error {
	errs, err := bind.JSON(c.R, dest)
	if err != nil {
		if errors.Is(err, bind.ErrMalformed) {
			return apierr.Validation("body", apierr.ErrInvalidParameter)
		}
		return err
	}
	if len(errs) > 0 {
		return &apierr.ValidationError{Field: errs.Fields()[0], Err: apierr.ErrInvalidParameter}
	}
	return nil
}

// ─── Response helpers ─────────────────────────────────────────────────────────

// SetHeader sets a response header.
func (c *Context) SetHeader(key, value string) {
	c.W.Header().Set(key, value)
}

// Status writes just the HTTP status code with an empty body.
func (c *Context) Status(code int) {
	c.status = code
	c.W.WriteHeader(code)
}

// JSON writes v with the given status code.
func (c *Context) JSON(code int, v any) {
	c.status = code
	response.JSON(c.W, code, v)
}

// Success sends 200 with payload's fields and "status":"success".
func (c *Context) Success(payload any) {
	c.status = http.StatusOK
	response.Success(c.W, payload)
}

// Warning sends 200 with payload's fields and "status":"warning".
func (c *Context) Warning(payload any) {
	c.status = http.StatusOK
	response.Write(c.W, http.StatusOK, response.StatusWarning, payload)
}

// Error sends a failure body with an explicit status and code.
func (c *Context) Error(code int, errCode, message string) {
	c.status = code
	response.Error(c.W, code, errCode, message)
}

// Fail classifies err and sends the matching failure body.
func (c *Context) Fail(err error) {
	c.status, _ = apierr.Classify(err)
	response.Fail(c.W, c.R, err)
}

// WrittenStatus returns the HTTP status code that was written to the response,
// or 0 if no response has been written yet.
func (c *Context) WrittenStatus() int { return c.status }
