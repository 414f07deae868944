// Package http provides a fluent, retry-aware HTTP client for outgoing calls:
// fetching remote download links and probing the service health endpoint.
//
// Usage:
//
//	resp, err := http.Get("http://localhost:7860/health").
//	    Timeout(5 * time.Second).
//	    Retry(3, time.Second).
//	    Send()
//
//	var status map[string]any
//	err = resp.JSON(&status)
//
//	// Stream a large body without buffering it.
//	s, err := http.Get(link.URL).Headers(link.Headers).WithContext(ctx).Stream()
//	defer s.Body.Close()
package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	gohttp "net/http"
	"time"

	"github.com/shashiranjanraj/drivegate/pkg/logger"
)

// defaultTransport is the connection-pooled transport used in production.
// Tests can replace DefaultClient.Transport to inject mocks.
var defaultTransport = &gohttp.Transport{
	Proxy:                 gohttp.ProxyFromEnvironment,
	MaxIdleConns:          200,
	MaxIdleConnsPerHost:   100,
	IdleConnTimeout:       90 * time.Second,
	ResponseHeaderTimeout: 60 * time.Second,
	DisableCompression:    true, // Content-Length must match the bytes we count
}

// DefaultClient is the shared HTTP client used by all outgoing requests.
// Tests can swap DefaultClient.Transport to intercept calls:
//
//	http.DefaultClient.Transport = myMockTransport
//	defer http.ResetTransport()
var DefaultClient = &gohttp.Client{
	Transport: defaultTransport,
}

// ResetTransport restores the production transport on DefaultClient.
// Call via defer after injecting a test transport.
func ResetTransport() {
	DefaultClient.Transport = defaultTransport
}

// ------------------- Request -------------------

// Request is a fluent HTTP request builder.
type Request struct {
	method    string
	url       string
	headers   map[string]string
	timeout   time.Duration
	retries   int
	retryWait time.Duration
	ctx       context.Context
	client    *gohttp.Client
}

// Get starts a GET request.
func Get(url string) *Request { return newRequest(gohttp.MethodGet, url) }

// Head starts a HEAD request.
func Head(url string) *Request { return newRequest(gohttp.MethodHead, url) }

func newRequest(method, url string) *Request {
	return &Request{
		method:    method,
		url:       url,
		headers:   map[string]string{},
		timeout:   30 * time.Second,
		retries:   1,
		retryWait: 500 * time.Millisecond,
		ctx:       context.Background(),
	}
}

// Header adds a single header to the request.
func (r *Request) Header(key, value string) *Request {
	r.headers[key] = value
	return r
}

// Headers merges a map of headers.
func (r *Request) Headers(h map[string]string) *Request {
	for k, v := range h {
		r.headers[k] = v
	}
	return r
}

// Timeout sets the per-attempt timeout for Send. Stream is bounded by the
// request context instead, since a body may take arbitrarily long to read.
func (r *Request) Timeout(d time.Duration) *Request {
	r.timeout = d
	return r
}

// Retry configures automatic retries on failure.
// n is total attempts (1 = no retry), wait is the initial backoff (doubles each attempt).
func (r *Request) Retry(n int, wait time.Duration) *Request {
	r.retries = n
	r.retryWait = wait
	return r
}

// WithContext sets a custom context.
func (r *Request) WithContext(ctx context.Context) *Request {
	r.ctx = ctx
	return r
}

// Using sends the request through c instead of DefaultClient.
func (r *Request) Using(c *gohttp.Client) *Request {
	r.client = c
	return r
}

func (r *Request) httpClient() *gohttp.Client {
	if r.client != nil {
		return r.client
	}
	return DefaultClient
}

// ------------------- Send -------------------

// Send executes the request, buffers the body and returns a Response.
func (r *Request) Send() (*Response, error) {
	if _, ok := r.headers["Accept"]; !ok {
		r.headers["Accept"] = "application/json"
	}

	var resp *Response
	err := r.withRetry(func() error {
		var err error
		resp, err = r.do()
		return err
	})
	return resp, err
}

// Stream executes the request and returns the response with its body
// unread. Retries only cover failures before response headers arrive. The
// caller must close Body.
func (r *Request) Stream() (*StreamResponse, error) {
	var resp *StreamResponse
	err := r.withRetry(func() error {
		req, err := r.build(r.ctx)
		if err != nil {
			return err
		}
		native, err := r.httpClient().Do(req)
		if err != nil {
			return fmt.Errorf("http: send: %w", err)
		}
		resp = &StreamResponse{
			StatusCode:    native.StatusCode,
			Headers:       native.Header,
			ContentLength: native.ContentLength,
			Body:          native.Body,
		}
		return nil
	})
	return resp, err
}

func (r *Request) withRetry(attemptFn func() error) error {
	var lastErr error

	for attempt := 1; attempt <= max(r.retries, 1); attempt++ {
		err := attemptFn()
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < r.retries {
			// Exponential backoff: wait * 2^(attempt-1)
			backoff := time.Duration(float64(r.retryWait) * math.Pow(2, float64(attempt-1)))
			logger.WithCtx(r.ctx).Warn("http: request failed, retrying",
				"url", redact(r.url), "attempt", attempt, "backoff", backoff, "error", err)

			select {
			case <-r.ctx.Done():
				return fmt.Errorf("http: %s %s: %w", r.method, redact(r.url), r.ctx.Err())
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("http: all %d attempts failed for %s %s: %w", max(r.retries, 1), r.method, redact(r.url), lastErr)
}

func (r *Request) build(ctx context.Context) (*gohttp.Request, error) {
	req, err := gohttp.NewRequestWithContext(ctx, r.method, r.url, nil)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (r *Request) do() (*Response, error) {
	ctx, cancel := context.WithTimeout(r.ctx, r.timeout)
	defer cancel()

	req, err := r.build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: send: %w", err)
	}

	raw, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("http: read body: %w", err)
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Raw:        raw,
	}, nil
}

// redact drops the query string, which carries signatures on presigned URLs.
func redact(url string) string {
	for i := 0; i < len(url); i++ {
		if url[i] == '?' {
			return url[:i] + "?…"
		}
	}
	return url
}

// ------------------- Response -------------------

// Response wraps a fully read HTTP response with convenience methods.
type Response struct {
	StatusCode int
	Headers    gohttp.Header
	Raw        []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// JSON unmarshals the response body into dest.
func (r *Response) JSON(dest any) error {
	if err := json.Unmarshal(r.Raw, dest); err != nil {
		return fmt.Errorf("http: decode JSON: %w", err)
	}
	return nil
}

// Text returns the response body as a string.
func (r *Response) Text() string {
	return string(r.Raw)
}

// StreamResponse is a response whose body has not been read.
type StreamResponse struct {
	StatusCode    int
	Headers       gohttp.Header
	ContentLength int64 // -1 when unknown
	Body          io.ReadCloser
}

// OK reports whether the status code is 2xx.
func (r *StreamResponse) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}
