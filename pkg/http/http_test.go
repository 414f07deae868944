package http_test

import (
	"context"
	"errors"
	"io"
	gohttp "net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/pkg/http"
)

func TestSend_JSON(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`)
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL).Timeout(time.Second).Send()
	require.NoError(t, err)
	assert.True(t, resp.OK())

	var body map[string]string
	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestStream_PassesHeadersAndLeavesBodyOpen(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, r *gohttp.Request) {
		assert.Equal(t, "netdisk", r.Header.Get("User-Agent"))
		_, _ = io.WriteString(w, "0123456789")
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL).
		Headers(map[string]string{"User-Agent": "netdisk"}).
		Stream()
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.True(t, resp.OK())
	assert.EqualValues(t, 10, resp.ContentLength)
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "0123456789", string(data))
}

type flakyTransport struct {
	failures atomic.Int32
	next     gohttp.RoundTripper
}

func (f *flakyTransport) RoundTrip(r *gohttp.Request) (*gohttp.Response, error) {
	if f.failures.Add(-1) >= 0 {
		return nil, errors.New("connection reset")
	}
	return f.next.RoundTrip(r)
}

func TestRetry_RecoversFromTransportErrors(t *testing.T) {
	srv := httptest.NewServer(gohttp.HandlerFunc(func(w gohttp.ResponseWriter, _ *gohttp.Request) {
		_, _ = io.WriteString(w, "ok")
	}))
	defer srv.Close()

	ft := &flakyTransport{next: gohttp.DefaultTransport}
	ft.failures.Store(2)
	client := &gohttp.Client{Transport: ft}

	resp, err := http.Get(srv.URL).Using(client).Retry(3, time.Millisecond).Send()
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Text())

	ft.failures.Store(5)
	_, err = http.Get(srv.URL).Using(client).Retry(2, time.Millisecond).Send()
	assert.ErrorContains(t, err, "all 2 attempts failed")
}

func TestRetry_StopsOnCancelledContext(t *testing.T) {
	ft := &flakyTransport{next: gohttp.DefaultTransport}
	ft.failures.Store(100)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := http.Get("http://example.invalid/file?sig=secret").
		Using(&gohttp.Client{Transport: ft}).
		WithContext(ctx).
		Retry(5, time.Hour).
		Stream()
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotContains(t, err.Error(), "secret")
}
