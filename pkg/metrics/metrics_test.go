package metrics_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/drivegate/pkg/metrics"
)

func TestMiddlewareUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(metrics.Middleware())
	r.Get("/api/files/*", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	before := testutil.ToFloat64(metrics.RequestTotal.WithLabelValues("GET", "/api/files/*", "418"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files/a/b.txt", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/files/c.txt", nil))

	after := testutil.ToFloat64(metrics.RequestTotal.WithLabelValues("GET", "/api/files/*", "418"))
	assert.Equal(t, before+2, after)
}

func TestObserveRemoteOp(t *testing.T) {
	metrics.ObserveRemoteOp("test_op", time.Now(), nil)
	metrics.ObserveRemoteOp("test_op", time.Now(), errors.New("boom"))

	n := testutil.CollectAndCount(metrics.RemoteOpDuration, "drivegate_remote_operation_duration_seconds")
	assert.GreaterOrEqual(t, n, 2)
}

func TestHandlerExposesNamespace(t *testing.T) {
	metrics.SessionsActive.Set(3)

	rec := httptest.NewRecorder()
	metrics.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "drivegate_session_active 3"))
}

func TestGaugeFunc_ReRegisterReplaces(t *testing.T) {
	assert.NoError(t, metrics.GaugeFunc("test", "widgets", "Widgets.", func() float64 { return 1 }))
	assert.NoError(t, metrics.GaugeFunc("test", "widgets", "Widgets.", func() float64 { return 7 }))

	rec := httptest.NewRecorder()
	metrics.Handler()(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), "drivegate_test_widgets 7")
}
