package testkit_test

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	khttp "github.com/shashiranjanraj/drivegate/pkg/http"
	"github.com/shashiranjanraj/drivegate/pkg/testkit"
)

var testHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case "/health":
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","sessions":0}`)) //nolint:errcheck
	case "/echo":
		var in map[string]any
		_ = json.NewDecoder(r.Body).Decode(&in)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"received": in, "id": "abc123"}) //nolint:errcheck
	case "/fetch":
		s, err := khttp.Get("https://remote.example/blob").WithContext(r.Context()).Stream()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadGateway)
			return
		}
		defer s.Body.Close()
		io.Copy(w, s.Body) //nolint:errcheck
	default:
		http.NotFound(w, r)
	}
})

func TestRunDir(t *testing.T) {
	testkit.RunDir(t, testHandler, "testdata")
}

func TestLoadScenario_Validation(t *testing.T) {
	_, err := testkit.LoadScenario("testdata/echo_req.json")
	assert.Error(t, err, "body files are not scenarios")

	s, err := testkit.LoadScenario("testdata/health.json")
	require.NoError(t, err)
	assert.Equal(t, "GET", s.RequestMethod)
	assert.Empty(t, s.RequestBodyPath())
}

func TestLoadAllFromDir_SkipsBodyFiles(t *testing.T) {
	scenarios, errs := testkit.LoadAllFromDir("testdata")
	assert.Empty(t, errs)

	var names []string
	for _, s := range scenarios {
		names = append(names, s.Name)
	}
	assert.Equal(t, []string{"echo", "fetch through mocked remote", "health"}, names)
}

func TestMockTransport_RequiredRejectsUnmatched(t *testing.T) {
	mt := testkit.NewMockTransport(&testkit.Scenario{IsMockRequired: true})
	_, err := mt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://elsewhere.example/", nil))
	assert.Error(t, err)
}

func TestMockTransport_ReportsUncalled(t *testing.T) {
	mt := testkit.NewMockTransport(&testkit.Scenario{NetUtilMockStep: []testkit.MockStep{
		{Method: "httprequest", IsMock: true, MatchURL: "https://remote.example/"},
	}})
	assert.Len(t, mt.AssertAllCalled(), 1)

	resp, err := mt.RoundTrip(httptest.NewRequest(http.MethodGet, "https://remote.example/x", nil))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, mt.Calls(0))
	assert.Empty(t, mt.AssertAllCalled())
}

func TestDiffJSON(t *testing.T) {
	exp := map[string]any{"a": float64(1), "b": "*", "c": []any{"x"}}
	assert.Empty(t, testkit.DiffJSON("", exp, map[string]any{"a": float64(1), "b": true, "c": []any{"x"}, "extra": 1}))
	assert.Len(t, testkit.DiffJSON("", exp, map[string]any{"a": float64(2), "c": []any{}}), 3)
}
