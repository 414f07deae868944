package testkit

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	khttp "github.com/shashiranjanraj/drivegate/pkg/http"
)

// ─── Public API ───────────────────────────────────────────────────────────────

// Run executes a single scenario from a JSON file against handler.
//
// Lifecycle per scenario:
//  1. Load the scenario JSON file.
//  2. Read the request body.
//  3. Install the HTTP mock transport on pkg/http's DefaultClient.
//  4. Fire the request against handler using httptest.
//  5. Assert status code, headers and body.
//  6. Verify all isMock=true steps were called.
//  7. Restore the transport.
func Run(t *testing.T, handler http.Handler, scenarioPath string) {
	t.Helper()

	s, err := LoadScenario(scenarioPath)
	if err != nil {
		t.Fatalf("testkit: load scenario %q: %v", scenarioPath, err)
	}

	t.Run(s.Name, func(t *testing.T) {
		RunScenario(t, handler, s)
	})
}

// RunDir runs every scenario in dir as a t.Run subtest, in file name order.
// Scenario files that fail to parse are reported as test failures.
func RunDir(t *testing.T, handler http.Handler, dir string) {
	t.Helper()

	scenarios, errs := LoadAllFromDir(dir)
	for _, err := range errs {
		t.Errorf("%v", err)
	}

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			RunScenario(t, handler, s)
		})
	}
}

// ─── Execution ────────────────────────────────────────────────────────────────

// RunScenario fires s against handler and asserts its expectations.
func RunScenario(t *testing.T, handler http.Handler, s *Scenario) {
	t.Helper()

	// ── 1. Build request body ─────────────────────────────────────────────

	var reqBody io.Reader
	switch p := s.RequestBodyPath(); {
	case p != "":
		data, err := os.ReadFile(p)
		if err != nil {
			t.Fatalf("[%s] read request file %q: %v", s.Name, p, err)
		}
		reqBody = bytes.NewReader(data)
	case len(s.RequestBody) > 0:
		reqBody = bytes.NewReader(s.RequestBody)
	}

	// ── 2. Install HTTP mock transport ────────────────────────────────────

	mt := NewMockTransport(s)
	khttp.DefaultClient.Transport = mt
	defer khttp.ResetTransport()

	// ── 3. Fire the request ───────────────────────────────────────────────

	method := strings.ToUpper(s.RequestMethod)
	req := httptest.NewRequest(method, s.RequestURL, reqBody)
	req.Header.Set("Accept", "application/json")
	if reqBody != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range s.Headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	// ── 4. Assert ─────────────────────────────────────────────────────────

	AssertStatusCode(t, s, rec.Code)
	AssertHeaders(t, s, rec.Header())

	switch {
	case s.ResponseText != nil:
		AssertText(t, s, *s.ResponseText, rec.Body.String())
	case s.ResponseBodyPath() != "":
		p := s.ResponseBodyPath()
		expected, err := os.ReadFile(p)
		if err != nil {
			t.Errorf("[%s] read response file %q: %v", s.Name, p, err)
		} else {
			AssertJSONSubset(t, s, expected, rec.Body.Bytes())
		}
	case len(s.Response) > 0:
		AssertJSONSubset(t, s, s.Response, rec.Body.Bytes())
	}

	// ── 5. Verify mocks were called ───────────────────────────────────────

	AssertMocksAllCalled(t, s, mt)
}

// ─── Debug helpers ────────────────────────────────────────────────────────────

// DumpScenario prints a human-readable summary of the scenario to stdout.
func DumpScenario(s *Scenario) {
	fmt.Printf("Scenario: %s\n", s.Name)
	fmt.Printf("  %s %s → %d\n", s.RequestMethod, s.RequestURL, s.ExpectedCode)
	fmt.Printf("  requestFile:  %s\n", s.RequestFileName)
	fmt.Printf("  responseFile: %s\n", s.ResponseFileName)
	fmt.Printf("  isMockRequired: %v\n", s.IsMockRequired)
	for i, step := range s.NetUtilMockStep {
		fmt.Printf("  mockStep[%d]: method=%s  isMock=%v  matchUrl=%q\n",
			i, step.Method, step.IsMock, step.MatchURL)
	}
}
