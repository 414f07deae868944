// Package testkit drives HTTP API tests from JSON scenario files.
//
// Each scenario describes:
//   - The HTTP request to fire (method, URL, body file or inline body, headers)
//   - The expected status code
//   - The expected response: a JSON subset or an exact text body
//   - Mock steps for outgoing HTTP calls made through pkg/http
//
// Scenario files live next to the *_test.go files:
//
//	testdata/
//	  list_empty.json        ← scenario
//	  list_empty_res.json    ← expected response subset
//
// Example _test.go:
//
//	func TestAPI(t *testing.T) {
//	    testkit.RunDir(t, k.Handler(), "testdata")
//	}
package testkit

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ─── Schema ───────────────────────────────────────────────────────────────────

// Scenario describes a single API test case loaded from a JSON file.
type Scenario struct {
	// Meta
	Name        string `json:"name"`
	Description string `json:"description"`

	// Request
	RequestMethod   string            `json:"requestMethod"`   // GET, POST, DELETE
	RequestURL      string            `json:"requestUrl"`      // e.g. /list?path=/docs
	RequestFileName string            `json:"requestFileName"` // request body file, relative to the scenario
	RequestBody     json.RawMessage   `json:"requestBody"`     // inline JSON body, used when no file is set
	Headers         map[string]string `json:"headers"`

	// Response assertions
	ExpectedCode     int               `json:"expectedCode"`
	ResponseFileName string            `json:"responseFileName"` // expected JSON subset file
	Response         json.RawMessage   `json:"response"`         // inline expected JSON subset
	ResponseText     *string           `json:"responseText"`     // exact non-JSON body
	ResponseHeaders  map[string]string `json:"responseHeaders"`

	// IsMockRequired fails outgoing calls that match no mock step.
	IsMockRequired bool `json:"isMockRequired"`

	// Mock steps for outgoing HTTP calls, matched in definition order.
	NetUtilMockStep []MockStep `json:"netUtilMockStep"`

	dir string // directory of the scenario file
}

// MockStep describes one intercepted outgoing call.
type MockStep struct {
	// Method is "httprequest"; other values are rejected at load time.
	Method string `json:"method"`

	// IsMock intercepts the call when true. A false step stops matching and
	// lets the call fall through to the default 404.
	IsMock bool `json:"isMock"`

	// MatchURL is a URL prefix. Empty matches any outgoing request.
	MatchURL string `json:"matchUrl"`

	ReturnData MockReturnData `json:"returnData"`
}

// MockReturnData is the synthetic response for a mock step.
type MockReturnData struct {
	// StatusCode defaults to 200.
	StatusCode int `json:"statusCode"`

	// Body is base64-encoded. "" means an empty body.
	Body string `json:"body"`

	// Headers are set on the synthetic response.
	Headers map[string]string `json:"headers"`
}

// ─── Loading ──────────────────────────────────────────────────────────────────

// LoadScenario reads and validates a scenario from a JSON file.
func LoadScenario(path string) (*Scenario, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("testkit: resolve path %q: %w", path, err)
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("testkit: read %q: %w", abs, err)
	}

	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("testkit: parse %q: %w", abs, err)
	}

	if err := s.validate(); err != nil {
		return nil, fmt.Errorf("testkit: invalid scenario %q: %w", abs, err)
	}

	s.dir = filepath.Dir(abs)
	return &s, nil
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.RequestURL == "" {
		return fmt.Errorf("requestUrl is required")
	}
	if s.ExpectedCode == 0 {
		return fmt.Errorf("expectedCode is required")
	}
	if s.RequestMethod == "" {
		s.RequestMethod = "GET"
	}
	for i, step := range s.NetUtilMockStep {
		if step.Method != "httprequest" {
			return fmt.Errorf("netUtilMockStep[%d].method %q is not supported", i, step.Method)
		}
	}
	return nil
}

// RequestBodyPath returns the absolute path to the request body file, or ""
// when RequestFileName is not set.
func (s *Scenario) RequestBodyPath() string {
	return s.resolve(s.RequestFileName)
}

// ResponseBodyPath returns the absolute path to the expected response file,
// or "" when ResponseFileName is not set.
func (s *Scenario) ResponseBodyPath() string {
	return s.resolve(s.ResponseFileName)
}

func (s *Scenario) resolve(name string) string {
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(s.dir, name)
}

// LoadAllFromDir loads every scenario in dir, skipping *_req.json and
// *_res.json body files. Files that fail to parse are collected as errors.
func LoadAllFromDir(dir string) ([]*Scenario, []error) {
	entries, err := scenarioFiles(dir)
	if err != nil {
		return nil, []error{err}
	}

	var (
		scenarios []*Scenario
		errs      []error
	)
	for _, path := range entries {
		s, err := LoadScenario(path)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, errs
}

func scenarioFiles(dir string) ([]string, error) {
	all, err := filepath.Glob(filepath.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("testkit: glob %q: %w", dir, err)
	}
	var out []string
	for _, p := range all {
		base := filepath.Base(p)
		if matched, _ := filepath.Match("*_re[qs].json", base); matched {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("testkit: no scenario files found in %q", dir)
	}
	sort.Strings(out)
	return out, nil
}
