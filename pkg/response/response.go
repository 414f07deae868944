// Package response writes the flat JSON bodies every endpoint returns:
//
//	{"status":"success", ...payload fields}
//	{"status":"error", "code":"invalid_path", "message":"path: invalid path"}
package response

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
)

// Status values carried in the "status" field.
const (
	StatusSuccess = "success"
	StatusWarning = "warning"
	StatusError   = "error"
)

var errNotObject = errors.New("response: payload is not a JSON object")

type errorBody struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v as the response body with the given HTTP status.
func JSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// Success sends 200 with payload's fields plus "status":"success". payload
// must encode to a JSON object (or be nil).
func Success(w http.ResponseWriter, payload any) {
	Write(w, http.StatusOK, StatusSuccess, payload)
}

// Write sends payload's fields merged with the given status value.
func Write(w http.ResponseWriter, code int, status string, payload any) {
	body, err := merge(status, payload)
	if err != nil {
		logger.Error("response: encode payload", "error", err)
		Error(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(body) //nolint:errcheck
}

func merge(status string, payload any) ([]byte, error) {
	head, _ := json.Marshal(map[string]string{"status": status})
	if payload == nil {
		return append(head, '\n'), nil
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) < 2 || raw[0] != '{' {
		return nil, errNotObject
	}
	if bytes.Equal(raw, []byte("{}")) {
		return append(head, '\n'), nil
	}

	out := make([]byte, 0, len(head)+len(raw)+1)
	out = append(out, head[:len(head)-1]...)
	out = append(out, ',')
	out = append(out, raw[1:]...)
	return append(out, '\n'), nil
}

// Error sends a failure body.
func Error(w http.ResponseWriter, code int, errCode, message string) {
	JSON(w, code, errorBody{Status: StatusError, Code: errCode, Message: message})
}

// Fail classifies err and sends the matching failure body. Internal errors
// are logged and masked.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	code, errCode := apierr.Classify(err)
	msg := err.Error()
	switch errCode {
	case "internal_error":
		logger.WithCtx(r.Context()).Error("request failed", "error", err)
		msg = "internal server error"
	case "too_large":
		msg = apierr.ErrResourceTooLarge.Error()
	}
	Error(w, code, errCode, msg)
}

// NotFound sends a 404.
func NotFound(w http.ResponseWriter) {
	Error(w, http.StatusNotFound, "not_found", "not found")
}

// MethodNotAllowed sends a 405.
func MethodNotAllowed(w http.ResponseWriter) {
	Error(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
}

// TooManyRequests sends a 429.
func TooManyRequests(w http.ResponseWriter) {
	Error(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
}
