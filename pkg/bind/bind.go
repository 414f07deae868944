// Package bind decodes and validates an HTTP request body into a struct.
package bind

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/shashiranjanraj/drivegate/config"
	"github.com/shashiranjanraj/drivegate/pkg/validate"
)

// ErrMalformed is returned for bodies that are not a single JSON value.
var ErrMalformed = errors.New("malformed JSON body")

// maxBodyBytes returns the configured JSON body size limit (default 64 KiB).
func maxBodyBytes() int64 {
	if n := config.Int64("JSON_MAX_BYTES", 64<<10); n > 0 {
		return n
	}
	return 64 << 10
}

// JSON decodes r.Body as JSON into dest and runs validation. An empty body
// decodes as an empty object, so required-field rules report it.
// Returns (errs, nil) when there are validation failures.
// Returns (nil, err) when the body is malformed or too large; a body over
// the cap yields *http.MaxBytesError.
func JSON(r *http.Request, dest any) (validate.Errors, error) {
	body := http.MaxBytesReader(nil, r.Body, maxBodyBytes())

	dec := json.NewDecoder(body)
	if err := dec.Decode(dest); err != nil && !errors.Is(err, io.EOF) {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, maxErr
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	if errs := validate.Struct(dest); validate.HasErrors(errs) {
		return errs, nil
	}
	return nil, nil
}
