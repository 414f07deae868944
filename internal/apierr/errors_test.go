package apierr_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"missing credential", apierr.Auth(apierr.ErrMissingCredential), http.StatusUnauthorized, "missing_credential"},
		{"invalid credential", apierr.Auth(apierr.ErrInvalidCredential), http.StatusUnauthorized, "invalid_credential"},
		{"expired", apierr.Auth(apierr.ErrSessionExpired), http.StatusUnauthorized, "session_expired"},
		{"missing param", apierr.Validation("path", apierr.ErrMissingParameter), http.StatusBadRequest, "missing_parameter"},
		{"empty filename", apierr.Validation("file", apierr.ErrEmptyFilename), http.StatusBadRequest, "empty_filename"},
		{"invalid path", apierr.Validation("path", apierr.ErrInvalidPath), http.StatusBadRequest, "invalid_path"},
		{"too large", &http.MaxBytesError{Limit: 10}, http.StatusRequestEntityTooLarge, "too_large"},
		{"remote", apierr.Remote("list_files", "/", errors.New("boom")), http.StatusInternalServerError, "remote_operation_failed"},
		{"timeout", fmt.Errorf("wrapped: %w", context.DeadlineExceeded), http.StatusGatewayTimeout, "timeout"},
		{"other", errors.New("?"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := apierr.Classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRemoteUnwrapsBothWays(t *testing.T) {
	err := apierr.Remote("download_link", "/a.txt", fmt.Errorf("memory: %w", drive.ErrNotFound))

	assert.ErrorIs(t, err, apierr.ErrRemoteOperation)
	assert.ErrorIs(t, err, drive.ErrNotFound)

	var re *apierr.RemoteError
	assert.ErrorAs(t, err, &re)
	assert.Equal(t, "download_link", re.Op)
	assert.Equal(t, "/a.txt", re.Path)
	assert.Contains(t, err.Error(), "remote download_link /a.txt failed")
}

func TestRemotePassesTaxonomyThrough(t *testing.T) {
	auth := apierr.Auth(apierr.ErrSessionExpired)
	assert.Same(t, auth, apierr.Remote("login", "", auth))
	assert.NoError(t, apierr.Remote("login", "", nil))
}
