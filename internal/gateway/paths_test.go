package gateway_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/internal/gateway"
)

func TestNormalizePath(t *testing.T) {
	ok := map[string]string{
		"":           "/",
		"/":          "/",
		"docs":       "/docs",
		"/docs/":     "/docs",
		"a//b/./c":   "/a/b/c",
		`dir\sub`:    "/dir/sub",
		" /padded/ ": "/padded",

		"/名字/file.txt": "/名字/file.txt",
	}
	for in, want := range ok {
		got, err := gateway.NormalizePath(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"..", "/a/../../b", "a/..", "bad\x00name", "line\nbreak"} {
		_, err := gateway.NormalizePath(bad)
		assert.ErrorIs(t, err, apierr.ErrInvalidPath, bad)
	}
}

func TestRequirePath(t *testing.T) {
	_, err := gateway.RequirePath("  ")
	assert.ErrorIs(t, err, apierr.ErrMissingParameter)

	_, err = gateway.RequirePath("/")
	assert.ErrorIs(t, err, apierr.ErrInvalidPath)

	got, err := gateway.RequirePath("a.txt")
	require.NoError(t, err)
	assert.Equal(t, "/a.txt", got)
}
