package gateway_test

import (
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/internal/gateway"
)

func TestStage_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	f, err := gateway.Stage(dir, strings.NewReader("payload"))
	require.NoError(t, err)
	assert.EqualValues(t, 7, f.Size())

	r, err := f.Open()
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	r.Close()
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, f.Release())
	require.NoError(t, f.Release(), "second release is a no-op")
	_, err = os.Stat(f.Path())
	assert.True(t, os.IsNotExist(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("client went away") }

func TestStage_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := gateway.Stage(dir, io.MultiReader(strings.NewReader("partial"), failingReader{}))
	assert.ErrorContains(t, err, "client went away")

	left, _ := os.ReadDir(dir)
	assert.Empty(t, left)
}
