package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

func TestProbe_RetriesUntilHealthy(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := probe(context.Background(), srv.URL+"/health", 5, time.Millisecond, time.Second)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestProbe_GivesUp(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := probe(context.Background(), srv.URL, 2, time.Millisecond, time.Second)
	assert.ErrorIs(t, err, errUnhealthy)
}

func TestProvision(t *testing.T) {
	root := t.TempDir()
	provisionRoot = root
	t.Cleanup(func() { provisionRoot = "" })

	var out bytes.Buffer
	provisionCmd.SetIn(strings.NewReader("alice-secret\n"))
	provisionCmd.SetOut(&out)
	require.NoError(t, provisionCmd.RunE(provisionCmd, nil))

	info, err := os.Stat(filepath.Join(root, drive.AccountDir("alice-secret")))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
	assert.Contains(t, out.String(), drive.KeyPrefix("alice-secret"))
	assert.NotContains(t, out.String(), "alice-secret", "credential is never echoed")
}

func TestProvision_EmptyCredential(t *testing.T) {
	provisionRoot = t.TempDir()
	t.Cleanup(func() { provisionRoot = "" })

	provisionCmd.SetIn(strings.NewReader("   \n"))
	assert.Error(t, provisionCmd.RunE(provisionCmd, nil))
}
