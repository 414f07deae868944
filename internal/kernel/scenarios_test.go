package kernel_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/app/services"
	"github.com/shashiranjanraj/drivegate/internal/kernel"
	"github.com/shashiranjanraj/drivegate/internal/session"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
	"github.com/shashiranjanraj/drivegate/pkg/testkit"
)

// TestScenarios runs testdata/*.json against a header-mode kernel backed by a
// seeded memory drive. Outgoing link fetches are served by the scenario mocks.
func TestScenarios(t *testing.T) {
	k, err := kernel.New(context.Background(), kernel.Config{
		Driver: "memory",
		Drive: drive.Options{
			Memory: drive.MemoryOptions{Credentials: []string{"good-credential"}, Seed: true},
		},
		AuthMode:        services.ModeHeader,
		Secret:          []byte("scenario-secret"),
		Session:         session.Options{Policy: session.PolicyManual},
		PublicURL:       "http://drivegate.test",
		LinkTTL:         time.Minute,
		UploadMaxBytes:  1 << 20,
		TempDir:         t.TempDir(),
		TransferWorkers: 2,
		RequestTimeout:  time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = k.Close() })

	testkit.RunDir(t, k.Handler(), "testdata")
}
