package drive_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

func TestLocal_LoginRequiresProvisionedAccount(t *testing.T) {
	d := drive.NewLocal(drive.LocalOptions{Root: t.TempDir()})

	_, err := d.Login(context.Background(), "stranger")
	assert.ErrorIs(t, err, drive.ErrInvalidCredential)

	dir, err := d.Provision("member")
	require.NoError(t, err)
	assert.DirExists(t, dir)

	h, err := d.Login(context.Background(), "member")
	require.NoError(t, err)
	assert.True(t, drive.IsConcurrentSafe(h))
}

func TestLocal_Operations(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	signer := drive.NewLinkSigner([]byte("k"), "http://gw", 0)
	d := drive.NewLocal(drive.LocalOptions{Root: root, QuotaBytes: 1000, Links: signer})

	_, err := d.Provision("member")
	require.NoError(t, err)
	h, err := d.Login(ctx, "member")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0o600))

	ok, err := h.Upload(ctx, src, "/docs/report.txt")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.FileExists(t, filepath.Join(root, drive.AccountDir("member"), "docs", "report.txt"))

	files, err := h.ListFiles(ctx, "/docs")
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "report.txt", *files[0].Name)
	assert.Equal(t, "/docs/report.txt", files[0].Path)
	assert.EqualValues(t, 10, *files[0].Size)

	dirs, err := h.ListDirs(ctx, "/")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.True(t, dirs[0].IsDir)

	q, err := h.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, drive.ShapeTotalUsed, q.Shape)
	assert.EqualValues(t, 1000, q.Total)
	assert.EqualValues(t, 10, q.Used)

	link, err := h.DownloadLink(ctx, "/docs/report.txt")
	require.NoError(t, err)
	assert.Contains(t, link.URL, "/links/")

	out, err := h.Delete(ctx, "/docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, drive.OutcomeTrue, out)

	out, err = h.Delete(ctx, "/docs/report.txt")
	require.NoError(t, err)
	assert.Equal(t, drive.OutcomeFalse, out)
}

func TestLocal_PathsStayInsideAccount(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	d := drive.NewLocal(drive.LocalOptions{Root: root})

	_, err := d.Provision("member")
	require.NoError(t, err)
	h, err := d.Login(ctx, "member")
	require.NoError(t, err)

	src := filepath.Join(t.TempDir(), "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o600))

	_, err = h.Upload(ctx, src, "/../../escape.txt")
	require.NoError(t, err)
	assert.NoFileExists(t, filepath.Join(root, "escape.txt"))
	assert.FileExists(t, filepath.Join(root, drive.AccountDir("member"), "escape.txt"))

	q, err := h.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, drive.ShapeUnknown, q.Shape)
}
