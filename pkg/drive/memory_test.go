package drive_test

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "upload.bin")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestMemory_LoginRejectsUnknownCredential(t *testing.T) {
	d := drive.NewMemory(drive.MemoryOptions{Credentials: []string{"good-credential"}})

	_, err := d.Login(context.Background(), "bad-credential")
	assert.ErrorIs(t, err, drive.ErrInvalidCredential)

	_, err = d.Login(context.Background(), "")
	assert.ErrorIs(t, err, drive.ErrInvalidCredential)

	h, err := d.Login(context.Background(), "good-credential")
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.EqualValues(t, 1, d.Logins())
}

func TestMemory_SeededListing(t *testing.T) {
	d := drive.NewMemory(drive.MemoryOptions{Seed: true})
	h, err := d.Login(context.Background(), "any")
	require.NoError(t, err)

	dirs, err := h.ListDirs(context.Background(), "/")
	require.NoError(t, err)
	assert.Len(t, dirs, 5)
	for _, e := range dirs {
		assert.True(t, e.IsDir)
		assert.Nil(t, e.Size)
	}

	files, err := h.ListFiles(context.Background(), "/Documents")
	require.NoError(t, err)
	assert.Len(t, files, 3)
	for _, e := range files {
		require.NotNil(t, e.Size)
		assert.Positive(t, *e.Size)
	}

	empty, err := h.ListFiles(context.Background(), "/does/not/exist")
	require.NoError(t, err)
	assert.Empty(t, empty)
	assert.NotNil(t, empty)
}

func TestMemory_UploadDeleteAndQuota(t *testing.T) {
	ctx := context.Background()
	d := drive.NewMemory(drive.MemoryOptions{})
	h, err := d.Login(ctx, "acct")
	require.NoError(t, err)

	before, err := h.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, drive.ShapeMapping, before.Shape)

	ok, err := h.Upload(ctx, writeTemp(t, "hello"), "/new/dir/hello.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	dirs, err := h.ListDirs(ctx, "/new")
	require.NoError(t, err)
	require.Len(t, dirs, 1)
	assert.Equal(t, "dir", *dirs[0].Name)

	after, err := h.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Fields["used"]+5, after.Fields["used"])

	out, err := h.Delete(ctx, "/new/dir/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, drive.OutcomeTrue, out)

	out, err = h.Delete(ctx, "/new/dir/hello.txt")
	require.NoError(t, err)
	assert.Equal(t, drive.OutcomeFalse, out)

	final, err := h.Quota(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.Fields["used"], final.Fields["used"])
}

func TestMemory_AccountsAreIsolatedAndPersistent(t *testing.T) {
	ctx := context.Background()
	d := drive.NewMemory(drive.MemoryOptions{})

	a, err := d.Login(ctx, "alice")
	require.NoError(t, err)
	_, err = a.Upload(ctx, writeTemp(t, "x"), "/a.txt")
	require.NoError(t, err)

	b, err := d.Login(ctx, "bob")
	require.NoError(t, err)
	files, err := b.ListFiles(ctx, "/")
	require.NoError(t, err)
	assert.Empty(t, files)

	again, err := d.Login(ctx, "alice")
	require.NoError(t, err)
	files, err = again.ListFiles(ctx, "/")
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

func TestMemory_DownloadLinkServesBytes(t *testing.T) {
	ctx := context.Background()
	signer := drive.NewLinkSigner([]byte("secret"), "http://gw.test", 0)
	d := drive.NewMemory(drive.MemoryOptions{Links: signer})

	h, err := d.Login(ctx, "acct")
	require.NoError(t, err)
	_, err = h.Upload(ctx, writeTemp(t, "payload"), "/f.bin")
	require.NoError(t, err)

	link, err := h.DownloadLink(ctx, "f.bin")
	require.NoError(t, err)
	assert.Contains(t, link.URL, "http://gw.test/links/")

	_, err = h.DownloadLink(ctx, "/missing.bin")
	assert.ErrorIs(t, err, drive.ErrNotFound)

	body, size, err := d.OpenBlob(drive.Fingerprint("acct"), "/f.bin")
	require.NoError(t, err)
	defer body.Close()
	data, _ := io.ReadAll(body)
	assert.Equal(t, "payload", string(data))
	assert.EqualValues(t, 7, size)
}
