package drive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalOptions configures the local-filesystem driver.
type LocalOptions struct {
	// Root holds one directory per account, named AccountDir(credential).
	Root string

	// QuotaBytes is the advertised capacity of every account. Zero reports
	// an unknown quota shape.
	QuotaBytes int64

	Links *LinkSigner
}

// LocalDriver maps each credential onto a directory under Root. A credential
// logs in only when its directory has been provisioned.
type LocalDriver struct {
	root  string
	quota int64
	links *LinkSigner
}

// NewLocal returns the local driver. A relative root is resolved against the
// working directory.
func NewLocal(opts LocalOptions) *LocalDriver {
	root := opts.Root
	if !filepath.IsAbs(root) {
		cwd, _ := os.Getwd()
		root = filepath.Join(cwd, root)
	}
	d := &LocalDriver{root: root, quota: opts.QuotaBytes, links: opts.Links}
	if opts.Links != nil {
		opts.Links.Register(d.Name(), d)
	}
	return d
}

func (d *LocalDriver) Name() string { return "local" }

// AccountDir is the directory name that backs credential.
func AccountDir(credential string) string {
	return Fingerprint(credential)[:32]
}

// Provision creates the account directory for credential and returns its path.
func (d *LocalDriver) Provision(credential string) (string, error) {
	dir := filepath.Join(d.root, AccountDir(credential))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("drive/local: provision: %w", err)
	}
	return dir, nil
}

func (d *LocalDriver) Login(ctx context.Context, credential string) (Drive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if credential == "" {
		return nil, ErrInvalidCredential
	}

	account := AccountDir(credential)
	info, err := os.Stat(filepath.Join(d.root, account))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return nil, ErrInvalidCredential
	case err != nil:
		return nil, fmt.Errorf("drive/local: stat account: %w", err)
	case !info.IsDir():
		return nil, ErrInvalidCredential
	}

	return &localHandle{driver: d, account: account, root: filepath.Join(d.root, account)}, nil
}

// OpenBlob serves signed download links for local accounts.
func (d *LocalDriver) OpenBlob(account, remotePath string) (io.ReadCloser, int64, error) {
	h := &localHandle{driver: d, account: account, root: filepath.Join(d.root, account)}
	f, err := os.Open(h.abs(remotePath))
	if err != nil {
		return nil, 0, ErrNotFound
	}
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		f.Close()
		return nil, 0, ErrNotFound
	}
	return f, info.Size(), nil
}

// ── Drive handle ──────────────────────────────────────────────────────────────

type localHandle struct {
	driver  *LocalDriver
	account string
	root    string // absolute account directory
}

func (h *localHandle) ConcurrentSafe() bool { return true }

// abs maps a remote path into the account directory. cleanRemote removes any
// ".." so the result never escapes root.
func (h *localHandle) abs(remotePath string) string {
	return filepath.Join(h.root, filepath.FromSlash(cleanRemote(remotePath)))
}

func (h *localHandle) ListFiles(ctx context.Context, dir string) ([]Entry, error) {
	return h.list(ctx, dir, false)
}

func (h *localHandle) ListDirs(ctx context.Context, dir string) ([]Entry, error) {
	return h.list(ctx, dir, true)
}

func (h *localHandle) list(ctx context.Context, dir string, dirs bool) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(h.abs(dir))
	if errors.Is(err, fs.ErrNotExist) {
		return []Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("drive/local: list %s: %w", dir, err)
	}

	out := []Entry{}
	base := cleanRemote(dir)
	for _, e := range entries {
		if e.IsDir() != dirs {
			continue
		}
		entry := Entry{Name: Named(e.Name()), Path: strings.TrimRight(base, "/") + "/" + e.Name(), IsDir: e.IsDir()}
		if !e.IsDir() {
			if info, err := e.Info(); err == nil {
				entry.Size = Sized(info.Size())
			}
		}
		out = append(out, entry)
	}
	return out, nil
}

func (h *localHandle) Upload(ctx context.Context, localPath, remotePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	in, err := os.Open(localPath)
	if err != nil {
		return false, fmt.Errorf("drive/local: open %s: %w", localPath, err)
	}
	defer in.Close()

	full := h.abs(remotePath)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return false, fmt.Errorf("drive/local: mkdir: %w", err)
	}
	out, err := os.Create(full)
	if err != nil {
		return false, fmt.Errorf("drive/local: create %s: %w", remotePath, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return false, fmt.Errorf("drive/local: write %s: %w", remotePath, err)
	}
	if err := out.Close(); err != nil {
		return false, fmt.Errorf("drive/local: close %s: %w", remotePath, err)
	}
	return true, nil
}

func (h *localHandle) DownloadLink(ctx context.Context, remotePath string) (Link, error) {
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}
	if h.driver.links == nil {
		return Link{}, fmt.Errorf("drive/local: download links are not configured")
	}

	info, err := os.Stat(h.abs(remotePath))
	if err != nil || info.IsDir() {
		return Link{}, fmt.Errorf("drive/local: %s: %w", remotePath, ErrNotFound)
	}
	return h.driver.links.Sign(h.driver.Name(), h.account, cleanRemote(remotePath))
}

func (h *localHandle) Delete(ctx context.Context, remotePath string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeFalse, err
	}
	if cleanRemote(remotePath) == "/" {
		return OutcomeFalse, nil
	}

	full := h.abs(remotePath)
	if _, err := os.Stat(full); errors.Is(err, fs.ErrNotExist) {
		return OutcomeFalse, nil
	}
	if err := os.RemoveAll(full); err != nil {
		return OutcomeFalse, fmt.Errorf("drive/local: delete %s: %w", remotePath, err)
	}
	return OutcomeTrue, nil
}

func (h *localHandle) Quota(ctx context.Context) (QuotaReport, error) {
	var used int64
	err := filepath.WalkDir(h.root, func(_ string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if !e.IsDir() {
			info, err := e.Info()
			if err != nil {
				return err
			}
			used += info.Size()
		}
		return nil
	})
	if err != nil {
		return QuotaReport{}, fmt.Errorf("drive/local: quota: %w", err)
	}

	if h.driver.quota <= 0 {
		return QuotaReport{Shape: ShapeUnknown, Used: used}, nil
	}
	return QuotaReport{Shape: ShapeTotalUsed, Total: h.driver.quota, Used: used}, nil
}
