package drive

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"slices"
	"sync"
	"sync/atomic"
	"time"
)

const (
	memoryTotalBytes = 2 << 40 // 2 TiB
	memoryBaseUsed   = 1 << 30 // 1 GiB already "used" by a fresh account
)

// MemoryOptions configures the in-process fake drive.
type MemoryOptions struct {
	// Credentials, when non-empty, is the exact set of accepted credentials.
	// Otherwise any non-blank credential logs in.
	Credentials []string

	// Seed fills new accounts with a handful of sample folders and files.
	Seed bool

	// Links signs download URLs. Without it DownloadLink fails.
	Links *LinkSigner
}

// MemoryDriver keeps one in-memory tree per credential. Trees outlive
// sessions, like a real remote account would.
type MemoryDriver struct {
	opts MemoryOptions

	mu       sync.Mutex
	accounts map[string]*memoryAccount

	logins atomic.Int64
}

// NewMemory returns the fake driver and registers it as a blob source with
// opts.Links.
func NewMemory(opts MemoryOptions) *MemoryDriver {
	d := &MemoryDriver{opts: opts, accounts: make(map[string]*memoryAccount)}
	if opts.Links != nil {
		opts.Links.Register(d.Name(), d)
	}
	return d
}

func (d *MemoryDriver) Name() string { return "memory" }

// Logins reports how many successful logins the driver has performed.
func (d *MemoryDriver) Logins() int64 { return d.logins.Load() }

func (d *MemoryDriver) Login(ctx context.Context, credential string) (Drive, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !d.accepts(credential) {
		return nil, ErrInvalidCredential
	}

	key := Fingerprint(credential)
	d.logins.Add(1)
	return &memoryHandle{driver: d, account: key, tree: d.account(key)}, nil
}

func (d *MemoryDriver) accepts(credential string) bool {
	if credential == "" {
		return false
	}
	if len(d.opts.Credentials) == 0 {
		return true
	}
	return slices.Contains(d.opts.Credentials, credential)
}

func (d *MemoryDriver) account(key string) *memoryAccount {
	d.mu.Lock()
	defer d.mu.Unlock()

	acct, ok := d.accounts[key]
	if !ok {
		acct = newMemoryAccount(d.opts.Seed)
		d.accounts[key] = acct
	}
	return acct
}

// OpenBlob serves signed download links for memory accounts.
func (d *MemoryDriver) OpenBlob(account, remotePath string) (io.ReadCloser, int64, error) {
	d.mu.Lock()
	acct, ok := d.accounts[account]
	d.mu.Unlock()
	if !ok {
		return nil, 0, ErrNotFound
	}

	node, ok := acct.lookup(cleanRemote(remotePath))
	if !ok || node.dir {
		return nil, 0, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(node.data)), int64(len(node.data)), nil
}

// ── Account tree ──────────────────────────────────────────────────────────────

type memoryNode struct {
	name    string
	dir     bool
	data    []byte
	modTime time.Time
}

func (n *memoryNode) size() int64 { return int64(len(n.data)) }

type memoryAccount struct {
	mu   sync.Mutex
	tree map[string][]*memoryNode // directory path → children
	used int64
}

func newMemoryAccount(seed bool) *memoryAccount {
	a := &memoryAccount{
		tree: map[string][]*memoryNode{"/": nil},
		used: memoryBaseUsed,
	}
	if seed {
		a.seed()
	}
	return a
}

func (a *memoryAccount) seed() {
	for _, dir := range []string{"Documents", "Pictures", "Videos", "Music", "Downloads"} {
		a.mkdirAll("/" + dir)
	}
	samples := map[string]int{
		"/Documents/plan.docx":     24 << 10,
		"/Documents/notes.txt":     12 << 10,
		"/Documents/contract.pdf":  180 << 10,
		"/Pictures/photo-1.jpg":    320 << 10,
		"/Pictures/photo-2.png":    210 << 10,
		"/Pictures/screenshot.gif": 96 << 10,
	}
	for p, size := range samples {
		a.put(p, bytes.Repeat([]byte{byte(len(p))}, size))
	}
}

func (a *memoryAccount) mkdirAll(dir string) {
	if dir == "/" {
		return
	}
	if _, ok := a.tree[dir]; ok {
		return
	}
	parent := path.Dir(dir)
	a.mkdirAll(parent)
	a.tree[parent] = append(a.tree[parent], &memoryNode{name: path.Base(dir), dir: true, modTime: time.Now()})
	a.tree[dir] = nil
}

// put stores data at p, replacing an existing file of the same name.
func (a *memoryAccount) put(p string, data []byte) {
	dir, name := path.Dir(p), path.Base(p)
	a.mkdirAll(dir)

	children := a.tree[dir]
	for i, n := range children {
		if n.name == name && !n.dir {
			a.used -= n.size()
			children = slices.Delete(children, i, i+1)
			break
		}
	}
	a.tree[dir] = append(children, &memoryNode{name: name, data: data, modTime: time.Now()})
	a.used += int64(len(data))
}

func (a *memoryAccount) lookup(p string) (*memoryNode, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, n := range a.tree[path.Dir(p)] {
		if n.name == path.Base(p) {
			return n, true
		}
	}
	return nil, false
}

// remove deletes p (recursively for directories) and reports whether it existed.
func (a *memoryAccount) remove(p string) bool {
	dir, name := path.Dir(p), path.Base(p)
	children, ok := a.tree[dir]
	if !ok {
		return false
	}
	for i, n := range children {
		if n.name != name {
			continue
		}
		a.tree[dir] = slices.Delete(children, i, i+1)
		if n.dir {
			a.removeTree(p)
		} else {
			a.used -= n.size()
		}
		return true
	}
	return false
}

func (a *memoryAccount) removeTree(dir string) {
	for _, n := range a.tree[dir] {
		if n.dir {
			a.removeTree(path.Join(dir, n.name))
		} else {
			a.used -= n.size()
		}
	}
	delete(a.tree, dir)
}

// ── Drive handle ──────────────────────────────────────────────────────────────

type memoryHandle struct {
	driver  *MemoryDriver
	account string
	tree    *memoryAccount
}

func (h *memoryHandle) ListFiles(ctx context.Context, dir string) ([]Entry, error) {
	return h.list(ctx, dir, false)
}

func (h *memoryHandle) ListDirs(ctx context.Context, dir string) ([]Entry, error) {
	return h.list(ctx, dir, true)
}

func (h *memoryHandle) list(ctx context.Context, dir string, dirs bool) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dir = cleanRemote(dir)

	h.tree.mu.Lock()
	defer h.tree.mu.Unlock()

	out := []Entry{}
	for _, n := range h.tree.tree[dir] {
		if n.dir != dirs {
			continue
		}
		e := Entry{Name: Named(n.name), Path: path.Join(dir, n.name), IsDir: n.dir}
		if !n.dir {
			e.Size = Sized(n.size())
		}
		out = append(out, e)
	}
	return out, nil
}

func (h *memoryHandle) Upload(ctx context.Context, localPath, remotePath string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	data, err := os.ReadFile(localPath)
	if err != nil {
		return false, fmt.Errorf("drive/memory: read %s: %w", localPath, err)
	}

	h.tree.mu.Lock()
	h.tree.put(cleanRemote(remotePath), data)
	h.tree.mu.Unlock()

	return true, nil
}

func (h *memoryHandle) DownloadLink(ctx context.Context, remotePath string) (Link, error) {
	if err := ctx.Err(); err != nil {
		return Link{}, err
	}
	if h.driver.opts.Links == nil {
		return Link{}, fmt.Errorf("drive/memory: download links are not configured")
	}

	p := cleanRemote(remotePath)
	node, ok := h.tree.lookup(p)
	if !ok || node.dir {
		return Link{}, fmt.Errorf("drive/memory: %s: %w", p, ErrNotFound)
	}
	return h.driver.opts.Links.Sign(h.driver.Name(), h.account, p)
}

func (h *memoryHandle) Delete(ctx context.Context, remotePath string) (Outcome, error) {
	if err := ctx.Err(); err != nil {
		return OutcomeFalse, err
	}

	h.tree.mu.Lock()
	defer h.tree.mu.Unlock()

	if h.tree.remove(cleanRemote(remotePath)) {
		return OutcomeTrue, nil
	}
	return OutcomeFalse, nil
}

func (h *memoryHandle) Quota(ctx context.Context) (QuotaReport, error) {
	if err := ctx.Err(); err != nil {
		return QuotaReport{}, err
	}

	h.tree.mu.Lock()
	defer h.tree.mu.Unlock()

	return QuotaReport{
		Shape:  ShapeMapping,
		Fields: map[string]int64{"total": memoryTotalBytes, "used": h.tree.used},
	}, nil
}

// cleanRemote turns any remote path into a rooted, slash-separated form.
func cleanRemote(p string) string {
	return path.Clean("/" + p)
}
