// Package gateway maps HTTP-level file operations onto a session's remote
// drive and normalizes whatever the provider returns into stable response
// shapes.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"io"
	gohttp "net/http"
	"os"
	"path"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/internal/session"
	"github.com/shashiranjanraj/drivegate/pkg/cache"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
	khttp "github.com/shashiranjanraj/drivegate/pkg/http"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
	"github.com/shashiranjanraj/drivegate/pkg/metrics"
)

// Sentinel quota reported when a provider's answer has no recognizable shape.
const (
	SentinelTotal int64 = 2199023255552 // 2 TiB
	SentinelUsed  int64 = 1073741824    // 1 GiB
)

// unknownName labels entries the provider reported without a name.
const unknownName = "unknown"

// ErrTruncated means a download ended before Content-Length bytes arrived.
var ErrTruncated = errors.New("download truncated")

// Options configures a Mapper.
type Options struct {
	// Client fetches download links. nil uses pkg/http.DefaultClient.
	Client *gohttp.Client

	// TempDir holds staged downloads. "" uses os.TempDir().
	TempDir string

	// QuotaCache, with QuotaTTL > 0, caches normalized quota per session.
	QuotaCache cache.Store
	QuotaTTL   time.Duration
}

// Mapper is the OperationMapper: it performs listing, transfer, deletion
// and quota calls on behalf of a session.
type Mapper struct {
	opts Options
}

// New creates a Mapper.
func New(opts Options) *Mapper {
	return &Mapper{opts: opts}
}

// TempDir is where uploads and downloads are staged.
func (m *Mapper) TempDir() string { return m.opts.TempDir }

// Kind tags a listing item.
type Kind string

const (
	KindFile      Kind = "file"
	KindDirectory Kind = "directory"
)

// Item is one normalized listing entry. Size is present for files only.
type Item struct {
	Name          string `json:"name"`
	Path          string `json:"path"`
	Type          Kind   `json:"type"`
	Size          *int64 `json:"size,omitempty"`
	SizeFormatted string `json:"size_formatted,omitempty"`
}

// Listing is the result of ListEntries: files first, then directories.
type Listing struct {
	Path  string `json:"path"`
	Items []Item `json:"items"`
	Total int    `json:"total"`
}

// Upload is a staged upload handed over by the transport layer. The mapper
// owns File from then on and releases it.
type Upload struct {
	File     *TempFile
	Dir      string
	Filename string
}

// UploadResult reports a finished upload. Success false means the provider
// declined it.
type UploadResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
}

// LinkResult is a direct download link. Never cache it.
type LinkResult struct {
	Path      string            `json:"path"`
	URL       string            `json:"download_link"`
	Headers   map[string]string `json:"headers"`
	ExpiresAt time.Time         `json:"expires_at"`
}

// DeleteResult reports a delete. Outcome is the raw provider outcome.
type DeleteResult struct {
	Success bool   `json:"success"`
	Path    string `json:"path"`
	Outcome string `json:"-"`
}

// QuotaInfo is the normalized quota. Degraded marks the sentinel fallback.
type QuotaInfo struct {
	Total          int64  `json:"total"`
	Used           int64  `json:"used"`
	Free           int64  `json:"free"`
	TotalFormatted string `json:"total_formatted"`
	UsedFormatted  string `json:"used_formatted"`
	FreeFormatted  string `json:"free_formatted"`
	Degraded       bool   `json:"degraded"`
}

// Staged is a downloaded file waiting to be served. Call Release after the
// response has been written.
type Staged struct {
	*TempFile
	Name string
}

// call runs fn on the session's drive, records the op and wraps failures.
func call[T any](ctx context.Context, sess *session.Session, op, p string, fn func(drive.Drive) (T, error)) (T, error) {
	var out T
	start := time.Now()
	err := sess.Do(func(d drive.Drive) error {
		var err error
		out, err = fn(d)
		return err
	})
	metrics.ObserveRemoteOp(op, start, err)
	if err != nil {
		logger.WithCtx(ctx).Error("gateway: remote operation failed",
			"op", op, "path", p, "key_prefix", sess.KeyPrefix, "error", err)
		return out, apierr.Remote(op, p, err)
	}
	return out, nil
}

// ── Listing ───────────────────────────────────────────────────────────────────

// ListEntries lists dir. Any remote failure fails the whole listing.
func (m *Mapper) ListEntries(ctx context.Context, sess *session.Session, dir string) (*Listing, error) {
	dir, err := NormalizePath(dir)
	if err != nil {
		return nil, err
	}

	files, err := call(ctx, sess, "list_files", dir, func(d drive.Drive) ([]drive.Entry, error) {
		return d.ListFiles(ctx, dir)
	})
	if err != nil {
		return nil, err
	}
	dirs, err := call(ctx, sess, "list_dirs", dir, func(d drive.Drive) ([]drive.Entry, error) {
		return d.ListDirs(ctx, dir)
	})
	if err != nil {
		return nil, err
	}

	items := make([]Item, 0, len(files)+len(dirs))
	for _, e := range files {
		items = append(items, toItem(e, dir, KindFile))
	}
	for _, e := range dirs {
		items = append(items, toItem(e, dir, KindDirectory))
	}

	return &Listing{Path: dir, Items: items, Total: len(items)}, nil
}

func toItem(e drive.Entry, dir string, kind Kind) Item {
	it := Item{Type: kind, Name: unknownName, Path: dir}
	if e.Name != nil {
		it.Name = *e.Name
		it.Path = joinRemote(dir, it.Name)
	}
	if e.Path != "" {
		it.Path = e.Path
	}
	if kind == KindFile {
		var size int64
		if e.Size != nil {
			size = *e.Size
		}
		it.Size = &size
		it.SizeFormatted = humanize.IBytes(uint64(max(size, 0)))
	}
	return it
}

// ── Transfers ─────────────────────────────────────────────────────────────────

// UploadEntry sanitizes the filename, uploads the staged file to
// dir/name and releases the staged file on every path.
func (m *Mapper) UploadEntry(ctx context.Context, sess *session.Session, up Upload) (*UploadResult, error) {
	defer m.release(ctx, up.File)

	name := SanitizeFilename(up.Filename)
	if name == "" {
		return nil, apierr.Validation("file", apierr.ErrEmptyFilename)
	}
	dir, err := NormalizePath(up.Dir)
	if err != nil {
		return nil, err
	}
	remote := joinRemote(dir, name)

	ok, err := call(ctx, sess, "upload", remote, func(d drive.Drive) (bool, error) {
		return d.Upload(ctx, up.File.Path(), remote)
	})
	if err != nil {
		return nil, err
	}

	log := logger.WithCtx(ctx).With("path", remote, "key_prefix", sess.KeyPrefix)
	if ok {
		metrics.TransferBytes.WithLabelValues("upload").Add(float64(up.File.Size()))
		m.invalidateQuota(ctx, sess)
		log.Info("gateway: upload finished", "bytes", up.File.Size())
	} else {
		log.Warn("gateway: upload declined by provider")
	}
	return &UploadResult{Success: ok, Path: remote}, nil
}

// GetDownloadLink resolves a fresh direct link for p.
func (m *Mapper) GetDownloadLink(ctx context.Context, sess *session.Session, p string) (*LinkResult, error) {
	p, err := RequirePath(p)
	if err != nil {
		return nil, err
	}

	link, err := call(ctx, sess, "download_link", p, func(d drive.Drive) (drive.Link, error) {
		return d.DownloadLink(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	headers := link.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	return &LinkResult{Path: p, URL: link.URL, Headers: headers, ExpiresAt: link.ExpiresAt}, nil
}

// DownloadEntry streams p into w through a fresh link and returns the byte
// count. Non-2xx answers and short bodies are failures.
func (m *Mapper) DownloadEntry(ctx context.Context, sess *session.Session, p string, w io.Writer) (int64, error) {
	link, err := m.GetDownloadLink(ctx, sess, p)
	if err != nil {
		return 0, err
	}
	p = link.Path

	start := time.Now()
	n, err := m.fetch(ctx, link, w)
	metrics.ObserveRemoteOp("download", start, err)
	metrics.TransferBytes.WithLabelValues("download").Add(float64(n))
	if err != nil {
		logger.WithCtx(ctx).Error("gateway: download failed", "path", p, "bytes", n, "error", err)
		return n, apierr.Remote("download", p, err)
	}
	return n, nil
}

func (m *Mapper) fetch(ctx context.Context, link *LinkResult, w io.Writer) (int64, error) {
	resp, err := khttp.Get(link.URL).
		Headers(link.Headers).
		WithContext(ctx).
		Using(m.opts.Client).
		Retry(2, 500*time.Millisecond).
		Stream()
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if !resp.OK() {
		return 0, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, err
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("%w: got %d of %d bytes", ErrTruncated, n, resp.ContentLength)
	}
	return n, nil
}

// StageDownload downloads p into a temp file. On failure nothing is left on
// disk; on success the caller serves the file and releases it.
func (m *Mapper) StageDownload(ctx context.Context, sess *session.Session, p string) (*Staged, error) {
	p, err := RequirePath(p)
	if err != nil {
		return nil, err
	}

	f, err := os.CreateTemp(m.opts.TempDir, "drivegate-*")
	if err != nil {
		return nil, fmt.Errorf("gateway: create temp file: %w", err)
	}
	tmp := &TempFile{path: f.Name()}

	n, err := m.DownloadEntry(ctx, sess, p, f)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = apierr.Remote("download", p, cerr)
	}
	if err != nil {
		m.release(ctx, tmp)
		return nil, err
	}

	tmp.size = n
	return &Staged{TempFile: tmp, Name: path.Base(p)}, nil
}

func (m *Mapper) release(ctx context.Context, f *TempFile) {
	if f == nil {
		return
	}
	if err := f.Release(); err != nil {
		logger.WithCtx(ctx).Warn("gateway: temp file cleanup failed", "file", f.Path(), "error", err)
	}
}

// ── Delete ────────────────────────────────────────────────────────────────────

// DeleteEntry removes p. A provider answering "false" is reported as
// Success false, not as an error.
func (m *Mapper) DeleteEntry(ctx context.Context, sess *session.Session, p string) (*DeleteResult, error) {
	p, err := RequirePath(p)
	if err != nil {
		return nil, err
	}

	outcome, err := call(ctx, sess, "delete", p, func(d drive.Drive) (drive.Outcome, error) {
		return d.Delete(ctx, p)
	})
	if err != nil {
		return nil, err
	}

	if outcome.OK() {
		m.invalidateQuota(ctx, sess)
	}
	logger.WithCtx(ctx).Info("gateway: delete", "path", p, "outcome", outcome.String(), "key_prefix", sess.KeyPrefix)
	return &DeleteResult{Success: outcome.OK(), Path: p, Outcome: outcome.String()}, nil
}

// ── Quota ─────────────────────────────────────────────────────────────────────

func quotaKey(sess *session.Session) string { return "quota:" + sess.Key }

func (m *Mapper) quotaCached() bool {
	return m.opts.QuotaCache != nil && m.opts.QuotaTTL > 0
}

// GetQuota reports normalized usage for the session's account.
func (m *Mapper) GetQuota(ctx context.Context, sess *session.Session) (*QuotaInfo, error) {
	if m.quotaCached() {
		var info QuotaInfo
		if m.opts.QuotaCache.Get(ctx, quotaKey(sess), &info) {
			return &info, nil
		}
	}

	report, err := call(ctx, sess, "quota", "", func(d drive.Drive) (drive.QuotaReport, error) {
		return d.Quota(ctx)
	})
	if err != nil {
		return nil, err
	}

	total, used, ok := NormalizeQuota(report)
	if !ok {
		logger.WithCtx(ctx).Warn("gateway: unrecognized quota shape, reporting sentinel values",
			"shape", report.Shape, "key_prefix", sess.KeyPrefix)
		total, used = SentinelTotal, SentinelUsed
	}
	info := newQuotaInfo(total, used, !ok)

	if m.quotaCached() {
		if err := m.opts.QuotaCache.Set(ctx, quotaKey(sess), info, m.opts.QuotaTTL); err != nil {
			logger.WithCtx(ctx).Warn("gateway: quota cache write failed", "error", err)
		}
	}
	return info, nil
}

func (m *Mapper) invalidateQuota(ctx context.Context, sess *session.Session) {
	if !m.quotaCached() {
		return
	}
	if err := m.opts.QuotaCache.Del(ctx, quotaKey(sess)); err != nil {
		logger.WithCtx(ctx).Warn("gateway: quota cache invalidation failed", "error", err)
	}
}

// NormalizeQuota extracts total and used bytes from a provider report. A
// mapping uses "total", falling back to "quota"; a missing "used" is 0.
func NormalizeQuota(r drive.QuotaReport) (total, used int64, ok bool) {
	switch r.Shape {
	case drive.ShapeTotalUsed, drive.ShapeQuotaUsed:
		return r.Total, r.Used, true
	case drive.ShapeMapping:
		total, found := r.Fields["total"]
		if !found {
			total, found = r.Fields["quota"]
		}
		if !found {
			return 0, 0, false
		}
		return total, r.Fields["used"], true
	default:
		return 0, 0, false
	}
}

func newQuotaInfo(total, used int64, degraded bool) *QuotaInfo {
	free := max(total-used, 0)
	return &QuotaInfo{
		Total:          total,
		Used:           used,
		Free:           free,
		TotalFormatted: humanize.IBytes(uint64(max(total, 0))),
		UsedFormatted:  humanize.IBytes(uint64(max(used, 0))),
		FreeFormatted:  humanize.IBytes(uint64(free)),
		Degraded:       degraded,
	}
}
