package controllers

import (
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/internal/gateway"
	"github.com/shashiranjanraj/drivegate/pkg/ctx"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
	"github.com/shashiranjanraj/drivegate/pkg/workerpool"
)

// maxPathField bounds the "path" multipart field.
const maxPathField = 4096

// DriveController serves the file endpoints. Transfers run on the bounded
// pool; everything else runs on the request goroutine.
type DriveController struct {
	mapper *gateway.Mapper
	pool   *workerpool.Pool
}

func NewDriveController(mapper *gateway.Mapper, pool *workerpool.Pool) *DriveController {
	return &DriveController{mapper: mapper, pool: pool}
}

// pathParam reads the target path from the route wildcard, falling back to
// the "path" query parameter.
func pathParam(c *ctx.Context) string {
	if p := c.Param("*"); p != "" {
		return p
	}
	return c.Query("path")
}

// ── List ──────────────────────────────────────────────────────────────────────

// List handles GET /list and GET /api/files.
func (dc *DriveController) List(c *ctx.Context) {
	listing, err := dc.mapper.ListEntries(c.Context(), c.Session(), c.DefaultQuery("path", "/"))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(listing)
}

// ── Upload ────────────────────────────────────────────────────────────────────

// Upload handles POST /upload and POST /api/files. The multipart body is
// streamed to a temp file; the upload itself runs on the transfer pool.
func (dc *DriveController) Upload(c *ctx.Context) {
	up, err := dc.readUpload(c)
	if up.File != nil {
		defer up.File.Release()
	}
	if err != nil {
		c.Fail(err)
		return
	}
	if up.Dir == "" {
		up.Dir = c.Query("path")
	}

	var (
		res  *gateway.UploadResult
		uerr error
	)
	// The task may outlive this handler; it must not touch c.
	reqCtx, sess := c.Context(), c.Session()
	if err := dc.pool.Do(reqCtx, func() {
		res, uerr = dc.mapper.UploadEntry(reqCtx, sess, up)
	}); err != nil {
		c.Fail(err)
		return
	}
	if uerr != nil {
		c.Fail(uerr)
		return
	}

	msg := "upload complete"
	if !res.Success {
		msg = "upload declined by provider"
	}
	c.Success(struct {
		*gateway.UploadResult
		Message string `json:"message"`
	}{res, msg})
}

// readUpload stages the first "file" part and reads the "path" field. The
// returned Upload's File is set whenever something was staged, even on error.
func (dc *DriveController) readUpload(c *ctx.Context) (gateway.Upload, error) {
	var up gateway.Upload

	mr, err := c.R.MultipartReader()
	if err != nil {
		return up, apierr.Validation("file", apierr.ErrMissingParameter)
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return up, bodyError(err)
		}

		switch part.FormName() {
		case "path":
			b, err := io.ReadAll(io.LimitReader(part, maxPathField+1))
			if err != nil {
				part.Close()
				return up, bodyError(err)
			}
			if len(b) > maxPathField {
				part.Close()
				return up, apierr.Validation("path", apierr.ErrInvalidPath)
			}
			up.Dir = string(b)
		case "file":
			if up.File == nil {
				if err := dc.stagePart(&up, part); err != nil {
					part.Close()
					return up, err
				}
			}
		}
		part.Close()
	}

	if up.File == nil {
		return up, apierr.Validation("file", apierr.ErrMissingParameter)
	}
	if up.Filename == "" {
		return up, apierr.Validation("file", apierr.ErrEmptyFilename)
	}
	return up, nil
}

func (dc *DriveController) stagePart(up *gateway.Upload, part *multipart.Part) error {
	f, err := gateway.Stage(dc.mapper.TempDir(), part)
	if err != nil {
		return bodyError(err)
	}
	up.File = f
	up.Filename = part.FileName()
	return nil
}

// bodyError keeps the body-cap error recognizable and reports anything else
// as an unusable request body.
func bodyError(err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return maxErr
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return apierr.Validation("file", apierr.ErrInvalidParameter)
}

// ── Download ──────────────────────────────────────────────────────────────────

// stagedHandoff passes a staged download from a pool task to the handler.
// If the handler gives up first, whichever side arrives second releases the
// file.
type stagedHandoff struct {
	mu        sync.Mutex
	abandoned bool
	staged    *gateway.Staged
	err       error
}

func (h *stagedHandoff) deliver(s *gateway.Staged, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.abandoned {
		if s != nil {
			s.Release() //nolint:errcheck
		}
		return
	}
	h.staged, h.err = s, err
}

func (h *stagedHandoff) abandon() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.abandoned = true
	if h.staged != nil {
		h.staged.Release() //nolint:errcheck
		h.staged = nil
	}
}

// Download handles GET /download: the file is staged locally, then served
// as an attachment and released.
func (dc *DriveController) Download(c *ctx.Context) {
	reqCtx, sess, p := c.Context(), c.Session(), c.Query("path")

	h := &stagedHandoff{}
	if err := dc.pool.Do(reqCtx, func() {
		h.deliver(dc.mapper.StageDownload(reqCtx, sess, p))
	}); err != nil {
		h.abandon()
		c.Fail(err)
		return
	}
	if h.err != nil {
		c.Fail(h.err)
		return
	}

	staged := h.staged
	defer staged.Release()
	serveAttachment(c, staged)
}

func serveAttachment(c *ctx.Context, staged *gateway.Staged) {
	f, err := staged.Open()
	if err != nil {
		c.Fail(err)
		return
	}
	defer f.Close()

	ctype := "application/octet-stream"
	if mt, err := mimetype.DetectFile(staged.Path()); err == nil {
		ctype = mt.String()
	}

	c.SetHeader("Content-Type", ctype)
	c.SetHeader("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": staged.Name}))
	c.SetHeader("X-Content-Type-Options", "nosniff")

	logger.WithCtx(c.Context()).Info("download: serving staged file", "file", staged.Name, "bytes", staged.Size())
	http.ServeContent(c.W, c.R, staged.Name, time.Time{}, f)
}

// DownloadLink handles GET /download_link and GET /api/files/{path}.
func (dc *DriveController) DownloadLink(c *ctx.Context) {
	link, err := dc.mapper.GetDownloadLink(c.Context(), c.Session(), pathParam(c))
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(struct {
		*gateway.LinkResult
		FilePath string `json:"file_path"`
	}{link, link.Path})
}

// ── Delete ────────────────────────────────────────────────────────────────────

// Delete handles DELETE /delete and DELETE /api/files/{path}.
func (dc *DriveController) Delete(c *ctx.Context) {
	res, err := dc.mapper.DeleteEntry(c.Context(), c.Session(), pathParam(c))
	if err != nil {
		c.Fail(err)
		return
	}

	msg := "deleted"
	if !res.Success {
		msg = "provider reported nothing was deleted"
	}
	c.Success(struct {
		*gateway.DeleteResult
		Message string `json:"message"`
	}{res, msg})
}

// ── Quota ─────────────────────────────────────────────────────────────────────

// Quota handles GET /api/quota.
func (dc *DriveController) Quota(c *ctx.Context) {
	info, err := dc.mapper.GetQuota(c.Context(), c.Session())
	if err != nil {
		c.Fail(err)
		return
	}
	c.Success(info)
}
