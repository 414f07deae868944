package drive

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// S3Options configures the S3-compatible driver. Works with AWS S3, MinIO,
// DigitalOcean Spaces and Cloudflare R2.
type S3Options struct {
	Bucket   string
	Region   string
	Endpoint string // leave empty for real AWS

	// QuotaBytes is the advertised bucket capacity. S3 has no quota API, so
	// zero reports an unknown quota shape.
	QuotaBytes int64

	// LinkTTL bounds presigned URL lifetime.
	LinkTTL time.Duration
}

// S3Driver logs in with "ACCESS_KEY:SECRET_KEY[:SESSION_TOKEN]" credentials
// and checks them with HeadBucket.
type S3Driver struct {
	opts S3Options
}

// NewS3 validates opts and returns the driver.
func NewS3(opts S3Options) (*S3Driver, error) {
	if opts.Bucket == "" {
		return nil, fmt.Errorf("drive/s3: S3_BUCKET is not configured")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}
	if opts.LinkTTL <= 0 {
		opts.LinkTTL = 5 * time.Minute
	}
	return &S3Driver{opts: opts}, nil
}

func (d *S3Driver) Name() string { return "s3" }

// parseS3Credential splits "KEY:SECRET[:TOKEN]".
func parseS3Credential(credential string) (key, secret, token string, ok bool) {
	parts := strings.SplitN(credential, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", "", false
	}
	if len(parts) == 3 {
		token = parts[2]
	}
	return parts[0], parts[1], token, true
}

func (d *S3Driver) Login(ctx context.Context, credential string) (Drive, error) {
	key, secret, token, ok := parseS3Credential(credential)
	if !ok {
		return nil, ErrInvalidCredential
	}

	cfg, err := awscfg.LoadDefaultConfig(ctx,
		awscfg.WithRegion(d.opts.Region),
		awscfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(key, secret, token)),
	)
	if err != nil {
		return nil, fmt.Errorf("drive/s3: load config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if d.opts.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(d.opts.Endpoint)
			o.UsePathStyle = true // required for MinIO
		})
	}
	client := s3.NewFromConfig(cfg, clientOpts...)

	_, err = client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(d.opts.Bucket)})
	if err != nil {
		if isS3AuthError(err) {
			return nil, ErrInvalidCredential
		}
		return nil, fmt.Errorf("drive/s3: head bucket: %w", err)
	}

	return &s3Handle{
		client:  client,
		presign: s3.NewPresignClient(client),
		opts:    d.opts,
	}, nil
}

// isS3AuthError reports whether err means the provider rejected the keys.
func isS3AuthError(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"InvalidToken", "ExpiredToken":
			return true
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusUnauthorized, http.StatusForbidden:
			return true
		}
	}
	return false
}

func isS3NotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}

// ── Drive handle ──────────────────────────────────────────────────────────────

type s3Handle struct {
	client  *s3.Client
	presign *s3.PresignClient
	opts    S3Options
}

func (h *s3Handle) ConcurrentSafe() bool { return true }

// key maps a remote path onto an object key ("/a/b.txt" → "a/b.txt").
func s3Key(remotePath string) string {
	return strings.TrimPrefix(cleanRemote(remotePath), "/")
}

// s3Prefix maps a remote directory onto a listing prefix ("/a" → "a/").
func s3Prefix(dir string) string {
	pfx := s3Key(dir)
	if pfx != "" {
		pfx += "/"
	}
	return pfx
}

func (h *s3Handle) ListFiles(ctx context.Context, dir string) ([]Entry, error) {
	prefix := s3Prefix(dir)
	out := []Entry{}

	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(h.opts.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("drive/s3: list %s: %w", dir, err)
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix || strings.HasSuffix(key, "/") {
				continue // directory marker
			}
			out = append(out, Entry{
				Name: Named(path.Base(key)),
				Path: "/" + key,
				Size: obj.Size,
			})
		}
	}
	return out, nil
}

func (h *s3Handle) ListDirs(ctx context.Context, dir string) ([]Entry, error) {
	prefix := s3Prefix(dir)
	out := []Entry{}

	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket:    aws.String(h.opts.Bucket),
		Prefix:    aws.String(prefix),
		Delimiter: aws.String("/"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("drive/s3: directories %s: %w", dir, err)
		}
		for _, cp := range page.CommonPrefixes {
			p := strings.TrimSuffix(aws.ToString(cp.Prefix), "/")
			if p == "" {
				continue
			}
			out = append(out, Entry{Name: Named(path.Base(p)), Path: "/" + p, IsDir: true})
		}
	}
	return out, nil
}

func (h *s3Handle) Upload(ctx context.Context, localPath, remotePath string) (bool, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return false, fmt.Errorf("drive/s3: open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return false, fmt.Errorf("drive/s3: stat %s: %w", localPath, err)
	}

	_, err = h.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(h.opts.Bucket),
		Key:           aws.String(s3Key(remotePath)),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
	})
	if err != nil {
		return false, fmt.Errorf("drive/s3: put %s: %w", remotePath, err)
	}
	return true, nil
}

func (h *s3Handle) DownloadLink(ctx context.Context, remotePath string) (Link, error) {
	key := s3Key(remotePath)
	if _, err := h.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
	}); err != nil {
		if isS3NotFound(err) {
			return Link{}, fmt.Errorf("drive/s3: %s: %w", remotePath, ErrNotFound)
		}
		return Link{}, fmt.Errorf("drive/s3: head %s: %w", remotePath, err)
	}

	req, err := h.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(h.opts.LinkTTL))
	if err != nil {
		return Link{}, fmt.Errorf("drive/s3: presign %s: %w", remotePath, err)
	}

	headers := make(map[string]string, len(req.SignedHeader))
	for k, v := range req.SignedHeader {
		if len(v) > 0 && !strings.EqualFold(k, "host") {
			headers[k] = v[0]
		}
	}
	return Link{URL: req.URL, Headers: headers, ExpiresAt: time.Now().Add(h.opts.LinkTTL)}, nil
}

// Delete reports OutcomeVoid: DeleteObject answers the same whether or not
// the key existed.
func (h *s3Handle) Delete(ctx context.Context, remotePath string) (Outcome, error) {
	_, err := h.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(h.opts.Bucket),
		Key:    aws.String(s3Key(remotePath)),
	})
	if err != nil {
		return OutcomeFalse, fmt.Errorf("drive/s3: delete %s: %w", remotePath, err)
	}
	return OutcomeVoid, nil
}

func (h *s3Handle) Quota(ctx context.Context) (QuotaReport, error) {
	var used int64
	paginator := s3.NewListObjectsV2Paginator(h.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(h.opts.Bucket),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return QuotaReport{}, fmt.Errorf("drive/s3: quota: %w", err)
		}
		for _, obj := range page.Contents {
			used += aws.ToInt64(obj.Size)
		}
	}

	if h.opts.QuotaBytes <= 0 {
		return QuotaReport{Shape: ShapeUnknown, Used: used}, nil
	}
	return QuotaReport{Shape: ShapeQuotaUsed, Total: h.opts.QuotaBytes, Used: used}, nil
}
