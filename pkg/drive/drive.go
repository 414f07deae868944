// Package drive defines the remote-drive contract consumed by the gateway and
// ships three drivers:
//   - "memory": in-process fake, seeded with sample folders (development, tests)
//   - "local": one directory per account under a local root
//   - "s3": S3-compatible bucket, credential = "ACCESS_KEY:SECRET_KEY"
//
// A Driver turns a credential into an authenticated Drive handle:
//
//	d, err := drivers.Login(ctx, credential)
//	if errors.Is(err, drive.ErrInvalidCredential) { ... }
//	files, err := d.ListFiles(ctx, "/docs")
//
// Result shapes vary between providers. Entries carry optional Name/Size,
// deletes report a tri-state Outcome and quotas a tagged QuotaReport, so the
// gateway never has to guess what a provider returned.
package drive

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrInvalidCredential is returned by Login when the provider rejects the credential.
	ErrInvalidCredential = errors.New("drive: credential rejected")

	// ErrNotFound is returned when a remote path does not exist.
	ErrNotFound = errors.New("drive: not found")
)

// Driver creates authenticated Drive handles.
type Driver interface {
	// Name is the configuration name of the driver ("memory", "local", "s3").
	Name() string

	// Login authenticates credential against the provider. A rejected
	// credential yields ErrInvalidCredential; any other error is a transport
	// or provider failure.
	Login(ctx context.Context, credential string) (Drive, error)
}

// Drive is an authenticated handle on one remote account.
//
// Handles are assumed NOT safe for concurrent use unless they implement
// ConcurrentSafe and return true.
type Drive interface {
	// ListFiles lists the regular files directly inside dir.
	ListFiles(ctx context.Context, dir string) ([]Entry, error)

	// ListDirs lists the sub-directories directly inside dir.
	ListDirs(ctx context.Context, dir string) ([]Entry, error)

	// Upload copies the local file at localPath to remotePath. A false result
	// without error means the provider declined the upload.
	Upload(ctx context.Context, localPath, remotePath string) (bool, error)

	// DownloadLink returns a short-lived URL for fetching remotePath.
	DownloadLink(ctx context.Context, remotePath string) (Link, error)

	// Delete removes remotePath.
	Delete(ctx context.Context, remotePath string) (Outcome, error)

	// Quota reports account usage in whatever shape the provider offers.
	Quota(ctx context.Context) (QuotaReport, error)
}

// ConcurrentSafe is implemented by handles that may be used from several
// goroutines at once.
type ConcurrentSafe interface {
	ConcurrentSafe() bool
}

// IsConcurrentSafe reports whether d declared itself safe for concurrent use.
func IsConcurrentSafe(d Drive) bool {
	cs, ok := d.(ConcurrentSafe)
	return ok && cs.ConcurrentSafe()
}

// Entry is one listing record as reported by a provider. Name and Size are
// optional because not every provider reports them for every object.
type Entry struct {
	Name  *string
	Path  string // full remote path when the provider reports one
	Size  *int64
	IsDir bool
}

// Named returns a pointer to name, for building Entry values.
func Named(name string) *string { return &name }

// Sized returns a pointer to n, for building Entry values.
func Sized(n int64) *int64 { return &n }

// Link is a direct download URL plus the request headers a client must send
// when fetching it. Links expire; never cache them.
type Link struct {
	URL       string
	Headers   map[string]string
	ExpiresAt time.Time
}

// Outcome is the result of a remote mutation. Some providers return nothing
// at all on success, which is reported as OutcomeVoid.
type Outcome uint8

const (
	OutcomeVoid Outcome = iota
	OutcomeTrue
	OutcomeFalse
)

// OK reports whether the outcome counts as success.
func (o Outcome) OK() bool { return o != OutcomeFalse }

func (o Outcome) String() string {
	switch o {
	case OutcomeTrue:
		return "true"
	case OutcomeFalse:
		return "false"
	default:
		return "void"
	}
}

// QuotaShape tags which fields of a QuotaReport are meaningful.
type QuotaShape uint8

const (
	// ShapeUnknown means the provider returned something unrecognized.
	ShapeUnknown QuotaShape = iota
	// ShapeTotalUsed carries Total and Used.
	ShapeTotalUsed
	// ShapeQuotaUsed carries Total (named "quota" by the provider) and Used.
	ShapeQuotaUsed
	// ShapeMapping carries a loose key/value mapping in Fields.
	ShapeMapping
)

// QuotaReport is the provider's raw quota answer.
type QuotaReport struct {
	Shape  QuotaShape
	Total  int64
	Used   int64
	Fields map[string]int64
}
