package session

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shashiranjanraj/drivegate/pkg/drive"
)

// Session is one authenticated remote-drive handle. At most one exists per
// credential at a time.
type Session struct {
	// Key is the credential fingerprint.
	Key string
	// KeyPrefix is the loggable credential prefix.
	KeyPrefix string
	Drive     drive.Drive
	CreatedAt time.Time

	lastUsed atomic.Int64 // unix nanos
	now      func() time.Time

	// mu serializes calls into Drive unless the handle is ConcurrentSafe.
	mu        sync.Mutex
	serialize bool
}

func newSession(key, credential string, d drive.Drive, clock func() time.Time) *Session {
	now := clock()
	s := &Session{
		Key:       key,
		KeyPrefix: drive.KeyPrefix(credential),
		Drive:     d,
		CreatedAt: now,
		now:       clock,
		serialize: !drive.IsConcurrentSafe(d),
	}
	s.lastUsed.Store(now.UnixNano())
	return s
}

// LastUsed reports when the session was last resolved or used.
func (s *Session) LastUsed() time.Time {
	return time.Unix(0, s.lastUsed.Load())
}

func (s *Session) touch(now time.Time) {
	s.lastUsed.Store(now.UnixNano())
}

// Do runs fn against the session's drive, holding the per-session lock for
// handles that are not safe for concurrent use.
func (s *Session) Do(fn func(drive.Drive) error) error {
	if s.serialize {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	s.touch(s.now())
	return fn(s.Drive)
}

type ctxKey struct{}

// NewContext stores s in ctx.
func NewContext(ctx context.Context, s *Session) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext returns the session stored by NewContext.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Session)
	return s, ok && s != nil
}
