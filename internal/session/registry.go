// Package session owns the credential → live drive handle mapping.
//
// The Registry performs provider logins at most once per credential, even
// under concurrent first use, and keeps the resulting handles until they are
// evicted by logout, idle timeout or capacity pressure.
//
//	reg := session.NewRegistry(driver, session.Options{Policy: session.PolicyIdle, IdleTimeout: 30 * time.Minute})
//	go reg.Run(ctx)
//	sess, err := reg.Resolve(ctx, credential)
package session

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
	"github.com/shashiranjanraj/drivegate/pkg/metrics"
)

// Policy decides when sessions are dropped without an explicit logout.
type Policy string

const (
	// PolicyManual keeps sessions until they are evicted explicitly.
	PolicyManual Policy = "manual"
	// PolicyIdle also evicts sessions unused for IdleTimeout.
	PolicyIdle Policy = "idle"
)

// ParsePolicy maps a config value onto a Policy, defaulting to manual.
func ParsePolicy(s string) Policy {
	if Policy(strings.ToLower(strings.TrimSpace(s))) == PolicyIdle {
		return PolicyIdle
	}
	return PolicyManual
}

// Eviction reasons passed to OnEvict.
const (
	ReasonLogout   = "logout"
	ReasonIdle     = "idle"
	ReasonCapacity = "capacity"
)

// Options tunes a Registry. The zero value is a manual, unbounded registry.
type Options struct {
	Policy        Policy
	IdleTimeout   time.Duration
	SweepInterval time.Duration

	// MaxSessions > 0 bounds the registry; the least recently used session
	// is evicted to make room.
	MaxSessions int

	// LoginTimeout bounds a single provider login. Zero means 30s.
	LoginTimeout time.Duration

	// OnEvict is called after a session leaves the registry.
	OnEvict func(key, reason string)

	Now func() time.Time
}

// Registry maps credential fingerprints to live sessions.
type Registry struct {
	driver drive.Driver
	opts   Options

	mu       sync.Mutex
	sessions map[string]*Session

	logins singleflight.Group
}

// NewRegistry creates an empty registry backed by driver.
func NewRegistry(driver drive.Driver, opts Options) *Registry {
	if opts.Policy == "" {
		opts.Policy = PolicyManual
	}
	if opts.SweepInterval <= 0 {
		opts.SweepInterval = time.Minute
	}
	if opts.LoginTimeout <= 0 {
		opts.LoginTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		driver:   driver,
		opts:     opts,
		sessions: make(map[string]*Session),
	}
}

// Driver returns the driver sessions are created with.
func (r *Registry) Driver() drive.Driver { return r.driver }

// Resolve returns the session for credential, logging in if there is none.
//
// Concurrent resolves of the same unseen credential share a single login and
// receive the same *Session. The registry lock is never held during login.
func (r *Registry) Resolve(ctx context.Context, credential string) (*Session, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, apierr.Auth(apierr.ErrMissingCredential)
	}

	key := drive.Fingerprint(credential)
	if s, ok := r.Lookup(key); ok {
		return s, nil
	}

	v, err, shared := r.logins.Do(key, func() (any, error) {
		if s, ok := r.Lookup(key); ok {
			return s, nil
		}
		return r.login(ctx, key, credential)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		logger.WithCtx(ctx).Debug("session: joined in-flight login", "key_prefix", drive.KeyPrefix(credential))
	}
	return v.(*Session), nil
}

func (r *Registry) login(ctx context.Context, key, credential string) (*Session, error) {
	log := logger.WithCtx(ctx).With("key_prefix", drive.KeyPrefix(credential), "driver", r.driver.Name())

	// One caller's cancellation must not fail the others sharing this login.
	loginCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.opts.LoginTimeout)
	defer cancel()

	start := time.Now()
	d, err := r.driver.Login(loginCtx, credential)
	metrics.ObserveRemoteOp("login", start, err)

	switch {
	case errors.Is(err, drive.ErrInvalidCredential):
		metrics.SessionLogins.WithLabelValues("rejected").Inc()
		log.Warn("session: credential rejected")
		return nil, apierr.Auth(apierr.ErrInvalidCredential)
	case err != nil:
		metrics.SessionLogins.WithLabelValues("error").Inc()
		log.Error("session: login failed", "error", err)
		return nil, apierr.Remote("login", "", err)
	}

	metrics.SessionLogins.WithLabelValues("success").Inc()
	s := newSession(key, credential, d, r.opts.Now)
	r.store(s)
	log.Info("session: created", "concurrent_safe", !s.serialize)
	return s, nil
}

func (r *Registry) store(s *Session) {
	var evicted string

	r.mu.Lock()
	if r.opts.MaxSessions > 0 && len(r.sessions) >= r.opts.MaxSessions {
		evicted = r.oldestLocked()
		delete(r.sessions, evicted)
	}
	r.sessions[s.Key] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	if evicted != "" {
		r.evicted(evicted, ReasonCapacity)
	}
}

func (r *Registry) oldestLocked() string {
	var (
		oldest string
		at     int64
	)
	for key, s := range r.sessions {
		if used := s.lastUsed.Load(); oldest == "" || used < at {
			oldest, at = key, used
		}
	}
	return oldest
}

// Lookup returns the session for a credential fingerprint and marks it used.
func (r *Registry) Lookup(key string) (*Session, bool) {
	r.mu.Lock()
	s, ok := r.sessions[key]
	r.mu.Unlock()
	if ok {
		s.touch(r.opts.Now())
	}
	return s, ok
}

// Evict drops the session for credential. The result is advisory: it
// reports whether a session was present.
func (r *Registry) Evict(credential string) bool {
	return r.EvictKey(drive.Fingerprint(credential))
}

// EvictKey drops the session for a credential fingerprint.
func (r *Registry) EvictKey(key string) bool {
	return r.remove(key, ReasonLogout)
}

func (r *Registry) remove(key, reason string) bool {
	r.mu.Lock()
	_, ok := r.sessions[key]
	delete(r.sessions, key)
	n := len(r.sessions)
	r.mu.Unlock()

	if ok {
		metrics.SessionsActive.Set(float64(n))
		r.evicted(key, reason)
	}
	return ok
}

func (r *Registry) evicted(key, reason string) {
	metrics.SessionEvictions.WithLabelValues(reason).Inc()
	if r.opts.OnEvict != nil {
		r.opts.OnEvict(key, reason)
	}
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Sweep evicts sessions idle for longer than IdleTimeout and returns how
// many were removed. It is a no-op under PolicyManual.
func (r *Registry) Sweep() int {
	if r.opts.Policy != PolicyIdle || r.opts.IdleTimeout <= 0 {
		return 0
	}

	cutoff := r.opts.Now().Add(-r.opts.IdleTimeout).UnixNano()

	r.mu.Lock()
	var stale []string
	for key, s := range r.sessions {
		if s.lastUsed.Load() < cutoff {
			stale = append(stale, key)
			delete(r.sessions, key)
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	if len(stale) > 0 {
		metrics.SessionsActive.Set(float64(n))
	}
	for _, key := range stale {
		r.evicted(key, ReasonIdle)
	}
	return len(stale)
}

// Run sweeps idle sessions every SweepInterval until ctx is cancelled.
func (r *Registry) Run(ctx context.Context) {
	if r.opts.Policy != PolicyIdle {
		return
	}

	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(); n > 0 {
				logger.Info("session: idle sessions evicted", "count", n, "remaining", r.Len())
			}
		}
	}
}
