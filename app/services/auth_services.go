// Package services holds the request-independent logic behind the HTTP
// controllers.
package services

import (
	"context"
	"net/http"
	"strings"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
	"github.com/shashiranjanraj/drivegate/internal/session"
	"github.com/shashiranjanraj/drivegate/pkg/drive"
	"github.com/shashiranjanraj/drivegate/pkg/logger"
)

// Mode selects how requests carry their credential.
type Mode string

const (
	// ModeSession trades the credential for a session token at /login.
	ModeSession Mode = "session"
	// ModeHeader sends the raw credential with every request.
	ModeHeader Mode = "header"
)

// ParseMode maps a config value onto a Mode, defaulting to session.
func ParseMode(s string) Mode {
	if Mode(strings.ToLower(strings.TrimSpace(s))) == ModeHeader {
		return ModeHeader
	}
	return ModeSession
}

// AuthOptions names the headers each mode reads.
type AuthOptions struct {
	Mode             Mode
	CredentialHeader string
	SessionHeader    string
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	SessionID string `json:"session_id"`
	KeyPrefix string `json:"key_prefix"`
}

// AuthService ties requests to sessions.
type AuthService struct {
	registry *session.Registry
	tokens   *session.Tokens
	opts     AuthOptions
}

func NewAuthService(registry *session.Registry, tokens *session.Tokens, opts AuthOptions) *AuthService {
	if opts.CredentialHeader == "" {
		opts.CredentialHeader = "X-Drive-Credential"
	}
	if opts.SessionHeader == "" {
		opts.SessionHeader = "X-Session-ID"
	}
	if opts.Mode == "" {
		opts.Mode = ModeSession
	}
	return &AuthService{registry: registry, tokens: tokens, opts: opts}
}

// Mode reports the configured credential transport.
func (s *AuthService) Mode() Mode { return s.opts.Mode }

// Login validates credential against the provider (reusing a live session
// when there is one). In session mode it issues a session token; in header
// mode the key prefix is returned as session_id for client compatibility.
func (s *AuthService) Login(ctx context.Context, credential, requestedID string) (*LoginResult, error) {
	if s.opts.Mode == ModeHeader {
		sess, err := s.registry.Resolve(ctx, credential)
		if err != nil {
			return nil, err
		}
		return &LoginResult{SessionID: sess.KeyPrefix, KeyPrefix: sess.KeyPrefix}, nil
	}

	// A session_id owned by another credential is refused before the
	// provider is contacted.
	if strings.TrimSpace(credential) != "" {
		if err := s.tokens.Check(drive.Fingerprint(credential), requestedID); err != nil {
			return nil, err
		}
	}

	sess, err := s.registry.Resolve(ctx, credential)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(sess.Key, sess.KeyPrefix, requestedID)
	if err != nil {
		// Lost a race for the id. A session no token points at is unreachable.
		if s.tokens.Bound(sess.Key) == 0 {
			s.registry.EvictKey(sess.Key)
		}
		return nil, err
	}
	logger.WithCtx(ctx).Info("auth: session token issued", "key_prefix", sess.KeyPrefix)
	return &LoginResult{SessionID: token, KeyPrefix: sess.KeyPrefix}, nil
}

// Authenticate resolves the request's session and returns a context
// carrying it.
func (s *AuthService) Authenticate(r *http.Request) (context.Context, error) {
	var (
		sess *session.Session
		err  error
	)
	switch s.opts.Mode {
	case ModeHeader:
		sess, err = s.registry.Resolve(r.Context(), r.Header.Get(s.opts.CredentialHeader))
	default:
		sess, err = s.fromToken(r.Header.Get(s.opts.SessionHeader))
	}
	if err != nil {
		return nil, err
	}
	return session.NewContext(r.Context(), sess), nil
}

func (s *AuthService) fromToken(token string) (*session.Session, error) {
	key, err := s.tokens.Resolve(token)
	if err != nil {
		return nil, err
	}
	sess, ok := s.registry.Lookup(key)
	if !ok {
		s.tokens.ForgetKey(key)
		return nil, apierr.Auth(apierr.ErrSessionExpired)
	}
	return sess, nil
}

// Logout drops the caller's session. It never fails; the result reports
// whether anything was removed.
func (s *AuthService) Logout(r *http.Request) bool {
	log := logger.WithCtx(r.Context())

	if s.opts.Mode == ModeHeader {
		cred := r.Header.Get(s.opts.CredentialHeader)
		if strings.TrimSpace(cred) == "" {
			return false
		}
		evicted := s.registry.Evict(cred)
		log.Info("auth: logout", "evicted", evicted)
		return evicted
	}

	key, revoked := s.tokens.Revoke(r.Header.Get(s.opts.SessionHeader))
	if !revoked {
		return false
	}
	evicted := s.registry.EvictKey(key)
	log.Info("auth: logout", "evicted", evicted)
	return true
}
