package session

import (
	"crypto/rand"
	"fmt"
	"regexp"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
)

// Tokens issues the opaque session_id handed out by /login and maps it back
// to a registry key. A token is an HS256 JWT whose jti is the session id;
// the index remembers which credential fingerprint each id belongs to.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu    sync.Mutex
	sids  map[string]string   // sid → registry key
	byKey map[string][]string // registry key → sids
}

type tokenClaims struct {
	KeyPrefix string `json:"kp,omitempty"`
	jwt.RegisteredClaims
}

var requestedIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

// NewTokens creates a token index. An empty secret is replaced by a random
// per-process one, which invalidates tokens on restart along with the
// sessions they point at. ttl <= 0 issues tokens without expiry.
func NewTokens(secret []byte, ttl time.Duration) *Tokens {
	if len(secret) == 0 {
		secret = make([]byte, 32)
		_, _ = rand.Read(secret)
	}
	return &Tokens{
		secret: secret,
		ttl:    ttl,
		now:    time.Now,
		sids:   make(map[string]string),
		byKey:  make(map[string][]string),
	}
}

// Secret returns the signing key, so download links can share it.
func (t *Tokens) Secret() []byte { return t.secret }

// Check reports whether requestedID could be issued for key without
// logging anyone in first. An empty requestedID always passes.
func (t *Tokens) Check(key, requestedID string) error {
	if requestedID == "" {
		return nil
	}
	if !requestedIDPattern.MatchString(requestedID) {
		return apierr.Validation("session_id", apierr.ErrInvalidParameter)
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if owner, ok := t.sids[requestedID]; ok && owner != key {
		return apierr.Validation("session_id", apierr.ErrInvalidParameter)
	}
	return nil
}

// Bound reports how many session ids point at key.
func (t *Tokens) Bound(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.byKey[key])
}

// Issue signs a token for the session at key. requestedID, when non-empty,
// becomes the session id; otherwise a random UUID is used.
func (t *Tokens) Issue(key, keyPrefix, requestedID string) (string, error) {
	sid := requestedID
	if sid == "" {
		sid = uuid.NewString()
	} else if !requestedIDPattern.MatchString(sid) {
		return "", apierr.Validation("session_id", apierr.ErrInvalidParameter)
	}

	now := t.now()
	claims := tokenClaims{
		KeyPrefix: keyPrefix,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:       sid,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if t.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(t.ttl))
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("session: sign token: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	// A requested id already bound to another credential is never re-pointed.
	if owner, ok := t.sids[sid]; ok {
		if owner != key {
			return "", apierr.Validation("session_id", apierr.ErrInvalidParameter)
		}
		return token, nil
	}
	t.sids[sid] = key
	t.byKey[key] = append(t.byKey[key], sid)

	return token, nil
}

func (t *Tokens) parse(token string) (*tokenClaims, error) {
	claims := &tokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil || claims.ID == "" {
		return nil, apierr.Auth(apierr.ErrSessionExpired)
	}
	return claims, nil
}

// Resolve verifies token and returns the registry key it points at. Bad,
// expired or revoked tokens yield AuthError(SessionExpired).
func (t *Tokens) Resolve(token string) (string, error) {
	if token == "" {
		return "", apierr.Auth(apierr.ErrMissingCredential)
	}
	claims, err := t.parse(token)
	if err != nil {
		return "", err
	}

	t.mu.Lock()
	key, ok := t.sids[claims.ID]
	t.mu.Unlock()
	if !ok {
		return "", apierr.Auth(apierr.ErrSessionExpired)
	}
	return key, nil
}

// Revoke forgets token's session id and returns the key it pointed at. The
// boolean is advisory.
func (t *Tokens) Revoke(token string) (string, bool) {
	claims, err := t.parse(token)
	if err != nil {
		return "", false
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	key, ok := t.sids[claims.ID]
	if ok {
		t.dropSIDLocked(key, claims.ID)
	}
	return key, ok
}

// ForgetKey drops every session id pointing at key. Wired as the registry's
// eviction hook.
func (t *Tokens) ForgetKey(key string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	sids := t.byKey[key]
	for _, sid := range sids {
		delete(t.sids, sid)
	}
	delete(t.byKey, key)
	return len(sids)
}

// Len reports the number of live session ids.
func (t *Tokens) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sids)
}

func (t *Tokens) dropSIDLocked(key, sid string) {
	delete(t.sids, sid)
	rest := t.byKey[key][:0]
	for _, s := range t.byKey[key] {
		if s != sid {
			rest = append(rest, s)
		}
	}
	if len(rest) == 0 {
		delete(t.byKey, key)
	} else {
		t.byKey[key] = rest
	}
}
