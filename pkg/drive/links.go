package drive

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// BlobOpener is implemented by drivers whose bytes are served by this process
// rather than by the remote provider.
type BlobOpener interface {
	OpenBlob(account, remotePath string) (io.ReadCloser, int64, error)
}

// LinkSigner issues and serves short-lived download URLs of the form
// <base>/links/<token>. The token is an HS256 JWT naming the driver, the
// account fingerprint and the remote path.
type LinkSigner struct {
	secret  []byte
	baseURL string
	ttl     time.Duration
	now     func() time.Time

	mu      sync.RWMutex
	openers map[string]BlobOpener
}

// LinkClaims are the signed contents of a download link token.
type LinkClaims struct {
	Driver  string `json:"drv"`
	Account string `json:"acc"`
	Path    string `json:"p"`
	jwt.RegisteredClaims
}

// ErrLinkInvalid is returned by Verify for tampered or expired tokens.
var ErrLinkInvalid = errors.New("drive: download link invalid or expired")

// NewLinkSigner creates a signer. ttl <= 0 defaults to five minutes.
func NewLinkSigner(secret []byte, baseURL string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LinkSigner{
		secret:  secret,
		baseURL: strings.TrimRight(baseURL, "/"),
		ttl:     ttl,
		now:     time.Now,
		openers: make(map[string]BlobOpener),
	}
}

// Register makes o the byte source for links signed under driver.
func (s *LinkSigner) Register(driver string, o BlobOpener) {
	s.mu.Lock()
	s.openers[driver] = o
	s.mu.Unlock()
}

// Sign returns a link for remotePath in account.
func (s *LinkSigner) Sign(driver, account, remotePath string) (Link, error) {
	now := s.now()
	exp := now.Add(s.ttl)
	claims := LinkClaims{
		Driver:  driver,
		Account: account,
		Path:    remotePath,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return Link{}, fmt.Errorf("drive: sign link: %w", err)
	}
	return Link{
		URL:       s.baseURL + "/links/" + token,
		Headers:   map[string]string{},
		ExpiresAt: exp,
	}, nil
}

// Verify parses token and returns its claims.
func (s *LinkSigner) Verify(token string) (*LinkClaims, error) {
	claims := &LinkClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrLinkInvalid, err)
	}
	return claims, nil
}

// ServeHTTP streams the blob named by the last path segment of the request.
func (s *LinkSigner) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	claims, err := s.Verify(path.Base(r.URL.Path))
	if err != nil {
		http.Error(w, "link invalid or expired", http.StatusForbidden)
		return
	}

	s.mu.RLock()
	opener, ok := s.openers[claims.Driver]
	s.mu.RUnlock()
	if !ok {
		http.NotFound(w, r)
		return
	}

	body, size, err := opener.OpenBlob(claims.Account, claims.Path)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
	w.WriteHeader(http.StatusOK)
	if r.Method != http.MethodHead {
		_, _ = io.Copy(w, body)
	}
}
