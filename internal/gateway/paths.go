package gateway

import (
	"path"
	"strings"
	"unicode"

	"github.com/shashiranjanraj/drivegate/internal/apierr"
)

// NormalizePath turns a client-supplied remote path into a rooted,
// slash-separated form. "" becomes "/". Paths with ".." segments or control
// characters are rejected.
func NormalizePath(p string) (string, error) {
	p = strings.TrimSpace(strings.ReplaceAll(p, "\\", "/"))
	if p == "" {
		return "/", nil
	}
	for _, r := range p {
		if unicode.IsControl(r) {
			return "", apierr.Validation("path", apierr.ErrInvalidPath)
		}
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." {
			return "", apierr.Validation("path", apierr.ErrInvalidPath)
		}
	}
	return path.Clean("/" + p), nil
}

// RequirePath is NormalizePath for parameters that must be present and must
// not name the root.
func RequirePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", apierr.Validation("path", apierr.ErrMissingParameter)
	}
	norm, err := NormalizePath(p)
	if err != nil {
		return "", err
	}
	if norm == "/" {
		return "", apierr.Validation("path", apierr.ErrInvalidPath)
	}
	return norm, nil
}

// joinRemote builds dir + "/" + name without doubling the separator.
func joinRemote(dir, name string) string {
	return strings.TrimRight(dir, "/") + "/" + name
}
