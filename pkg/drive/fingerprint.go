package drive

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Fingerprint returns a stable hex BLAKE2b-256 digest of credential. It is
// used as map and cache key so raw credentials are never stored as keys.
func Fingerprint(credential string) string {
	sum := blake2b.Sum256([]byte(credential))
	return hex.EncodeToString(sum[:])
}

// KeyPrefix returns the first 10 characters of credential followed by an
// ellipsis, for log lines. Short credentials show at most half their length.
func KeyPrefix(credential string) string {
	const n = 10
	runes := []rune(credential)
	keep := n
	if len(runes) <= n {
		keep = len(runes) / 2
	}
	return string(runes[:keep]) + "…"
}
