// Package dedup detects duplicate memory content. Two detectors are
// composed: an exact SHA-256 membership check and an approximate MinHash
// similarity check. The package is a best-effort filter; the warm store's
// primary key is the final arbiter against concurrent identical uploads.
package dedup

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// ContentHash returns the hex-encoded SHA-256 of the canonicalized content.
// Canonicalization trims surrounding whitespace so that padding differences
// do not defeat exact matching.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}

// IsDuplicate reports whether content's hash is already in seen.
func IsDuplicate(content string, seen map[string]struct{}) bool {
	_, ok := seen[ContentHash(content)]
	return ok
}
