// Package fingerprint computes the content-addressed keys the cache manager
// and pipeline orchestrator use to identify a PDF's artifacts across runs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
)

// Length is the number of hex characters kept from the underlying digest.
const Length = 16

// Of returns a 16-character lowercase hex fingerprint of data: the first
// Length characters of the hex-encoded SHA-256 digest. Same input always
// yields the same output, across runs and machines. The fingerprint is an
// opaque identifier — callers must never parse it.
func Of(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:Length]
}

// OfString is a convenience wrapper for string inputs.
func OfString(s string) string {
	return Of([]byte(s))
}
