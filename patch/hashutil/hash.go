// Package hashutil computes the content fingerprint used throughout graft to
// prove that a file's bytes are, or are not, what a manifest entry expects.
package hashutil

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
)

// Digest is a lowercase hex-encoded SHA-256 digest, 64 characters long.
type Digest string

// digestPattern matches the on-the-wire shape of a Digest.
var digestPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Bytes computes the Digest of b.
func Bytes(b []byte) Digest {
	sum := sha256.Sum256(b)
	return Digest(hex.EncodeToString(sum[:]))
}

// Valid reports whether d has the shape of a Digest produced by Bytes: 64
// lowercase hex characters. It does not verify that d corresponds to any
// particular content.
func (d Digest) Valid() bool {
	return digestPattern.MatchString(string(d))
}

// Equal reports whether two digests represent the same content. Digests are
// compared as opaque strings; graft never truncates or keys them.
func (d Digest) Equal(other Digest) bool {
	return d == other
}

func (d Digest) String() string {
	return string(d)
}
