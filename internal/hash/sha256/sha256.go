// Package sha256 computes payload digests.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher hashes whole byte slices.
type Hasher struct{}

// New returns a SHA-256 hasher.
func New() *Hasher {
	return &Hasher{}
}

// Hash hashes the input and returns a hex digest.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}

// Digest accumulates a streamed payload.
type Digest struct {
	h hash.Hash
	n int64
}

// NewDigest returns an empty running digest.
func NewDigest() *Digest {
	return &Digest{h: sha256.New()}
}

// Write adds p to the digest. It never fails.
func (d *Digest) Write(p []byte) (int, error) {
	d.n += int64(len(p))
	return d.h.Write(p)
}

// Len is the number of bytes written so far.
func (d *Digest) Len() int64 {
	return d.n
}

// Hex returns the hex digest of everything written so far.
func (d *Digest) Hex() string {
	return hex.EncodeToString(d.h.Sum(nil))
}
