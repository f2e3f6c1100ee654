package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// hashBlockSize matches the teacher's calculateChunkChecksums streaming
// block size in pkg/p2p/protocols/file_transfer.go.
const hashBlockSize = 8 * 1024

// HashFile streams r through SHA-256 in fixed-size blocks and returns the
// lowercase hex digest, without ever holding the whole file in memory.
func HashFile(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashBlockSize)
	// Wrapping r hides any WriterTo it implements, so the copy always goes
	// through buf in hashBlockSize blocks.
	if _, err := io.CopyBuffer(h, struct{ io.Reader }{r}, buf); err != nil {
		return "", newErr(ErrHashing, "stream file through sha256", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// ChunkHasher incrementally hashes chunks as they arrive, so a receiver can
// verify the final digest without buffering the file or re-reading it.
type ChunkHasher struct {
	h hash.Hash
}

// NewChunkHasher starts a fresh streaming SHA-256 hasher.
func NewChunkHasher() *ChunkHasher {
	return &ChunkHasher{h: sha256.New()}
}

// Write feeds one chunk's bytes into the running digest.
func (c *ChunkHasher) Write(p []byte) {
	_, _ = c.h.Write(p)
}

// Sum returns the lowercase hex digest of everything written so far.
func (c *ChunkHasher) Sum() string {
	return hex.EncodeToString(c.h.Sum(nil))
}
