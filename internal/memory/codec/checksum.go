package codec

import (
	"crypto/sha256"
	"encoding/hex"
)

// Checksum returns the SHA-256 hex digest of content, used by the
// repository's update provenance details (spec.md §4.3 Update: "details
// include a content checksum"). Grounded on the teacher's own
// internal.HashText (memory-core/internal/hash.go); a content hash is a
// one-line stdlib call, so no third-party hashing library is pulled in.
func Checksum(content string) string {
	h := sha256.Sum256([]byte(content))
	return hex.EncodeToString(h[:])
}
