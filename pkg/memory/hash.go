package memory

import (
	"crypto/sha256"
	"encoding/hex"
)

// ContentHash returns the deterministic fingerprint used as the
// deduplication key: the SHA-256 hex digest of the content.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
