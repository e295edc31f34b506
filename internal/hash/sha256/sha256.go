// Package sha256 fingerprints stored objects.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
)

// Size is the length of a hex digest.
const Size = sha256.Size * 2

// Hex returns the hex-encoded SHA-256 digest of data.
func Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
