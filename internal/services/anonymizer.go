package services

import (
	"crypto/sha256"
	"encoding/hex"
)

// Anonymize derives the stable pseudonymous key used for dashboard links.
// Equal names map to equal keys; the name cannot be recovered from the key.
func Anonymize(name string) string {
	sum := sha256.Sum256([]byte(name))
	return hex.EncodeToString(sum[:])
}
