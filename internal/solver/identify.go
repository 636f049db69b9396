package solver

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// BookworkPrefix namespaces bookwork codes inside the answer store
const BookworkPrefix = "bookwork:"

// Identify derives the cache key for a question.
// Image questions are keyed by the SHA-256 of the exact screenshot bytes, text
// questions by their literal text.
func Identify(q PendingQuestion) string {
	if q.HasImage() {
		return ImageIdentifier(q.Image)
	}
	return q.Text
}

// ImageIdentifier returns the 64 character hex content fingerprint of an image
func ImageIdentifier(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}

// BookworkIdentifier returns the store key for a bookwork code, or "" if code is blank
func BookworkIdentifier(code string) string {
	code = strings.TrimSpace(code)
	if code == "" {
		return ""
	}
	return BookworkPrefix + code
}
