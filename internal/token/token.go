// Package token issues opaque single-use capabilities. Only digests are persisted.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

const rawBytes = 32

// Generate returns a new raw token for the caller and the digest to store.
func Generate() (raw string, digest string, err error) {
	buf := make([]byte, rawBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	return raw, Digest(raw), nil
}

// Digest is the hex SHA-256 of a raw token.
func Digest(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
