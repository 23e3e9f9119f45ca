// Package token generates the opaque credentials used for refresh sessions
// and password resets, and derives the keyed fingerprint under which they are
// stored. The raw token is never persisted; lookups go through Fingerprint.
package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
)

// NewOpaque returns a URL-safe token built from n cryptographically random
// bytes. Callers pick n so the entropy clears 256 bits.
func NewOpaque(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Fingerprint derives the storage key for an opaque token. SHA-256 rather
// than a memory-hard hash: the input already carries full random entropy, so
// the only requirement is that a leaked fingerprint is useless without the
// pepper.
func Fingerprint(token, pepper string) string {
	sum := sha256.Sum256([]byte(token + pepper))
	return hex.EncodeToString(sum[:])
}
