// Package password hashes and verifies user credentials with argon2id,
// mixing in a process-wide pepper so a leaked digest alone is not enough to
// mount an offline attack.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Fixed cost parameters: verification cost must be uniform regardless of
// outcome, so these are compiled in rather than configurable per call.
const (
	memoryKiB   uint32 = 19456
	timeCost    uint32 = 2
	parallelism uint8  = 1
	saltLength         = 16
	keyLength   uint32 = 32

	algorithm = "argon2id"
)

type Hasher struct {
	pepper string
}

func NewHasher(pepper string) *Hasher {
	return &Hasher{pepper: pepper}
}

// Algorithm returns the tag stored alongside each digest.
func (h *Hasher) Algorithm() string { return algorithm }

// Hash derives an argon2id digest of secret+pepper with a fresh random salt
// and returns it in PHC string format.
func (h *Hasher) Hash(secret string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	key := argon2.IDKey([]byte(secret+h.pepper), salt, timeCost, memoryKiB, parallelism, keyLength)

	return fmt.Sprintf("$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		algorithm, argon2.Version, memoryKiB, timeCost, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// Verify reports whether secret matches digest. It never returns an error:
// malformed digests, version mismatches and wrong secrets all come back
// false, and the comparison is constant time.
func (h *Hasher) Verify(secret, digest string) bool {
	salt, key, m, t, p, ok := parsePHC(digest)
	if !ok {
		return false
	}

	computed := argon2.IDKey([]byte(secret+h.pepper), salt, t, m, p, uint32(len(key)))

	return subtle.ConstantTimeCompare(computed, key) == 1
}

func parsePHC(digest string) (salt, key []byte, m, t uint32, p uint8, ok bool) {
	parts := strings.Split(digest, "$")
	if len(parts) != 6 || parts[0] != "" || parts[1] != algorithm {
		return nil, nil, 0, 0, 0, false
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return nil, nil, 0, 0, 0, false
	}

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return nil, nil, 0, 0, 0, false
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, 0, 0, 0, false
	}

	key, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(key) == 0 {
		return nil, nil, 0, 0, 0, false
	}

	return salt, key, m, t, p, true
}
