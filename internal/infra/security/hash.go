package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for buyer account passwords. Tuned for an API that
// hashes on signup and password login only, not on every request.
const (
	passwordSaltLen       = 16
	passwordTime   uint32 = 1
	passwordMemory uint32 = 64 * 1024
	passwordLanes  uint8  = 4
	passwordKeyLen uint32 = 32
)

// ErrMalformedHash reports a stored credential that does not parse as
// "salt:hash".
var ErrMalformedHash = errors.New("malformed password hash")

// HashPassword derives an Argon2id digest and encodes it with its salt as
// "salt:hash", both parts base64.
func HashPassword(password string) (string, error) {
	salt := make([]byte, passwordSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := derivePassword(password, salt, passwordKeyLen)

	return base64.StdEncoding.EncodeToString(salt) + ":" + base64.StdEncoding.EncodeToString(digest), nil
}

// VerifyPassword re-derives the digest for the candidate password and compares
// it against the stored credential in constant time. An empty candidate never
// matches.
func VerifyPassword(password, stored string) (bool, error) {
	if password == "" || stored == "" {
		return false, nil
	}

	saltPart, hashPart, found := strings.Cut(stored, ":")
	if !found {
		return false, ErrMalformedHash
	}

	salt, err := base64.StdEncoding.DecodeString(saltPart)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}
	want, err := base64.StdEncoding.DecodeString(hashPart)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrMalformedHash, err)
	}

	got := derivePassword(password, salt, uint32(len(want)))

	return subtle.ConstantTimeCompare(got, want) == 1, nil
}

func derivePassword(password string, salt []byte, keyLen uint32) []byte {
	return argon2.IDKey([]byte(password), salt, passwordTime, passwordMemory, passwordLanes, keyLen)
}
