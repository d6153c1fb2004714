// Package password hashes and verifies credentials stored as
// `pbkdf2_sha256$<iterations>$<mode>$<hex-digest>`.
//
// Two modes exist. The empty mode derives the digest from the plaintext (legacy rows).
// The "shahex" mode derives it from the lowercase SHA-256 hex digest of the plaintext,
// which lets clients send `sha256(password)` instead of the password itself.
package password

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

const (
	Algorithm         = "pbkdf2_sha256"
	DefaultIterations = 120000

	ModePlain  = ""
	ModeShaHex = "shahex"

	keyLen    = 32
	digestLen = 64
)

var (
	ErrInvalidShaHex = errors.New("passwordSha256 must be a 64-length hex string")
	ErrEmpty         = errors.New("password must not be empty")
)

// Credential is what a client presents: a plaintext, its SHA-256 hex digest, or both.
type Credential struct {
	Plain  string
	ShaHex string
}

type Hasher struct {
	salt       []byte
	iterations int
}

// NewHasher returns a Hasher salting with `secret`.
func NewHasher(secret string, iterations int) *Hasher {
	if iterations <= 0 {
		iterations = DefaultIterations
	}
	return &Hasher{salt: []byte(secret), iterations: iterations}
}

// SHA256Hex returns the lowercase hex SHA-256 digest of `s`.
func SHA256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// IsShaHex reports whether `s` looks like a SHA-256 hex digest.
func IsShaHex(s string) bool {
	if len(s) != digestLen {
		return false
	}
	_, err := hex.DecodeString(s)
	return err == nil
}

func (h *Hasher) derive(input string, iterations int) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(input), h.salt, iterations, keyLen, sha256.New))
}

func (h *Hasher) format(mode, digest string) string {
	return fmt.Sprintf("%s$%d$%s$%s", Algorithm, h.iterations, mode, digest)
}

// HashPlain hashes the trimmed plaintext in the legacy mode.
func (h *Hasher) HashPlain(plain string) (string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", ErrEmpty
	}
	return h.format(ModePlain, h.derive(plain, h.iterations)), nil
}

// HashShaHex hashes a client-side SHA-256 hex digest in shahex mode.
func (h *Hasher) HashShaHex(shaHex string) (string, error) {
	shaHex = strings.ToLower(strings.TrimSpace(shaHex))
	if !IsShaHex(shaHex) {
		return "", ErrInvalidShaHex
	}
	return h.format(ModeShaHex, h.derive(shaHex, h.iterations)), nil
}

// Hash hashes a plaintext in shahex mode so that either form can log in later.
func (h *Hasher) Hash(plain string) (string, error) {
	plain = strings.TrimSpace(plain)
	if plain == "" {
		return "", ErrEmpty
	}
	return h.HashShaHex(SHA256Hex(plain))
}

// Verify checks `cred` against a stored hash in constant time.
// Malformed stored hashes never verify.
func (h *Hasher) Verify(cred Credential, stored string) bool {
	parts := strings.Split(stored, "$")
	if len(parts) != 4 || parts[0] != Algorithm {
		return false
	}
	iterations, err := strconv.Atoi(parts[1])
	if err != nil || iterations <= 0 {
		return false
	}
	mode, digest := parts[2], strings.ToLower(parts[3])
	if !IsShaHex(digest) {
		return false
	}

	var input string
	switch mode {
	case ModeShaHex:
		input = strings.ToLower(strings.TrimSpace(cred.ShaHex))
		if input == "" {
			if plain := strings.TrimSpace(cred.Plain); plain != "" {
				input = SHA256Hex(plain)
			}
		}
		if !IsShaHex(input) {
			return false
		}
	case ModePlain:
		input = strings.TrimSpace(cred.Plain)
		if input == "" {
			return false
		}
	default:
		return false
	}

	derived := h.derive(input, iterations)
	return subtle.ConstantTimeCompare([]byte(derived), []byte(digest)) == 1
}
