// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Keyfold Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// OWASP-recommended argon2id parameters.
const (
	argon2Time    = 1         // iterations
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4         // parallelism
	argon2SaltLen = 16        // salt length in bytes
	argon2KeyLen  = 32        // output length in bytes
)

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// PasswordHasher provides one-way salted password hashing and
// constant-time verification.
type PasswordHasher interface {
	// Hash produces a salted hash of the password. The salt is
	// re-randomized on every call, so two hashes of the same password
	// differ.
	Hash(password string) (string, error)

	// Verify checks the password against a stored hash using the salt
	// embedded in it. Returns (true, nil) on match, (false, nil) on
	// mismatch, or an ErrInvalidHashFormat-wrapping error when the
	// stored hash cannot be parsed.
	Verify(password, hash string) (bool, error)
}

// Argon2idHasher implements PasswordHasher using argon2id, encoding
// salt, parameters, and digest as a PHC string:
//
//	$argon2id$v=19$m=65536,t=1,p=4$<salt>$<digest>
type Argon2idHasher struct{}

// NewArgon2idHasher creates a new Argon2idHasher.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{}
}

// Hash produces an argon2id hash of the password with a fresh salt.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, argon2SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	digest := argon2.IDKey([]byte(password), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	encoded := fmt.Sprintf(
		"$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		argon2Memory,
		argon2Time,
		argon2Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)

	return encoded, nil
}

// argon2Params holds the values decoded from a PHC hash string.
type argon2Params struct {
	memory  uint32
	time    uint32
	threads uint32
	salt    []byte
	digest  []byte
}

// invalidHash builds an ErrInvalidHashFormat-wrapping error so callers
// can distinguish corruption from a plain mismatch with errors.Is.
func invalidHash(format string, args ...any) error {
	return oops.Code("AUTH_INVALID_HASH").
		With("reason", fmt.Sprintf(format, args...)).
		Wrap(ErrInvalidHashFormat)
}

// decodeHash parses a PHC argon2id string into its parameters.
func decodeHash(encodedHash string) (*argon2Params, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 {
		return nil, invalidHash("expected 6 segments, got %d", len(parts))
	}
	if parts[1] != "argon2id" {
		return nil, invalidHash("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, invalidHash("bad version segment: %s", parts[2])
	}

	var p argon2Params
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memory, &p.time, &p.threads); err != nil {
		return nil, invalidHash("bad parameter segment: %s", parts[3])
	}
	// Guard the uint8 conversion below.
	if p.threads == 0 || p.threads > 255 {
		return nil, invalidHash("threads value %d out of range", p.threads)
	}

	var err error
	if p.salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, invalidHash("bad salt encoding")
	}
	if p.digest, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, invalidHash("bad digest encoding")
	}
	if len(p.digest) == 0 || len(p.digest) > 1<<10 {
		return nil, invalidHash("digest length %d out of range", len(p.digest))
	}

	return &p, nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	p, err := decodeHash(encodedHash)
	if err != nil {
		return false, err
	}

	computed := argon2.IDKey([]byte(password), p.salt, p.time, p.memory, uint8(p.threads), uint32(len(p.digest)))

	return subtle.ConstantTimeCompare(computed, p.digest) == 1, nil
}

// Compile-time interface check.
var _ PasswordHasher = (*Argon2idHasher)(nil)
