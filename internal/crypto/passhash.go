// Package crypto implements hashing of the vault's master passphrase.
//
// The stored hash only gates the CLI early; each secret is still protected by
// its own authenticated encryption in package vaultcrypto.
package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"

	"github.com/and161185/goph-vault/internal/errs"
)

// Argon2id parameters for the master hash.
const (
	argonTime    uint32 = 3         // iterations
	argonMemory  uint32 = 64 * 1024 // 64 MB
	argonThreads uint8  = 1
	argonKeyLen  uint32 = 32
	saltLen             = 16

	// Ceilings for parameters read back from a stored hash.
	maxMemory  uint32 = 1024 * 1024 // 1 GB
	maxIters   uint32 = 64
	maxThreads uint8  = 16
	maxKeyLen         = 128
)

var errMalformedHash = errors.New("malformed passphrase hash")

// RandBytes returns n cryptographically secure random bytes.
func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

// HashPassphrase returns an encoded Argon2id hash of pass with a fresh salt:
//
//	$argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>
func HashPassphrase(pass string) (string, error) {
	if pass == "" {
		return "", fmt.Errorf("%w: empty passphrase", errs.ErrValidation)
	}
	salt, err := RandBytes(saltLen)
	if err != nil {
		return "", err
	}
	sum := argon2.IDKey([]byte(pass), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sum),
	), nil
}

// VerifyPassphrase reports whether pass matches encoded. The parameters
// embedded in encoded are honoured, so older hashes keep verifying.
func VerifyPassphrase(pass, encoded string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errMalformedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errMalformedHash
	}
	var (
		mem, iters uint32
		threads    uint8
	)
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &threads); err != nil {
		return false, errMalformedHash
	}
	if iters == 0 || iters > maxIters || threads == 0 || threads > maxThreads ||
		mem < 8*uint32(threads) || mem > maxMemory {
		return false, errMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return false, errMalformedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) == 0 || len(want) > maxKeyLen {
		return false, errMalformedHash
	}
	got := argon2.IDKey([]byte(pass), salt, iters, mem, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
