// Package vaultcrypto encrypts individual secrets with a passphrase.
//
// A key is derived per secret with Argon2id over a fresh random salt and used
// for AES-256-GCM with a fresh random nonce. Salt and nonce travel with the
// ciphertext in model.EncryptedBlob.
package vaultcrypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"

	pkgcrypto "github.com/and161185/goph-vault/internal/crypto"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
)

// Sizes
const (
	KeyLen   = 32
	SaltLen  = 16
	NonceLen = 12
)

// Params are the Argon2id cost parameters.
type Params struct {
	Time    uint32
	Memory  uint32 // KiB
	Threads uint8
}

// DefaultParams are used for all persisted data.
var DefaultParams = Params{Time: 3, Memory: 64 * 1024, Threads: 1}

// Cipher encrypts and decrypts secrets. The zero value is not usable; use New.
type Cipher struct {
	p Params
}

// New returns a Cipher with the given KDF cost. Decrypting needs the same
// params that were used to encrypt.
func New(p Params) *Cipher {
	return &Cipher{p: p}
}

var std = New(DefaultParams)

// Encrypt seals plaintext with DefaultParams.
func Encrypt(plaintext, passphrase string) (model.EncryptedBlob, error) {
	return std.Encrypt(plaintext, passphrase)
}

// Decrypt opens blob with DefaultParams.
func Decrypt(blob model.EncryptedBlob, passphrase string) (string, error) {
	return std.Decrypt(blob, passphrase)
}

// DeriveKey derives a 256-bit key from passphrase and salt.
func (c *Cipher) DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, c.p.Time, c.p.Memory, c.p.Threads, KeyLen)
}

func (c *Cipher) aead(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(c.DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// Encrypt seals plaintext under a key derived from passphrase.
// Every call produces a new salt and nonce.
func (c *Cipher) Encrypt(plaintext, passphrase string) (model.EncryptedBlob, error) {
	if passphrase == "" {
		return model.EncryptedBlob{}, fmt.Errorf("%w: empty passphrase", errs.ErrValidation)
	}
	salt, err := pkgcrypto.RandBytes(SaltLen)
	if err != nil {
		return model.EncryptedBlob{}, fmt.Errorf("%w: salt: %w", errs.ErrCrypto, err)
	}
	nonce, err := pkgcrypto.RandBytes(NonceLen)
	if err != nil {
		return model.EncryptedBlob{}, fmt.Errorf("%w: nonce: %w", errs.ErrCrypto, err)
	}
	aead, err := c.aead(passphrase, salt)
	if err != nil {
		return model.EncryptedBlob{}, fmt.Errorf("%w: %w", errs.ErrCrypto, err)
	}
	return model.EncryptedBlob{
		Ciphertext: aead.Seal(nil, nonce, []byte(plaintext), nil),
		Nonce:      nonce,
		Salt:       salt,
	}, nil
}

var errOpen = errors.New("decryption failed")

// Decrypt opens blob. A wrong passphrase and tampered data are
// indistinguishable; both return errs.ErrCrypto.
func (c *Cipher) Decrypt(blob model.EncryptedBlob, passphrase string) (string, error) {
	if len(blob.Nonce) != NonceLen || len(blob.Salt) == 0 {
		return "", fmt.Errorf("%w: %w", errs.ErrCrypto, errOpen)
	}
	aead, err := c.aead(passphrase, blob.Salt)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCrypto, err)
	}
	pt, err := aead.Open(nil, blob.Nonce, blob.Ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", errs.ErrCrypto, errOpen)
	}
	return string(pt), nil
}
