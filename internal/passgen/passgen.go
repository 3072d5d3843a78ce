// Package passgen generates random passwords.
package passgen

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
)

// DefaultLength is used when options leave Length at zero.
const DefaultLength = 16

const (
	lower   = "abcdefghijklmnopqrstuvwxyz"
	upper   = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	digits  = "0123456789"
	symbols = "!@#$%^&*()_+-=[]{}|;:,.<>?"
)

var errEmptyCharset = errors.New("empty character set")

// Charset returns the characters Generate samples from for opts.
func Charset(opts model.GenerateOptions) string {
	var b strings.Builder
	if !opts.NoLower {
		b.WriteString(lower)
	}
	if !opts.NoUpper {
		b.WriteString(upper)
	}
	if !opts.NoDigits {
		b.WriteString(digits)
	}
	if !opts.NoSymbols {
		b.WriteString(symbols)
	}
	return strings.Map(func(r rune) rune {
		if strings.ContainsRune(opts.Exclude, r) {
			return -1
		}
		return r
	}, b.String())
}

// Generate returns a password drawn uniformly from Charset(opts).
func Generate(opts model.GenerateOptions) (string, error) {
	n := opts.Length
	if n == 0 {
		n = DefaultLength
	}
	if n < 0 {
		return "", fmt.Errorf("%w: negative length %d", errs.ErrValidation, n)
	}
	chars := Charset(opts)
	if chars == "" {
		return "", fmt.Errorf("%w: %w", errs.ErrValidation, errEmptyCharset)
	}

	out := make([]byte, n)
	limit := big.NewInt(int64(len(chars)))
	for i := range out {
		idx, err := rand.Int(rand.Reader, limit)
		if err != nil {
			return "", err
		}
		out[i] = chars[idx.Int64()]
	}
	return string(out), nil
}
