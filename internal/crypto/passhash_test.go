package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/and161185/goph-vault/internal/errs"
)

func TestRandBytes_LengthAndUniqueness(t *testing.T) {
	t.Parallel()

	const n = 32
	a, err := RandBytes(n)
	if err != nil {
		t.Fatalf("RandBytes: %v", err)
	}
	if len(a) != n {
		t.Fatalf("len=%d, want=%d", len(a), n)
	}
	b, _ := RandBytes(n)
	if bytes.Equal(a, b) {
		t.Fatalf("two RandBytes(%d) calls are equal", n)
	}
}

func TestHashPassphrase_Format(t *testing.T) {
	t.Parallel()

	enc, err := HashPassphrase("mypass")
	if err != nil {
		t.Fatalf("HashPassphrase: %v", err)
	}
	if !strings.HasPrefix(enc, "$argon2id$v=19$m=65536,t=3,p=1$") {
		t.Fatalf("unexpected encoding %q", enc)
	}
	again, _ := HashPassphrase("mypass")
	if enc == again {
		t.Fatalf("salt must be fresh per hash")
	}
	if _, err := HashPassphrase(""); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("want ErrValidation on empty passphrase, got %v", err)
	}
}

func TestVerifyPassphrase(t *testing.T) {
	t.Parallel()

	enc, err := HashPassphrase("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassphrase: %v", err)
	}
	ok, err := VerifyPassphrase("correct horse battery staple", enc)
	if err != nil || !ok {
		t.Fatalf("want match, got ok=%v err=%v", ok, err)
	}
	ok, err = VerifyPassphrase("wrong", enc)
	if err != nil || ok {
		t.Fatalf("want mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyPassphrase_Malformed(t *testing.T) {
	t.Parallel()

	for _, enc := range []string{
		"",
		"plain",
		"$bcrypt$v=19$m=1,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=18$m=1,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=x,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=8,t=1,p=1$!!$AAAA",
		"$argon2id$v=19$m=8,t=1,p=1$AAAA$",
		"$argon2id$v=19$m=65536,t=3,p=0$AAAA$AAAA",
		"$argon2id$v=19$m=65536,t=0,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=0,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=4294967295,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=65536,t=100000,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=65536,t=1,p=200$AAAA$AAAA",
	} {
		if _, err := VerifyPassphrase("x", enc); err == nil {
			t.Fatalf("want error for %q", enc)
		}
	}
}
