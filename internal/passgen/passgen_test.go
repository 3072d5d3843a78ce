package passgen

import (
	"errors"
	"strings"
	"testing"

	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
)

func TestGenerate_DefaultLength(t *testing.T) {
	t.Parallel()
	p, err := Generate(model.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p) != DefaultLength {
		t.Fatalf("len=%d, want %d", len(p), DefaultLength)
	}
	q, _ := Generate(model.GenerateOptions{})
	if p == q {
		t.Fatalf("two passwords are equal")
	}
}

func TestGenerate_RespectsClassesAndExclude(t *testing.T) {
	t.Parallel()
	opts := model.GenerateOptions{Length: 200, NoUpper: true, NoSymbols: true, Exclude: "aeiou01"}
	p, err := Generate(opts)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(p) != 200 {
		t.Fatalf("len=%d", len(p))
	}
	if strings.ContainsAny(p, upper+symbols+"aeiou01") {
		t.Fatalf("password %q contains excluded characters", p)
	}
}

func TestGenerate_Errors(t *testing.T) {
	t.Parallel()
	if _, err := Generate(model.GenerateOptions{Length: -1}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("negative length: want ErrValidation, got %v", err)
	}
	all := model.GenerateOptions{NoUpper: true, NoLower: true, NoDigits: true, NoSymbols: true}
	if _, err := Generate(all); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("empty charset: want ErrValidation, got %v", err)
	}
	if _, err := Generate(model.GenerateOptions{NoUpper: true, NoLower: true, NoSymbols: true, Exclude: digits}); err == nil {
		t.Fatalf("exclude-everything must fail")
	}
}

func TestCharset(t *testing.T) {
	t.Parallel()
	if got := Charset(model.GenerateOptions{NoUpper: true, NoLower: true, NoSymbols: true}); got != digits {
		t.Fatalf("got %q", got)
	}
}
