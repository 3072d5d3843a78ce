package errs

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
)

// BackendError attributes a failure to one storage backend.
type BackendError struct {
	Target string // display name, e.g. "Remote"
	Op     string // "save to", "load from", "probe", "purge"
	Err    error
}

func (e *BackendError) Error() string {
	return fmt.Sprintf("failed to %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// Backend wraps err with the backend it came from. A nil err stays nil.
func Backend(target, op string, err error) error {
	if err == nil {
		return nil
	}
	return &BackendError{Target: target, Op: op, Err: err}
}

// Network classifies a transport error, adding ErrTimeout when timeout is set.
func Network(err error, timeout bool) error {
	if timeout {
		return fmt.Errorf("%w: %w: %w", ErrNetwork, ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", ErrNetwork, err)
}

// Aggregate combines errors, skipping nils. Returns nil when all are nil.
func Aggregate(errs ...error) error {
	return multierr.Combine(errs...)
}

// Failed lists the backend targets named by err, in order of appearance.
func Failed(err error) []string {
	var out []string
	for _, e := range multierr.Errors(err) {
		var be *BackendError
		if errors.As(e, &be) {
			out = append(out, be.Target)
		}
	}
	return out
}
