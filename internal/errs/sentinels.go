// Package errs contains sentinel errors used across layers for stable error mapping.
package errs

import "errors"

// Common sentinels across storage/service layers.
var (
	// ErrNotFound indicates the requested record or backend does not exist.
	ErrNotFound = errors.New("not found")

	// ErrVersionConflict indicates optimistic concurrency failure (remote revision moved since it was read).
	ErrVersionConflict = errors.New("version conflict")

	// ErrUnauthorized indicates the master passphrase did not match the stored hash.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrAlreadyExists indicates the master passphrase hash is already set.
	ErrAlreadyExists = errors.New("already exists")

	// ErrIO indicates a local filesystem failure.
	ErrIO = errors.New("io failure")

	// ErrSerialization indicates a malformed snapshot document.
	ErrSerialization = errors.New("serialization failure")

	// ErrCrypto indicates key derivation or authenticated decryption failed.
	// It deliberately does not tell a wrong passphrase from corrupted data.
	ErrCrypto = errors.New("crypto failure")

	// ErrNetwork indicates a transport failure talking to a remote backend.
	ErrNetwork = errors.New("network failure")

	// ErrTimeout marks network failures caused by an exceeded deadline. Always wrapped together with ErrNetwork.
	ErrTimeout = errors.New("timeout")

	// ErrValidation indicates rejected caller input.
	ErrValidation = errors.New("validation")
)
