// Package local stores the vault snapshot in a single JSON file.
package local

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/and161185/goph-vault/internal/convert"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/filex"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/repository"
)

const (
	dirPerm  fs.FileMode = 0o700
	filePerm fs.FileMode = 0o600
)

// FileBackend keeps the snapshot at path. Writes go to a temp file in the same
// directory followed by a rename, so readers never see a partial document.
// There is no cross-process locking.
type FileBackend struct {
	path string
	now  func() time.Time
}

var _ repository.Backend = (*FileBackend)(nil)
var _ repository.Purger = (*FileBackend)(nil)

// New returns a backend for the file at path.
func New(path string) *FileBackend {
	return &FileBackend{path: path, now: func() time.Time { return time.Now().UTC() }}
}

// Path returns the snapshot file location.
func (b *FileBackend) Path() string { return b.path }

// Load reads the snapshot. A missing file is an empty vault.
func (b *FileBackend) Load(_ context.Context) (*model.Snapshot, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, fs.ErrNotExist) {
		return model.NewSnapshot(b.now()), nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", errs.ErrIO, b.path, err)
	}
	return convert.DecodeSnapshot(data)
}

// Save atomically replaces the file with s.
func (b *FileBackend) Save(_ context.Context, s *model.Snapshot) error {
	data, err := convert.EncodeSnapshot(s)
	if err != nil {
		return err
	}
	if err := filex.WriteAtomic(b.path, data, filePerm); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	return nil
}

// Probe verifies the parent directory exists (creating it) and accepts new files.
func (b *FileBackend) Probe(_ context.Context) error {
	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	f, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	name := f.Name()
	_ = f.Close()
	if err := os.Remove(name); err != nil {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	return nil
}

// Purge deletes the snapshot file.
func (b *FileBackend) Purge(_ context.Context) error {
	err := os.Remove(b.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %w", errs.ErrIO, err)
	}
	return nil
}
