package service

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/and161185/goph-vault/internal/config"
	"github.com/and161185/goph-vault/internal/convert"
	"github.com/and161185/goph-vault/internal/crypto/vaultcrypto"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/repository"
)

// fakeBackend persists encoded snapshots in memory.
type fakeBackend struct {
	mu       sync.Mutex
	data     []byte
	saves    int
	loadErr  error
	saveErr  error
	probeErr error
	purged   int
}

var _ repository.Backend = (*fakeBackend)(nil)
var _ repository.Purger = (*fakeBackend)(nil)

func (f *fakeBackend) Load(context.Context) (*model.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loadErr != nil {
		return nil, f.loadErr
	}
	if f.data == nil {
		return model.NewSnapshot(fixedNow()), nil
	}
	return convert.DecodeSnapshot(f.data)
}

func (f *fakeBackend) Save(_ context.Context, s *model.Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saves++
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := convert.EncodeSnapshot(s)
	if err != nil {
		return err
	}
	f.data = raw
	return nil
}

func (f *fakeBackend) Probe(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.probeErr
}

func (f *fakeBackend) Purge(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purged++
	f.data = nil
	return nil
}

func (f *fakeBackend) counts() (saves, purged int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.saves, f.purged
}

func (f *fakeBackend) setSaveErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saveErr = err
}

// persisted decodes what was last saved; an empty snapshot if nothing was.
func (f *fakeBackend) persisted() *model.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.data == nil {
		return model.NewSnapshot(fixedNow())
	}
	s, err := convert.DecodeSnapshot(f.data)
	if err != nil {
		panic(err)
	}
	return s
}

// noPurge hides the Purger implementation.
type noPurge struct{ repository.Backend }

// factoryOf serves the enabled subset of a fixed registry.
func factoryOf(all map[model.BackendTarget]repository.Backend) Factory {
	return func(_ context.Context, cfg config.Config, _ *zap.Logger) (map[model.BackendTarget]repository.Backend, error) {
		out := map[model.BackendTarget]repository.Backend{}
		for _, t := range cfg.Enabled() {
			if b, ok := all[t]; ok {
				out[t] = b
			}
		}
		return out, nil
	}
}

var testCipher = vaultcrypto.New(vaultcrypto.Params{Time: 1, Memory: 8 * 1024, Threads: 1})
