// Package service contains the vault manager that keeps backends and cache in step.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/and161185/goph-vault/internal/cache"
	"github.com/and161185/goph-vault/internal/config"
	"github.com/and161185/goph-vault/internal/crypto"
	"github.com/and161185/goph-vault/internal/crypto/vaultcrypto"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/passgen"
	"github.com/and161185/goph-vault/internal/repository"
	"github.com/and161185/goph-vault/internal/repository/backends"
)

// VaultService defines the operations exposed to command layers.
type VaultService interface {
	// Add encrypts the password and writes a new record to every backend.
	Add(ctx context.Context, req model.AddRequest) (model.Record, error)
	// Update changes an existing record on every backend holding it.
	Update(ctx context.Context, id uuid.UUID, req model.UpdateRequest) (model.Record, error)
	// Delete removes a record from every backend holding it.
	Delete(ctx context.Context, id uuid.UUID) error
	// Search matches title and description; secrets stay encrypted.
	Search(query string, target model.BackendTarget) ([]model.Record, error)
	// List returns every record in scope.
	List(target model.BackendTarget) ([]model.Record, error)
	// Get returns one record.
	Get(id uuid.UUID, target model.BackendTarget) (model.Record, error)
	// Decrypt opens a blob with the passphrase.
	Decrypt(passphrase string, blob model.EncryptedBlob) (string, error)
	// Generate returns a random password.
	Generate(opts model.GenerateOptions) (string, error)
	// Status probes every backend.
	Status(ctx context.Context) []model.StorageStatus
	// Resync reloads one backend into the cache.
	Resync(ctx context.Context, target model.BackendTarget) error
	// Copy overwrites one backend with another's contents.
	Copy(ctx context.Context, from, to model.BackendTarget) error
	// Purge deletes one backend's persisted snapshot.
	Purge(ctx context.Context, target model.BackendTarget) error
	// CheckPassphrase compares against the configured master hash.
	CheckPassphrase(pass string) error
	// SetPassphrase stores a new master hash in the in-memory config.
	SetPassphrase(pass string, force bool) error
	// Reconfigure swaps config, backends and cache together.
	Reconfigure(ctx context.Context, cfg config.Config) error
	// Config returns the active configuration.
	Config() config.Config
}

// Cipher encrypts single secrets. *vaultcrypto.Cipher implements it.
type Cipher interface {
	Encrypt(plaintext, passphrase string) (model.EncryptedBlob, error)
	Decrypt(blob model.EncryptedBlob, passphrase string) (string, error)
}

// Factory builds the backend set for a configuration.
type Factory func(ctx context.Context, cfg config.Config, log *zap.Logger) (map[model.BackendTarget]repository.Backend, error)

// Option customises a Manager.
type Option func(*Manager)

// WithFactory replaces backends.Build.
func WithFactory(f Factory) Option { return func(m *Manager) { m.factory = f } }

// WithCipher replaces the default Argon2id/AES-GCM cipher.
func WithCipher(c Cipher) Option { return func(m *Manager) { m.cipher = c } }

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option { return func(m *Manager) { m.now = now } }

// WithLogger sets the logger; the default discards everything.
func WithLogger(l *zap.Logger) Option { return func(m *Manager) { m.log = l } }

// Manager owns the configuration, the backend set and the cache.
//
// One RWMutex guards all three. Reads share it; mutations hold it
// exclusively from the cache change through the last backend write, so
// writes are serialised process-wide.
//
// Mutations are write-through and best effort: the cache changes first,
// then every affected backend is saved. Failed saves are reported together
// but nothing is rolled back, neither in the cache nor on backends that
// succeeded. A lagging backend catches up on its next successful save or
// through Resync/Copy.
type Manager struct {
	mu       sync.RWMutex
	cfg      config.Config
	backends map[model.BackendTarget]repository.Backend
	cache    *cache.Cache

	factory Factory
	cipher  Cipher
	now     func() time.Time
	log     *zap.Logger
}

var _ VaultService = (*Manager)(nil)

// NewManager builds the enabled backends and loads each into the cache.
// Snapshots are installed as loaded; nothing is merged across backends.
// Any load failure aborts construction with an error naming the backends.
func NewManager(ctx context.Context, cfg config.Config, opts ...Option) (*Manager, error) {
	m := &Manager{
		factory: backends.Build,
		cipher:  vaultcrypto.New(vaultcrypto.DefaultParams),
		now:     func() time.Time { return time.Now().UTC() },
		log:     zap.NewNop(),
	}
	for _, o := range opts {
		o(m)
	}
	set, c, err := m.open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	m.cfg, m.backends, m.cache = cfg, set, c
	m.log.Info("vault opened", zap.Int("backends", len(set)))
	return m, nil
}

// open builds and loads a complete backend set without touching m's state.
func (m *Manager) open(ctx context.Context, cfg config.Config) (map[model.BackendTarget]repository.Backend, *cache.Cache, error) {
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	set, err := m.factory(ctx, cfg, m.log)
	if err != nil {
		return nil, nil, err
	}

	targets := cfg.Enabled()
	snaps := make([]*model.Snapshot, len(targets))
	failures := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		b, ok := set[t]
		if !ok {
			failures[i] = errs.Backend(t.String(), "load from", errors.New("backend not built"))
			continue
		}
		g.Go(func() error {
			s, err := b.Load(ctx)
			if err != nil {
				failures[i] = errs.Backend(t.String(), "load from", err)
				return nil
			}
			snaps[i] = s
			return nil
		})
	}
	_ = g.Wait()
	if err := errs.Aggregate(failures...); err != nil {
		m.log.Error("vault open failed", zap.Strings("failed", errs.Failed(err)), zap.Error(err))
		return nil, nil, err
	}

	c := cache.New()
	for i, t := range targets {
		c.Install(t, snaps[i])
		m.log.Debug("backend loaded", zap.Stringer("target", t), zap.Int("records", snaps[i].Metadata.RecordCount))
	}
	return set, c, nil
}

// persist saves the cached snapshot of each target concurrently. The caller
// holds the exclusive lock.
func (m *Manager) persist(ctx context.Context, op string, targets []model.BackendTarget) error {
	failures := make([]error, len(targets))
	var g errgroup.Group
	for i, t := range targets {
		snap, _ := m.cache.Snapshot(t)
		b := m.backends[t]
		g.Go(func() error {
			if err := b.Save(ctx, snap); err != nil {
				failures[i] = errs.Backend(t.String(), "save to", err)
				m.log.Warn("backend save failed",
					zap.String("op", op), zap.Stringer("target", t), zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()
	return errs.Aggregate(failures...)
}

// Add validates input, encrypts the password once and inserts the record
// into every backend. On partial failure the record is still returned along
// with the aggregated error.
func (m *Manager) Add(ctx context.Context, req model.AddRequest) (model.Record, error) {
	if strings.TrimSpace(req.Title) == "" {
		return model.Record{}, fmt.Errorf("%w: empty title", errs.ErrValidation)
	}
	if req.Password == "" {
		return model.Record{}, fmt.Errorf("%w: empty password", errs.ErrValidation)
	}
	if req.Key == "" {
		return model.Record{}, fmt.Errorf("%w: empty passphrase", errs.ErrValidation)
	}
	blob, err := m.cipher.Encrypt(req.Password, req.Key)
	if err != nil {
		return model.Record{}, err
	}
	id, err := uuid.NewV4()
	if err != nil {
		return model.Record{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	rec := model.Record{
		ID:          id,
		Title:       req.Title,
		Description: req.Description,
		Tags:        append([]string(nil), req.Tags...),
		Username:    req.Username,
		Secret:      blob,
		URL:         req.URL,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	targets := m.cache.Insert(rec, now)
	err = m.persist(ctx, "add", targets)
	m.log.Info("record added", zap.Stringer("id", id), zap.Int("backends", len(targets)),
		zap.Strings("failed", errs.Failed(err)))
	return rec.Clone(), err
}

// Update applies req to the record on every backend holding it.
func (m *Manager) Update(ctx context.Context, id uuid.UUID, req model.UpdateRequest) (model.Record, error) {
	if req.Title != nil && strings.TrimSpace(*req.Title) == "" {
		return model.Record{}, fmt.Errorf("%w: empty title", errs.ErrValidation)
	}
	var blob *model.EncryptedBlob
	if req.Password != nil {
		if *req.Password == "" {
			return model.Record{}, fmt.Errorf("%w: empty password", errs.ErrValidation)
		}
		if req.Key == "" {
			return model.Record{}, fmt.Errorf("%w: empty passphrase", errs.ErrValidation)
		}
		b, err := m.cipher.Encrypt(*req.Password, req.Key)
		if err != nil {
			return model.Record{}, err
		}
		blob = &b
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	holders := m.cache.Holding(id)
	if len(holders) == 0 {
		return model.Record{}, fmt.Errorf("record %s: %w", id, errs.ErrNotFound)
	}
	now := m.now()
	var out model.Record
	for _, t := range holders {
		rec, _ := m.cache.Get(id, t)
		applyUpdate(&rec, req, blob)
		rec.UpdatedAt = now
		m.cache.Replace(t, rec, now)
		out = rec
	}
	err := m.persist(ctx, "update", holders)
	m.log.Info("record updated", zap.Stringer("id", id), zap.Int("backends", len(holders)),
		zap.Strings("failed", errs.Failed(err)))
	return out, err
}

func applyUpdate(rec *model.Record, req model.UpdateRequest, blob *model.EncryptedBlob) {
	if req.Title != nil {
		rec.Title = *req.Title
	}
	if req.Description != nil {
		rec.Description = *req.Description
	}
	if req.Tags != nil {
		rec.Tags = append([]string(nil), (*req.Tags)...)
	}
	if req.Username != nil {
		rec.Username = *req.Username
	}
	if req.URL != nil {
		if *req.URL == "" {
			rec.URL = nil
		} else {
			u := *req.URL
			rec.URL = &u
		}
	}
	if blob != nil {
		rec.Secret = blob.Clone()
	}
}

// Delete removes id from every backend holding it.
func (m *Manager) Delete(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	touched := m.cache.Remove(id, m.now())
	if len(touched) == 0 {
		return fmt.Errorf("record %s: %w", id, errs.ErrNotFound)
	}
	err := m.persist(ctx, "delete", touched)
	m.log.Info("record deleted", zap.Stringer("id", id), zap.Int("backends", len(touched)),
		zap.Strings("failed", errs.Failed(err)))
	return err
}

// Search returns records whose title or description contains query,
// ignoring case. Records are never decrypted.
func (m *Manager) Search(query string, target model.BackendTarget) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkScope(target); err != nil {
		return nil, err
	}
	return m.cache.Search(query, target), nil
}

// List returns every record in scope, sorted by title.
func (m *Manager) List(target model.BackendTarget) ([]model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkScope(target); err != nil {
		return nil, err
	}
	return m.cache.List(target), nil
}

// Get returns the record with id from target (or any backend for TargetAll).
func (m *Manager) Get(id uuid.UUID, target model.BackendTarget) (model.Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.checkScope(target); err != nil {
		return model.Record{}, err
	}
	rec, ok := m.cache.Get(id, target)
	if !ok {
		return model.Record{}, fmt.Errorf("record %s: %w", id, errs.ErrNotFound)
	}
	return rec, nil
}

func (m *Manager) checkScope(target model.BackendTarget) error {
	if target == model.TargetAll || m.cache.Has(target) {
		return nil
	}
	return fmt.Errorf("storage %s is not enabled: %w", target, errs.ErrNotFound)
}

// Decrypt opens blob. It touches no shared state.
func (m *Manager) Decrypt(passphrase string, blob model.EncryptedBlob) (string, error) {
	return m.cipher.Decrypt(blob, passphrase)
}

// Generate returns a random password; zero length uses the configured default.
func (m *Manager) Generate(opts model.GenerateOptions) (string, error) {
	if opts.Length == 0 {
		m.mu.RLock()
		opts.Length = m.cfg.Settings.DefaultPasswordLength
		m.mu.RUnlock()
	}
	return passgen.Generate(opts)
}

// Status probes every backend concurrently without holding the lock during I/O.
func (m *Manager) Status(ctx context.Context) []model.StorageStatus {
	m.mu.RLock()
	set := m.backends
	targets := m.cache.Targets()
	out := make([]model.StorageStatus, len(targets))
	for i, t := range targets {
		s, _ := m.cache.Snapshot(t)
		out[i] = model.StorageStatus{Target: t, RecordCount: s.Metadata.RecordCount, LastSync: s.Metadata.LastSync}
	}
	m.mu.RUnlock()

	var g errgroup.Group
	for i, t := range targets {
		b := set[t]
		g.Go(func() error {
			if err := b.Probe(ctx); err != nil {
				out[i].Error = err.Error()
				return nil
			}
			out[i].Connected = true
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Resync discards the cached snapshot of target and reloads it from the backend.
func (m *Manager) Resync(ctx context.Context, target model.BackendTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.backend(target)
	if err != nil {
		return err
	}
	s, err := b.Load(ctx)
	if err != nil {
		return errs.Backend(target.String(), "load from", err)
	}
	m.cache.Install(target, s)
	m.log.Info("backend resynced", zap.Stringer("target", target), zap.Int("records", s.Metadata.RecordCount))
	return nil
}

// Copy replaces the contents of to with those of from and saves to.
// It is an explicit overwrite, not a merge.
func (m *Manager) Copy(ctx context.Context, from, to model.BackendTarget) error {
	if from == to {
		return fmt.Errorf("%w: copy %s onto itself", errs.ErrValidation, from)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, err := m.backend(from); err != nil {
		return err
	}
	if _, err := m.backend(to); err != nil {
		return err
	}
	src, _ := m.cache.Snapshot(from)
	src.Metadata.LastSync = m.now()
	m.cache.Install(to, src)
	err := m.persist(ctx, "copy", []model.BackendTarget{to})
	m.log.Info("backend copied", zap.Stringer("from", from), zap.Stringer("to", to),
		zap.Int("records", src.Metadata.RecordCount), zap.Strings("failed", errs.Failed(err)))
	return err
}

// Purge deletes the persisted snapshot of target and empties its cache entry.
func (m *Manager) Purge(ctx context.Context, target model.BackendTarget) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, err := m.backend(target)
	if err != nil {
		return err
	}
	p, ok := b.(repository.Purger)
	if !ok {
		return fmt.Errorf("storage %s does not support purge", target)
	}
	if err := p.Purge(ctx); err != nil {
		return errs.Backend(target.String(), "purge", err)
	}
	m.cache.Install(target, model.NewSnapshot(m.now()))
	m.log.Warn("backend purged", zap.Stringer("target", target))
	return nil
}

func (m *Manager) backend(target model.BackendTarget) (repository.Backend, error) {
	b, ok := m.backends[target]
	if !ok {
		return nil, fmt.Errorf("storage %s is not enabled: %w", target, errs.ErrNotFound)
	}
	return b, nil
}

// CheckPassphrase returns errs.ErrUnauthorized when pass does not match the
// configured master hash. Without a configured hash every passphrase passes.
func (m *Manager) CheckPassphrase(pass string) error {
	m.mu.RLock()
	encoded := m.cfg.Settings.MasterKeyHash
	m.mu.RUnlock()
	if encoded == "" {
		return nil
	}
	ok, err := crypto.VerifyPassphrase(pass, encoded)
	if err != nil {
		return fmt.Errorf("settings.master_key_hash: %w", err)
	}
	if !ok {
		return errs.ErrUnauthorized
	}
	return nil
}

// SetPassphrase stores a hash of pass in the active config. An existing hash
// is only replaced when force is set. Persisting the config is up to the caller.
func (m *Manager) SetPassphrase(pass string, force bool) error {
	encoded, err := crypto.HashPassphrase(pass)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cfg.Settings.MasterKeyHash != "" && !force {
		return fmt.Errorf("master passphrase: %w", errs.ErrAlreadyExists)
	}
	m.cfg.Settings.MasterKeyHash = encoded
	return nil
}

// Reconfigure builds and loads a new backend set for cfg, then swaps config,
// backends and cache in one step. On error the active state is unchanged.
func (m *Manager) Reconfigure(ctx context.Context, cfg config.Config) error {
	set, c, err := m.open(ctx, cfg)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.cfg, m.backends, m.cache = cfg, set, c
	m.mu.Unlock()
	m.log.Info("vault reconfigured", zap.Int("backends", len(set)))
	return nil
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() config.Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}
