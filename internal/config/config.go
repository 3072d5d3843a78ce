// Package config loads and saves the vault configuration.
//
// Values are layered: built-in defaults, then the JSON file (if present),
// then environment variables for secrets. Later sources take precedence.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/multierr"

	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/filex"
	"github.com/and161185/goph-vault/internal/model"
)

// Environment variables that override secrets from the file.
const (
	EnvRemoteToken   = "GV_REMOTE_TOKEN"
	EnvS3AccessKey   = "GV_S3_ACCESS_KEY_ID"
	EnvS3SecretKey   = "GV_S3_SECRET_ACCESS_KEY"
	appDirName       = "goph-vault"
	defaultFileName  = "config.json"
	defaultVaultName = "vault.json"
)

// Config is the full runtime configuration.
type Config struct {
	Local    LocalConfig  `json:"local"`
	Remote   RemoteConfig `json:"remote"`
	Object   ObjectConfig `json:"object"`
	Settings Settings     `json:"settings"`
}

// LocalConfig configures the JSON file backend.
type LocalConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// RemoteConfig configures the hosted repository backend.
type RemoteConfig struct {
	Enabled     bool     `json:"enabled"`
	Owner       string   `json:"owner"`
	Repo        string   `json:"repo"`
	Branch      string   `json:"branch"`
	Path        string   `json:"path"`
	Token       string   `json:"token"`
	AuthorName  string   `json:"author_name"`
	AuthorEmail string   `json:"author_email"`
	BaseURL     string   `json:"base_url"`
	Timeout     Duration `json:"timeout"`
	Retries     uint64   `json:"retries"`
}

// ObjectConfig configures the S3-compatible backend.
type ObjectConfig struct {
	Enabled         bool     `json:"enabled"`
	Bucket          string   `json:"bucket"`
	Key             string   `json:"key"`
	Region          string   `json:"region"`
	Endpoint        string   `json:"endpoint"`
	PathStyle       bool     `json:"path_style"`
	AccessKeyID     string   `json:"access_key_id"`
	SecretAccessKey string   `json:"secret_access_key"`
	Timeout         Duration `json:"timeout"`
}

// Settings holds behaviour not tied to a backend.
type Settings struct {
	DefaultPasswordLength int    `json:"default_password_length"`
	MasterKeyHash         string `json:"master_key_hash"`
	LogLevel              string `json:"log_level"`
}

// Dir returns the per-user config directory, honouring XDG_CONFIG_HOME.
func Dir() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return filepath.Join(v, appDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", appDirName)
}

// DefaultPath is the config file used when none is given.
func DefaultPath() string { return filepath.Join(Dir(), defaultFileName) }

// Default returns the built-in configuration: local backend only.
func Default() Config {
	return Config{
		Local: LocalConfig{Enabled: true, Path: filepath.Join(Dir(), defaultVaultName)},
		Remote: RemoteConfig{
			Branch:  "main",
			Path:    defaultVaultName,
			Timeout: Duration{15 * time.Second},
		},
		Object: ObjectConfig{
			Key:     defaultVaultName,
			Region:  "us-east-1",
			Timeout: Duration{15 * time.Second},
		},
		Settings: Settings{DefaultPasswordLength: 16, LogLevel: "warn"},
	}
}

// Load builds a Config from defaults, the file at path and the environment.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg, err := LoadFile(path)
	if err != nil {
		return Config{}, err
	}
	cfg.applyEnv()
	cfg.Local.Path = filex.ExpandHome(cfg.Local.Path)
	return cfg, nil
}

// LoadFile returns defaults overlaid with the file at path only. Environment
// overrides and home expansion are left out, so the result is safe to Save.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return Config{}, fmt.Errorf("read config: %w", err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvRemoteToken); v != "" {
		c.Remote.Token = v
	}
	if v := os.Getenv(EnvS3AccessKey); v != "" {
		c.Object.AccessKeyID = v
	}
	if v := os.Getenv(EnvS3SecretKey); v != "" {
		c.Object.SecretAccessKey = v
	}
}

// Save writes c to path atomically with owner-only permissions.
func (c Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return filex.WriteAtomic(path, data, 0o600)
}

// Enabled lists the enabled backend targets in fixed order.
func (c Config) Enabled() []model.BackendTarget {
	var out []model.BackendTarget
	if c.Local.Enabled {
		out = append(out, model.TargetLocal)
	}
	if c.Remote.Enabled {
		out = append(out, model.TargetRemote)
	}
	if c.Object.Enabled {
		out = append(out, model.TargetObject)
	}
	return out
}

// Validate checks that at least one backend is enabled and that enabled
// backends carry the fields they need.
func (c Config) Validate() error {
	var problems []error
	if len(c.Enabled()) == 0 {
		problems = append(problems, errors.New("no storage backend enabled"))
	}
	if c.Local.Enabled && c.Local.Path == "" {
		problems = append(problems, errors.New("local.path is empty"))
	}
	if c.Remote.Enabled {
		if c.Remote.Owner == "" || c.Remote.Repo == "" {
			problems = append(problems, errors.New("remote.owner and remote.repo are required"))
		}
		if c.Remote.Token == "" {
			problems = append(problems, fmt.Errorf("remote.token is empty (set it or %s)", EnvRemoteToken))
		}
	}
	if c.Object.Enabled && c.Object.Bucket == "" {
		problems = append(problems, errors.New("object.bucket is empty"))
	}
	if c.Settings.DefaultPasswordLength < 0 {
		problems = append(problems, errors.New("settings.default_password_length is negative"))
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", errs.ErrValidation, multierr.Combine(problems...))
}
