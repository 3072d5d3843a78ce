// Package backends assembles the enabled storage backends from configuration.
package backends

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/and161185/goph-vault/internal/config"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/repository"
	"github.com/and161185/goph-vault/internal/repository/local"
	"github.com/and161185/goph-vault/internal/repository/objectstore"
	"github.com/and161185/goph-vault/internal/repository/remote"
)

// Build returns one backend per enabled target. The map is never mutated
// after return; reconfiguration builds a new one.
func Build(ctx context.Context, cfg config.Config, log *zap.Logger) (map[model.BackendTarget]repository.Backend, error) {
	if log == nil {
		log = zap.NewNop()
	}
	out := make(map[model.BackendTarget]repository.Backend, 3)
	for _, t := range cfg.Enabled() {
		b, err := build(ctx, t, cfg, log.With(zap.Stringer("target", t)))
		if err != nil {
			return nil, fmt.Errorf("build %s backend: %w", t, err)
		}
		out[t] = b
	}
	return out, nil
}

func build(ctx context.Context, t model.BackendTarget, cfg config.Config, log *zap.Logger) (repository.Backend, error) {
	switch t {
	case model.TargetLocal:
		return local.New(cfg.Local.Path), nil
	case model.TargetRemote:
		r := cfg.Remote
		return remote.New(remote.Config{
			Owner:       r.Owner,
			Repo:        r.Repo,
			Branch:      r.Branch,
			Path:        r.Path,
			Token:       r.Token,
			AuthorName:  r.AuthorName,
			AuthorEmail: r.AuthorEmail,
			BaseURL:     r.BaseURL,
			Timeout:     r.Timeout.Duration,
			Retries:     r.Retries,
		}, nil, log)
	case model.TargetObject:
		o := cfg.Object
		return objectstore.New(ctx, objectstore.Config{
			Bucket:          o.Bucket,
			Key:             o.Key,
			Region:          o.Region,
			Endpoint:        o.Endpoint,
			PathStyle:       o.PathStyle,
			AccessKeyID:     o.AccessKeyID,
			SecretAccessKey: o.SecretAccessKey,
			Timeout:         o.Timeout.Duration,
		}, log)
	}
	return nil, fmt.Errorf("unsupported target %s", t)
}
