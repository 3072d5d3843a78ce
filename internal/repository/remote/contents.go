// Package remote stores the vault snapshot as a file in a hosted git
// repository through the GitHub contents API.
//
// Writes use the file's blob sha as a revision tag: Save reads the current
// sha and sends it with the PUT, so a concurrent writer makes the PUT fail
// with errs.ErrVersionConflict instead of silently overwriting.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v66/github"
	"github.com/sethvargo/go-retry"
	"go.uber.org/zap"

	"github.com/and161185/goph-vault/internal/convert"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/repository"
)

// Defaults applied by New.
const (
	DefaultBranch  = "main"
	DefaultPath    = "vault.json"
	DefaultTimeout = 15 * time.Second
)

// Config describes where the snapshot lives.
type Config struct {
	Owner       string
	Repo        string
	Branch      string
	Path        string
	Token       string
	AuthorName  string
	AuthorEmail string
	BaseURL     string        // API root, e.g. https://ghe.example.com/api/v3/
	Timeout     time.Duration // per HTTP call
	Retries     uint64        // extra attempts for failed reads; writes are never retried
}

// ContentsBackend implements repository.Backend on top of one repository file.
type ContentsBackend struct {
	cfg     Config
	client  *github.Client
	log     *zap.Logger
	now     func() time.Time
	backoff time.Duration
}

var _ repository.Backend = (*ContentsBackend)(nil)
var _ repository.Purger = (*ContentsBackend)(nil)

// New validates cfg and builds an authenticated client. httpClient may be nil.
func New(cfg Config, httpClient *http.Client, log *zap.Logger) (*ContentsBackend, error) {
	if cfg.Owner == "" || cfg.Repo == "" {
		return nil, fmt.Errorf("%w: remote owner and repo are required", errs.ErrValidation)
	}
	if cfg.Branch == "" {
		cfg.Branch = DefaultBranch
	}
	if cfg.Path == "" {
		cfg.Path = DefaultPath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := github.NewClient(httpClient)
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	if cfg.BaseURL != "" {
		u, err := url.Parse(cfg.BaseURL)
		if err != nil {
			return nil, fmt.Errorf("%w: base url: %w", errs.ErrValidation, err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		client.BaseURL = u
	}
	return &ContentsBackend{
		cfg:     cfg,
		client:  client,
		log:     log.With(zap.String("repo", cfg.Owner+"/"+cfg.Repo), zap.String("path", cfg.Path)),
		now:     func() time.Time { return time.Now().UTC() },
		backoff: 200 * time.Millisecond,
	}, nil
}

// Load fetches and decodes the file. A missing file or branch is an empty vault.
func (b *ContentsBackend) Load(ctx context.Context) (*model.Snapshot, error) {
	file, err := b.get(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		b.log.Debug("remote snapshot missing, starting empty")
		return model.NewSnapshot(b.now()), nil
	}
	if err != nil {
		return nil, err
	}
	content, err := file.GetContent()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errs.ErrSerialization, err)
	}
	return convert.DecodeSnapshot([]byte(content))
}

// Save replaces the file with s, conditioned on the revision read just before.
func (b *ContentsBackend) Save(ctx context.Context, s *model.Snapshot) error {
	data, err := convert.EncodeSnapshot(s)
	if err != nil {
		return err
	}
	sha, err := b.revision(ctx)
	if err != nil {
		return err
	}

	opts := &github.RepositoryContentFileOptions{
		Message: github.String(fmt.Sprintf("Update passwords - %d items", len(s.Records))),
		Content: data,
		Branch:  github.String(b.cfg.Branch),
	}
	if sha != "" {
		opts.SHA = github.String(sha)
	}
	if a := b.author(); a != nil {
		opts.Author, opts.Committer = a, a
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	var resp *github.Response
	if sha == "" {
		_, resp, err = b.client.Repositories.CreateFile(ctx, b.cfg.Owner, b.cfg.Repo, b.cfg.Path, opts)
	} else {
		_, resp, err = b.client.Repositories.UpdateFile(ctx, b.cfg.Owner, b.cfg.Repo, b.cfg.Path, opts)
	}
	if err != nil {
		return classify(resp, err, true)
	}
	b.log.Debug("remote snapshot saved", zap.Int("records", len(s.Records)), zap.Bool("created", sha == ""))
	return nil
}

// Probe checks the repository is reachable with the configured token.
func (b *ContentsBackend) Probe(ctx context.Context) error {
	return b.withRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
		_, resp, err := b.client.Repositories.Get(ctx, b.cfg.Owner, b.cfg.Repo)
		if err != nil {
			return classify(resp, err, false)
		}
		return nil
	})
}

// Purge deletes the file from the branch.
func (b *ContentsBackend) Purge(ctx context.Context) error {
	sha, err := b.revision(ctx)
	if err != nil {
		return err
	}
	if sha == "" {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	opts := &github.RepositoryContentFileOptions{
		Message: github.String("Delete passwords"),
		SHA:     github.String(sha),
		Branch:  github.String(b.cfg.Branch),
	}
	if a := b.author(); a != nil {
		opts.Author, opts.Committer = a, a
	}
	_, resp, err := b.client.Repositories.DeleteFile(ctx, b.cfg.Owner, b.cfg.Repo, b.cfg.Path, opts)
	if err != nil {
		return classify(resp, err, true)
	}
	b.log.Info("remote snapshot purged")
	return nil
}

// revision returns the current blob sha, or "" when the file does not exist.
func (b *ContentsBackend) revision(ctx context.Context) (string, error) {
	file, err := b.get(ctx)
	if errors.Is(err, errs.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return file.GetSHA(), nil
}

func (b *ContentsBackend) get(ctx context.Context) (*github.RepositoryContent, error) {
	var file *github.RepositoryContent
	err := b.withRetry(ctx, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
		f, dir, resp, err := b.client.Repositories.GetContents(ctx, b.cfg.Owner, b.cfg.Repo, b.cfg.Path,
			&github.RepositoryContentGetOptions{Ref: b.cfg.Branch})
		if err != nil {
			return classify(resp, err, false)
		}
		if f == nil || dir != nil {
			return fmt.Errorf("%w: %s is not a file", errs.ErrSerialization, b.cfg.Path)
		}
		file = f
		return nil
	})
	return file, err
}

// withRetry reruns idempotent reads that failed on the network.
func (b *ContentsBackend) withRetry(ctx context.Context, f retry.RetryFunc) error {
	backoff := retry.WithMaxRetries(b.cfg.Retries, retry.NewExponential(b.backoff))
	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := f(ctx)
		if err != nil && errors.Is(err, errs.ErrNetwork) {
			b.log.Warn("remote read failed", zap.Int("attempt", attempt), zap.Error(err))
			return retry.RetryableError(err)
		}
		return err
	})
}

func (b *ContentsBackend) author() *github.CommitAuthor {
	if b.cfg.AuthorName == "" && b.cfg.AuthorEmail == "" {
		return nil
	}
	return &github.CommitAuthor{
		Name:  github.String(b.cfg.AuthorName),
		Email: github.String(b.cfg.AuthorEmail),
	}
}

// classify maps a client error onto the errs taxonomy. For writes, 409 and
// 422 mean the sha no longer matches the branch head.
func classify(resp *github.Response, err error, write bool) error {
	if resp != nil {
		switch resp.StatusCode {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		case http.StatusConflict, http.StatusUnprocessableEntity:
			if write {
				return fmt.Errorf("%w: %w", errs.ErrVersionConflict, err)
			}
		}
	}
	return errs.Network(err, isTimeout(err))
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
