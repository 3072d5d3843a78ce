// Package objectstore stores the vault snapshot as one object in an
// S3-compatible bucket (AWS S3, MinIO, R2).
//
// Writes are conditional on the ETag read just before, mirroring the
// revision-tagged PUT of the remote backend.
package objectstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/and161185/goph-vault/internal/convert"
	"github.com/and161185/goph-vault/internal/errs"
	"github.com/and161185/goph-vault/internal/model"
	"github.com/and161185/goph-vault/internal/repository"
)

// Defaults applied by New.
const (
	DefaultKey     = "vault.json"
	DefaultRegion  = "us-east-1"
	DefaultTimeout = 15 * time.Second
)

// S3API is the subset of *s3.Client the backend uses.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// Config locates the object and the service.
type Config struct {
	Bucket          string
	Key             string
	Region          string
	Endpoint        string // custom endpoint for S3-compatible stores
	PathStyle       bool
	AccessKeyID     string
	SecretAccessKey string
	Timeout         time.Duration
}

// S3Backend implements repository.Backend over a single object.
type S3Backend struct {
	cfg    Config
	client S3API
	log    *zap.Logger
	now    func() time.Time
}

var _ repository.Backend = (*S3Backend)(nil)
var _ repository.Purger = (*S3Backend)(nil)

// New loads AWS configuration (static keys when given, the default chain
// otherwise) and returns a backend talking to a real S3 client.
func New(ctx context.Context, cfg Config, log *zap.Logger) (*S3Backend, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	opts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
		// A conditional PUT that landed and is then replayed fails its own
		// precondition, so nothing is retried at this layer.
		o.Retryer = aws.NopRetryer{}
	})
	return NewWithClient(cfg, client, log)
}

// NewWithClient wires an existing client, used by tests and callers that
// manage their own AWS configuration.
func NewWithClient(cfg Config, client S3API, log *zap.Logger) (*S3Backend, error) {
	cfg, err := normalize(cfg)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &S3Backend{
		cfg:    cfg,
		client: client,
		log:    log.With(zap.String("bucket", cfg.Bucket), zap.String("key", cfg.Key)),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

func normalize(cfg Config) (Config, error) {
	if cfg.Bucket == "" {
		return cfg, fmt.Errorf("%w: object bucket is required", errs.ErrValidation)
	}
	if cfg.Key == "" {
		cfg.Key = DefaultKey
	}
	if cfg.Region == "" {
		cfg.Region = DefaultRegion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return cfg, nil
}

// Load downloads and decodes the object. A missing object is an empty vault.
func (b *S3Backend) Load(ctx context.Context) (*model.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()

	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		err = classify(err, false)
		if errors.Is(err, errs.ErrNotFound) {
			b.log.Debug("object missing, starting empty")
			return model.NewSnapshot(b.now()), nil
		}
		return nil, err
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errs.Network(err, isTimeout(err))
	}
	return convert.DecodeSnapshot(data)
}

// Save uploads s. An existing object is only replaced if its ETag is still
// the one just read; a new object is only created if none appeared meanwhile.
func (b *S3Backend) Save(ctx context.Context, s *model.Snapshot) error {
	data, err := convert.EncodeSnapshot(s)
	if err != nil {
		return err
	}
	etag, err := b.etag(ctx)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	in := &s3.PutObjectInput{
		Bucket:      aws.String(b.cfg.Bucket),
		Key:         aws.String(b.cfg.Key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	}
	if etag != "" {
		in.IfMatch = aws.String(etag)
	} else {
		in.IfNoneMatch = aws.String("*")
	}
	if _, err := b.client.PutObject(ctx, in); err != nil {
		return classify(err, true)
	}
	b.log.Debug("object snapshot saved", zap.Int("records", len(s.Records)), zap.Bool("created", etag == ""))
	return nil
}

// Probe checks the bucket exists and the credentials can reach it.
func (b *S3Backend) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(b.cfg.Bucket)}); err != nil {
		return classify(err, false)
	}
	return nil
}

// Purge deletes the object.
func (b *S3Backend) Purge(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		if err = classify(err, true); errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return err
	}
	b.log.Info("object snapshot purged")
	return nil
}

func (b *S3Backend) etag(ctx context.Context) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.cfg.Timeout)
	defer cancel()
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(b.cfg.Bucket),
		Key:    aws.String(b.cfg.Key),
	})
	if err != nil {
		if err = classify(err, false); errors.Is(err, errs.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	return aws.ToString(out.ETag), nil
}

// classify maps SDK errors onto the errs taxonomy.
func classify(err error, write bool) error {
	var (
		noKey    *types.NoSuchKey
		notFound *types.NotFound
		noBucket *types.NoSuchBucket
	)
	if errors.As(err, &noKey) || errors.As(err, &notFound) {
		return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
	}
	if errors.As(err, &noBucket) {
		return errs.Network(err, false)
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		case "PreconditionFailed", "ConditionalRequestConflict":
			if write {
				return fmt.Errorf("%w: %w", errs.ErrVersionConflict, err)
			}
		}
	}
	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", errs.ErrNotFound, err)
		case http.StatusPreconditionFailed, http.StatusConflict:
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
