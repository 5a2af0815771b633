// Package backup uploads a snapshot of the access-control documents to an
// S3-compatible bucket (AWS S3 or MinIO).
package backup

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/jsonstore"
	"github.com/MOHAMEDVOS/vos-tool-sub000/internal/logging"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

var (
	loadDefaultAWSConfig = config.LoadDefaultConfig

	newS3ClientFromConfig = func(cfg aws.Config, optFns ...func(*s3.Options)) *s3.Client {
		return s3.NewFromConfig(cfg, optFns...)
	}
)

var ErrNoBucket = errors.New("backup bucket is not configured")

// Config describes the target bucket. Empty credentials fall back to the
// default AWS credential chain.
type Config struct {
	Region       string
	AccessKey    string
	SecretKey    string
	BaseEndpoint string
	Bucket       string
}

// Putter is the part of *s3.Client the uploader needs.
type Putter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// NewS3Client builds a path-style client, which MinIO requires.
func NewS3Client(ctx context.Context, c Config) (*s3.Client, error) {
	opts := []func(*config.LoadOptions) error{config.WithRegion(c.Region)}
	if c.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKey, c.SecretKey, ""),
		))
	}

	cfg, err := loadDefaultAWSConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return newS3ClientFromConfig(cfg, func(o *s3.Options) {
		if c.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(c.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

type Uploader struct {
	client Putter
	bucket string
	store  jsonstore.Documents
	logger logging.Logger
	now    func() time.Time
	newID  func() string
}

type Option func(*Uploader)

func WithClock(now func() time.Time) Option {
	return func(u *Uploader) { u.now = now }
}

func WithIDGenerator(f func() string) Option {
	return func(u *Uploader) { u.newID = f }
}

func New(client Putter, bucket string, store jsonstore.Documents, l logging.Logger, opts ...Option) *Uploader {
	u := &Uploader{
		client: client,
		bucket: bucket,
		store:  store,
		logger: l.With("module", "backup"),
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, o := range opts {
		o(u)
	}
	return u
}

// Result lists what a snapshot uploaded.
type Result struct {
	Prefix string
	Keys   []string
}

// Snapshot uploads every present document under
// backups/YYYY/MM/DD/<id>/<document>. Missing documents are skipped.
func (u *Uploader) Snapshot(ctx context.Context, names []string) (Result, error) {
	if u.bucket == "" {
		return Result{}, ErrNoBucket
	}

	res := Result{Prefix: path.Join("backups", u.now().UTC().Format("2006/01/02"), u.newID())}
	for _, name := range names {
		var raw json.RawMessage
		if !u.store.Read(ctx, name, &raw) {
			u.logger.Debug(ctx, "document absent, skipped", "document", name)
			continue
		}

		key := path.Join(res.Prefix, name)
		_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(u.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(raw),
			ContentType: aws.String("application/json"),
		})
		if err != nil {
			u.logger.Error(ctx, "upload failed", "key", key, "error", err)
			return res, fmt.Errorf("upload %s: %w", key, err)
		}
		res.Keys = append(res.Keys, key)
	}

	u.logger.Info(ctx, "snapshot uploaded", "bucket", u.bucket, "prefix", res.Prefix, "documents", len(res.Keys))
	return res, nil
}
