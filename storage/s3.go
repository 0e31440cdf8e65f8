package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/ruteri/node-launcher/interfaces"
)

// S3Backend mirrors blobs to Amazon S3 or a compatible service.
// Without credentials it is read-only for publicly readable objects.
type S3Backend struct {
	client         *s3.S3
	bucketName     string
	prefix         string
	log            *slog.Logger
	locationURI    string
	hasWriteAccess bool
}

// S3Options configures an S3Backend.
type S3Options struct {
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string
	AccessKey string
	SecretKey string

	// PathStyle addresses the bucket in the path, as most S3-compatible
	// servers expect.
	PathStyle bool
}

func NewS3Backend(opts S3Options, log *slog.Logger) (*S3Backend, error) {
	if opts.Bucket == "" {
		return nil, errors.New("missing S3 bucket name")
	}
	if opts.Region == "" {
		opts.Region = "us-east-1"
	}

	uri := fmt.Sprintf("s3://%s/%s?region=%s", opts.Bucket, opts.Prefix, opts.Region)
	if opts.Endpoint != "" {
		uri += "&endpoint=" + opts.Endpoint
	}

	cfg := aws.Config{
		Region:           aws.String(opts.Region),
		S3ForcePathStyle: aws.Bool(opts.PathStyle),
	}
	if opts.Endpoint != "" {
		cfg.Endpoint = aws.String(opts.Endpoint)
	}

	hasWriteAccess := opts.AccessKey != "" && opts.SecretKey != ""
	if hasWriteAccess {
		cfg.Credentials = credentials.NewStaticCredentials(opts.AccessKey, opts.SecretKey, "")
	} else {
		cfg.Credentials = credentials.AnonymousCredentials
		log.Warn("No S3 credentials provided, blob mirror is read-only", slog.String("bucket", opts.Bucket))
	}

	sess, err := session.NewSession(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	return &S3Backend{
		client:         s3.New(sess),
		bucketName:     opts.Bucket,
		prefix:         strings.Trim(opts.Prefix, "/"),
		log:            log,
		locationURI:    uri,
		hasWriteAccess: hasWriteAccess,
	}, nil
}

// Fetch retrieves an object by content ID.
func (b *S3Backend) Fetch(ctx context.Context, id interfaces.ContentID) ([]byte, error) {
	start := time.Now()
	key := b.getObjectKey(id)

	result, err := b.client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFound(err) {
			b.log.Debug("Content not found in S3",
				slog.String("content_id", id.Short()),
				slog.String("key", key),
				slog.Duration("duration", time.Since(start)))
			return nil, interfaces.ErrContentNotFound
		}
		return nil, fmt.Errorf("failed to get object from S3: %w", err)
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read object body: %w", err)
	}

	b.log.Debug("Fetched content from S3",
		slog.String("content_id", id.Short()),
		slog.String("key", key),
		slog.Int("size", len(data)),
		slog.Duration("duration", time.Since(start)))

	return data, nil
}

// Store uploads data and returns its content ID.
func (b *S3Backend) Store(ctx context.Context, data []byte) (interfaces.ContentID, error) {
	id := interfaces.ComputeID(data)
	if !b.hasWriteAccess {
		return id, fmt.Errorf("S3 bucket %s is read-only: no credentials", b.bucketName)
	}

	key := b.getObjectKey(id)
	_, err := b.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket: aws.String(b.bucketName),
		Key:    aws.String(key),
		Body:   bytes.NewReader(data),
	})
	if err != nil {
		return id, fmt.Errorf("failed to upload object to S3: %w", err)
	}

	b.log.Debug("Stored content in S3",
		slog.String("bucket", b.bucketName),
		slog.String("key", key),
		slog.String("contentID", id.String()))

	return id, nil
}

// Available checks if the bucket can be reached.
func (b *S3Backend) Available(ctx context.Context) bool {
	_, err := b.client.HeadBucketWithContext(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(b.bucketName),
	})
	if err != nil {
		b.log.Warn("S3 backend unavailable", slog.String("bucket", b.bucketName), "err", err)
		return false
	}
	return true
}

// Name returns a unique identifier for this storage backend.
func (b *S3Backend) Name() string {
	return fmt.Sprintf("s3-%s", b.bucketName)
}

// LocationURI returns the URI that identifies this storage backend.
func (b *S3Backend) LocationURI() string {
	return b.locationURI
}

func (b *S3Backend) getObjectKey(id interfaces.ContentID) string {
	if b.prefix == "" {
		return id.String()
	}
	return path.Join(b.prefix, id.String())
}

func isNotFound(err error) bool {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		switch aerr.Code() {
		case s3.ErrCodeNoSuchKey, "NotFound":
			return true
		}
	}
	return false
}
