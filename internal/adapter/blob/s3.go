package blob

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/heartmarshall/zengin-sync/internal/domain"
)

// S3API is the subset of the S3 client the store uses.
type S3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, in *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadBucket(ctx context.Context, in *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
}

// S3Store keeps blobs in an S3 bucket. Locations are "s3://bucket/key".
type S3Store struct {
	client S3API
	bucket string
}

// NewS3Store creates a store writing to bucket.
func NewS3Store(client S3API, bucket string) *S3Store {
	return &S3Store{client: client, bucket: bucket}
}

// NewS3StoreFromConfig builds the S3 client from an AWS config. A non-empty
// endpoint switches to path-style addressing for S3-compatible storage.
func NewS3StoreFromConfig(cfg aws.Config, bucket, endpoint string) *S3Store {
	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
			o.UsePathStyle = true
		}
	})
	return NewS3Store(client, bucket)
}

// Put uploads data under key and returns its location.
func (s *S3Store) Put(ctx context.Context, key string, data []byte) (string, error) {
	in := &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String("application/json"),
	}
	if strings.HasSuffix(key, ".gz") {
		in.ContentEncoding = aws.String("gzip")
	}

	if _, err := s.client.PutObject(ctx, in); err != nil {
		return "", fmt.Errorf("put s3://%s/%s: %w: %w", s.bucket, key, domain.ErrDependency, err)
	}
	return "s3://" + s.bucket + "/" + key, nil
}

// Ping checks the bucket is reachable with the current credentials.
func (s *S3Store) Ping(ctx context.Context) error {
	if _, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)}); err != nil {
		return fmt.Errorf("head bucket %s: %w: %w", s.bucket, domain.ErrDependency, err)
	}
	return nil
}

// Get downloads the object at location.
func (s *S3Store) Get(ctx context.Context, location string) ([]byte, error) {
	bucket, key, err := parseS3Path(location)
	if err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("get %s: %w", location, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get %s: %w: %w", location, domain.ErrDependency, err)
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", location, err)
	}
	return data, nil
}

// parseS3Path extracts bucket and key from an "s3://bucket/path/to/file" URI.
func parseS3Path(s3Path string) (bucket, key string, err error) {
	u, err := url.Parse(s3Path)
	if err != nil {
		return "", "", fmt.Errorf("parse S3 path %q: %w", s3Path, err)
	}
	if u.Scheme != "s3" {
		return "", "", domain.NewValidationError("location", fmt.Sprintf("expected s3:// scheme in %q", s3Path))
	}
	bucket = u.Host
	key = strings.TrimPrefix(u.Path, "/")
	if bucket == "" || key == "" {
		return "", "", domain.NewValidationError("location", fmt.Sprintf("empty bucket or key in %q", s3Path))
	}
	return bucket, key, nil
}
