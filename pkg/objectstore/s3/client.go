// Package s3 implements the mirror's source and target store contracts
// against Amazon S3 (or an S3-compatible endpoint).
package s3

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/KevinZhao/s3sync/pkg/objectstore"
)

// ClientConfig describes how to reach one S3-compatible bucket.
type ClientConfig struct {
	Region         string
	Endpoint       string
	ForcePathStyle bool
}

// NewClient builds an AWS S3 client from cfg, using the default credential
// chain (environment, shared config, or container/instance role).
func NewClient(ctx context.Context, cfg ClientConfig) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.ForcePathStyle
	})
	return client, nil
}

// Store implements objectstore.TargetStore against a single S3 bucket; wrap
// it in a SourceAdapter to use it as an objectstore.SourceStore.
type Store struct {
	client *s3.Client
	bucket string

	partRetries   int
	deleteRetries int
	retryStart    time.Duration
}

// StoreConfig configures a Store.
type StoreConfig struct {
	Client        *s3.Client
	Bucket        string
	PartRetries   int
	DeleteRetries int
	RetryStart    time.Duration
}

// NewStore wraps an S3 client bound to a single bucket.
func NewStore(cfg StoreConfig) *Store {
	if cfg.PartRetries <= 0 {
		cfg.PartRetries = 3
	}
	if cfg.DeleteRetries <= 0 {
		cfg.DeleteRetries = 3
	}
	if cfg.RetryStart <= 0 {
		cfg.RetryStart = 200 * time.Millisecond
	}
	return &Store{
		client:        cfg.Client,
		bucket:        cfg.Bucket,
		partRetries:   cfg.PartRetries,
		deleteRetries: cfg.DeleteRetries,
		retryStart:    cfg.RetryStart,
	}
}

// Head implements TargetStore.Head against this Store's own bucket. The
// source-side probe with an explicit bucket is HeadBucket, reached through
// SourceAdapter.
func (s *Store) Head(ctx context.Context, key string) (objectstore.ObjectMeta, error) {
	return s.head(ctx, s.bucket, key)
}

// HeadBucket probes an arbitrary bucket/key pair, used when this Store acts
// as the source-side half of the mirror.
func (s *Store) HeadBucket(ctx context.Context, bucket, key string) (objectstore.ObjectMeta, error) {
	return s.head(ctx, bucket, key)
}

func (s *Store) head(ctx context.Context, bucket, key string) (objectstore.ObjectMeta, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNotFoundError(err) {
			return objectstore.ObjectMeta{}, objectstore.ErrNotFound
		}
		return objectstore.ObjectMeta{}, fmt.Errorf("head %s/%s: %w", bucket, key, err)
	}

	meta := objectstore.ObjectMeta{}
	if out.ContentLength != nil {
		meta.Size = *out.ContentLength
	}
	if out.ETag != nil {
		meta.ETag = *out.ETag
	}
	return meta, nil
}

// CopySingle performs a one-shot server-side copy.
func (s *Store) CopySingle(ctx context.Context, srcBucket, srcKey, dstKey string) error {
	source := fmt.Sprintf("%s/%s", srcBucket, srcKey)
	_, err := s.client.CopyObject(ctx, &s3.CopyObjectInput{
		Bucket:     aws.String(s.bucket),
		Key:        aws.String(dstKey),
		CopySource: aws.String(source),
	})
	if err != nil {
		if isEntityTooLargeError(err) {
			return objectstore.ErrEntityTooLargeForSingleCopy
		}
		return fmt.Errorf("copy %s -> %s/%s: %w", source, s.bucket, dstKey, err)
	}
	return nil
}

// InitiateMultipart starts a multipart upload targeting dstKey.
func (s *Store) InitiateMultipart(ctx context.Context, dstKey string) (string, error) {
	out, err := s.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(dstKey),
	})
	if err != nil {
		return "", fmt.Errorf("initiate multipart upload for %s: %w", dstKey, err)
	}
	return aws.ToString(out.UploadId), nil
}

// CopyPart copies one byte range of the source object into the given
// multipart upload, retrying transient failures up to partRetries with
// exponential backoff.
func (s *Store) CopyPart(ctx context.Context, uploadID, dstKey string, partNumber int32, srcBucket, srcKey string, start, end int64) (string, error) {
	source := fmt.Sprintf("%s/%s", srcBucket, srcKey)
	byteRange := fmt.Sprintf("bytes=%d-%d", start, end)

	var etag string
	err := withRetry(ctx, s.partRetries, s.retryStart, func() error {
		out, err := s.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:          aws.String(s.bucket),
			Key:             aws.String(dstKey),
			UploadId:        aws.String(uploadID),
			PartNumber:      aws.Int32(partNumber),
			CopySource:      aws.String(source),
			CopySourceRange: aws.String(byteRange),
		})
		if err != nil {
			return err
		}
		if out.CopyPartResult != nil {
			etag = aws.ToString(out.CopyPartResult.ETag)
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("copy part %d of %s -> %s/%s: %w", partNumber, source, s.bucket, dstKey, err)
	}
	return etag, nil
}

// CompleteMultipart finalizes uploadID with the given completed parts.
func (s *Store) CompleteMultipart(ctx context.Context, dstKey, uploadID string, parts []objectstore.CompletedPart) error {
	completed := make([]types.CompletedPart, len(parts))
	for i, p := range parts {
		completed[i] = types.CompletedPart{
			PartNumber: aws.Int32(p.PartNumber),
			ETag:       aws.String(p.ETag),
		}
	}

	_, err := s.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(s.bucket),
		Key:             aws.String(dstKey),
		UploadId:        aws.String(uploadID),
		MultipartUpload: &types.CompletedMultipartUpload{Parts: completed},
	})
	if err != nil {
		return fmt.Errorf("complete multipart upload %s for %s: %w", uploadID, dstKey, err)
	}
	return nil
}

// AbortMultipart cancels uploadID. A "no such upload" response is treated
// as success since the end state (no dangling upload) is the same.
func (s *Store) AbortMultipart(ctx context.Context, dstKey, uploadID string) error {
	_, err := s.client.AbortMultipartUpload(ctx, &s3.AbortMultipartUploadInput{
		Bucket:   aws.String(s.bucket),
		Key:      aws.String(dstKey),
		UploadId: aws.String(uploadID),
	})
	if err != nil {
		var noSuchUpload *types.NoSuchUpload
		if !errors.As(err, &noSuchUpload) && !isNotFoundError(err) {
			return fmt.Errorf("abort multipart upload %s for %s: %w", uploadID, dstKey, err)
		}
	}
	return nil
}

// Delete issues an unconditional delete, retrying transient failures up to
// deleteRetries. A not-found response is treated as success.
func (s *Store) Delete(ctx context.Context, key string) error {
	err := withRetry(ctx, s.deleteRetries, s.retryStart, func() error {
		_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    aws.String(key),
		})
		return err
	})
	if err != nil && !isNotFoundError(err) {
		return fmt.Errorf("delete %s/%s: %w", s.bucket, key, err)
	}
	return nil
}

var _ objectstore.TargetStore = (*Store)(nil)

// SourceAdapter exposes a Store as an objectstore.SourceStore, whose Head
// method takes an explicit bucket since the source bucket is supplied by
// the caller on each call rather than fixed at construction time.
type SourceAdapter struct {
	store *Store
}

// NewSourceAdapter wraps store for use as the mirror's source-side probe.
func NewSourceAdapter(store *Store) *SourceAdapter {
	return &SourceAdapter{store: store}
}

// Head probes bucket/key on the underlying client.
func (a *SourceAdapter) Head(ctx context.Context, bucket, key string) (objectstore.ObjectMeta, error) {
	return a.store.HeadBucket(ctx, bucket, key)
}

var _ objectstore.SourceStore = (*SourceAdapter)(nil)
