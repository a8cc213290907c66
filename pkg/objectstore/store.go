// Package objectstore defines the source/target store contracts the copy
// and delete engines consume, independent of any particular backend.
package objectstore

import "context"

// ObjectMeta is the result of a source existence probe.
type ObjectMeta struct {
	Size int64
	ETag string
}

// ErrNotFound is returned by SourceStore.Head when the object does not
// exist (or no longer exists by the time the probe runs).
var ErrNotFound = notFoundError{}

type notFoundError struct{}

func (notFoundError) Error() string { return "object not found" }

// ErrEntityTooLargeForSingleCopy is returned by TargetStore.CopySingle when
// the target rejects a whole-object server-side copy on size grounds (S3's
// single CopyObject/PUT limit is 5GiB). The copy engine treats this as a
// signal to escalate to a multipart plan rather than fail the event.
var ErrEntityTooLargeForSingleCopy = entityTooLargeError{}

type entityTooLargeError struct{}

func (entityTooLargeError) Error() string { return "entity too large for single copy" }

// SourceStore is the read-only contract the copy engine uses to confirm an
// object still exists before planning a copy.
type SourceStore interface {
	// Head returns metadata for key, or ErrNotFound if it doesn't exist.
	Head(ctx context.Context, bucket, key string) (ObjectMeta, error)
}

// TargetStore is the read/write contract the copy and delete engines issue
// operations against.
type TargetStore interface {
	// Head returns metadata for key on the target, or ErrNotFound.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// CopySingle performs a server-side copy of a whole object in one call.
	CopySingle(ctx context.Context, srcBucket, srcKey, dstKey string) error

	// InitiateMultipart starts a multipart upload and returns its upload ID.
	InitiateMultipart(ctx context.Context, dstKey string) (uploadID string, err error)

	// CopyPart performs a server-side copy of one byte range into an
	// in-progress multipart upload, returning the resulting part ETag.
	CopyPart(ctx context.Context, uploadID, dstKey string, partNumber int32, srcBucket, srcKey string, start, end int64) (etag string, err error)

	// CompleteMultipart finalizes a multipart upload given its completed
	// parts, sorted by part number.
	CompleteMultipart(ctx context.Context, dstKey, uploadID string, parts []CompletedPart) error

	// AbortMultipart cancels an in-progress multipart upload. Idempotent:
	// aborting an already-gone upload is not an error.
	AbortMultipart(ctx context.Context, dstKey, uploadID string) error

	// Delete issues an unconditional delete. Idempotent: deleting a
	// nonexistent key is not an error.
	Delete(ctx context.Context, key string) error
}

// CompletedPart is one finished part of a multipart upload, as required by
// CompleteMultipart.
type CompletedPart struct {
	PartNumber int32
	ETag       string
}
