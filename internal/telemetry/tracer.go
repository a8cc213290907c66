package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys for mirror operations, following OpenTelemetry semantic
// convention style (dotted namespaces).
const (
	AttrBucket     = "storage.bucket"
	AttrKey        = "storage.key"
	AttrSize       = "storage.size"
	AttrEtag       = "storage.etag"
	AttrKind       = "mirror.event_kind" // CREATE or DELETE
	AttrPlan       = "mirror.copy_plan"  // SINGLE or MULTIPART
	AttrUploadID   = "mirror.upload_id"
	AttrPartNumber = "mirror.part_number"
	AttrPartCount  = "mirror.part_count"
	AttrAttempt    = "mirror.attempt"
	AttrWorkerID   = "mirror.worker_id"
	AttrMessageID  = "mirror.message_id"
	AttrQueueDepth = "mirror.queue_depth"
	AttrDesired    = "mirror.desired_workers"
)

// Span names for mirror operations.
const (
	SpanCopy             = "mirror.copy"
	SpanCopySingle       = "mirror.copy.single"
	SpanCopyPart         = "mirror.copy.part"
	SpanDelete           = "mirror.delete"
	SpanDispatchTick     = "mirror.dispatch.tick"
	SpanWorkerPoll       = "mirror.worker.poll"
	SpanWorkerProcess    = "mirror.worker.process"
	SpanVisibilityExtend = "mirror.visibility.extend"
)

// Bucket returns an attribute for an S3 bucket name.
func Bucket(name string) attribute.KeyValue { return attribute.String(AttrBucket, name) }

// Key returns an attribute for an object key.
func Key(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }

// Size returns an attribute for an object size in bytes.
func Size(size int64) attribute.KeyValue { return attribute.Int64(AttrSize, size) }

// Etag returns an attribute for an object's ETag.
func Etag(etag string) attribute.KeyValue { return attribute.String(AttrEtag, etag) }

// Kind returns an attribute for the sync event kind.
func Kind(kind string) attribute.KeyValue { return attribute.String(AttrKind, kind) }

// Plan returns an attribute for the selected copy plan.
func Plan(plan string) attribute.KeyValue { return attribute.String(AttrPlan, plan) }

// UploadID returns an attribute for a multipart upload ID.
func UploadID(id string) attribute.KeyValue { return attribute.String(AttrUploadID, id) }

// PartNumber returns an attribute for a multipart part number.
func PartNumber(n int32) attribute.KeyValue { return attribute.Int64(AttrPartNumber, int64(n)) }

// PartCount returns an attribute for the total part count of a plan.
func PartCount(n int) attribute.KeyValue { return attribute.Int(AttrPartCount, n) }

// Attempt returns an attribute for a retry attempt number.
func Attempt(n int) attribute.KeyValue { return attribute.Int(AttrAttempt, n) }

// WorkerID returns an attribute for the worker processing the span.
func WorkerID(id string) attribute.KeyValue { return attribute.String(AttrWorkerID, id) }

// MessageID returns an attribute for the queue message being processed.
func MessageID(id string) attribute.KeyValue { return attribute.String(AttrMessageID, id) }

// QueueDepth returns an attribute for the observed visible queue depth.
func QueueDepth(depth int64) attribute.KeyValue { return attribute.Int64(AttrQueueDepth, depth) }

// Desired returns an attribute for the dispatcher's desired worker count.
func Desired(n int) attribute.KeyValue { return attribute.Int(AttrDesired, n) }

// StartCopySpan starts a span for a copy operation (single or multipart).
func StartCopySpan(ctx context.Context, key string, size int64, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Key(key), Size(size)}, attrs...)
	return StartSpan(ctx, SpanCopy, trace.WithAttributes(allAttrs...))
}

// StartDeleteSpan starts a span for a delete operation.
func StartDeleteSpan(ctx context.Context, key string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{Key(key)}, attrs...)
	return StartSpan(ctx, SpanDelete, trace.WithAttributes(allAttrs...))
}

// StartPartSpan starts a span for a single multipart upload-part copy.
func StartPartSpan(ctx context.Context, uploadID string, partNumber int32, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	allAttrs := append([]attribute.KeyValue{UploadID(uploadID), PartNumber(partNumber)}, attrs...)
	return StartSpan(ctx, SpanCopyPart, trace.WithAttributes(allAttrs...))
}

// StartDispatchSpan starts a span for one dispatcher tick.
func StartDispatchSpan(ctx context.Context, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanDispatchTick, trace.WithAttributes(attrs...))
}
