package logger

import "log/slog"

// Standard field keys for structured logging across the mirror's worker and
// dispatcher processes. Use these keys consistently so log aggregation and
// querying doesn't fragment across ad-hoc field names.
const (
	// Distributed tracing.
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// Worker / dispatcher identity.
	KeyWorkerID = "worker_id"
	KeyTaskID   = "task_id" // compute-launcher task identifier
	KeyState    = "state"   // worker state machine state

	// Queue message.
	KeyMessageID = "message_id"
	KeyReceipt   = "receipt" // truncated, never logged in full
	KeyAttempt   = "attempt"

	// Object identity.
	KeyBucket = "bucket"
	KeyKey    = "key"
	KeySize   = "size"
	KeyEtag   = "etag"
	KeyKind   = "kind" // CREATE or DELETE

	// Copy/multipart operation.
	KeyUploadID    = "upload_id"
	KeyPartNumber  = "part_number"
	KeyPartCount   = "part_count"
	KeyPlan        = "plan" // SINGLE or MULTIPART

	// Queue depth / dispatcher sizing.
	KeyQueueVisible  = "queue_visible"
	KeyQueueInFlight = "queue_in_flight"
	KeyDesired       = "desired"
	KeyRunning       = "running"
	KeyPending       = "pending"
	KeyToStart       = "to_start"

	// Operation metadata.
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
	KeyErrorKind  = "error_kind"
	KeyMaxRetries = "max_retries"
)

// TraceID returns a slog.Attr for the OpenTelemetry trace ID.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// SpanID returns a slog.Attr for the OpenTelemetry span ID.
func SpanID(id string) slog.Attr { return slog.String(KeySpanID, id) }

// WorkerID returns a slog.Attr for the worker's identifier.
func WorkerID(id string) slog.Attr { return slog.String(KeyWorkerID, id) }

// TaskID returns a slog.Attr for the compute-launcher task identifier.
func TaskID(id string) slog.Attr { return slog.String(KeyTaskID, id) }

// State returns a slog.Attr for the worker state machine state.
func State(s string) slog.Attr { return slog.String(KeyState, s) }

// MessageID returns a slog.Attr for the queue message identifier.
func MessageID(id string) slog.Attr { return slog.String(KeyMessageID, id) }

// Attempt returns a slog.Attr for a retry/delivery attempt counter.
func Attempt(n int) slog.Attr { return slog.Int(KeyAttempt, n) }

// Bucket returns a slog.Attr for an S3 bucket name.
func Bucket(name string) slog.Attr { return slog.String(KeyBucket, name) }

// Key returns a slog.Attr for an object key.
func Key(k string) slog.Attr { return slog.String(KeyKey, k) }

// Size returns a slog.Attr for an object size in bytes.
func Size(s int64) slog.Attr { return slog.Int64(KeySize, s) }

// Etag returns a slog.Attr for an object's ETag.
func Etag(e string) slog.Attr { return slog.String(KeyEtag, e) }

// Kind returns a slog.Attr for an event kind (CREATE/DELETE).
func Kind(k string) slog.Attr { return slog.String(KeyKind, k) }

// UploadID returns a slog.Attr for a multipart upload ID.
func UploadID(id string) slog.Attr { return slog.String(KeyUploadID, id) }

// PartNumber returns a slog.Attr for a multipart part number.
func PartNumber(n int32) slog.Attr { return slog.Int(KeyPartNumber, int(n)) }

// PartCount returns a slog.Attr for the total part count of a plan.
func PartCount(n int) slog.Attr { return slog.Int(KeyPartCount, n) }

// Plan returns a slog.Attr for the copy plan kind (SINGLE/MULTIPART).
func Plan(p string) slog.Attr { return slog.String(KeyPlan, p) }

// QueueDepth returns slog.Attrs for the observed visible/in-flight depth.
func QueueDepth(visible, inFlight int64) []slog.Attr {
	return []slog.Attr{
		slog.Int64(KeyQueueVisible, visible),
		slog.Int64(KeyQueueInFlight, inFlight),
	}
}

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error, or a zero Attr if err is nil.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// ErrorKind returns a slog.Attr for a classified error kind.
func ErrorKind(kind string) slog.Attr { return slog.String(KeyErrorKind, kind) }

// MaxRetries returns a slog.Attr for the configured retry ceiling.
func MaxRetries(n int) slog.Attr { return slog.Int(KeyMaxRetries, n) }
