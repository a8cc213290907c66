package objectstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/KevinZhao/s3sync/internal/bytesize"
	"github.com/KevinZhao/s3sync/internal/telemetry"
	"github.com/KevinZhao/s3sync/pkg/mirror"
)

// CopierConfig controls plan selection and part-copy concurrency. Part-copy
// retries are a property of the TargetStore implementation (see
// pkg/objectstore/s3.StoreConfig.PartRetries), not of the Copier itself.
type CopierConfig struct {
	SourceBucket      string
	SingleCopyCeiling bytesize.ByteSize
	PartSize          bytesize.ByteSize
	CopyParallelism   int
}

// CopierMetrics is the optional observability sink for individual
// part-copy attempts and multipart aborts. A nil CopierMetrics is valid and
// results in zero overhead.
type CopierMetrics interface {
	ObservePartCopy(err error)
	ObserveMultipartAbort()
}

// Copier implements the mirror's copy engine (C2): existence probe, plan
// selection, and single/multipart execution against a TargetStore.
type Copier struct {
	source  SourceStore
	target  TargetStore
	metrics CopierMetrics
	cfg     CopierConfig
}

// NewCopier builds a Copier bound to the given source probe and target
// store. metrics may be nil.
func NewCopier(source SourceStore, target TargetStore, metrics CopierMetrics, cfg CopierConfig) *Copier {
	return &Copier{source: source, target: target, metrics: metrics, cfg: cfg}
}

const maxMultipartParts = 10000

// maxPartSize is S3's own per-part upper bound; doubling the configured
// part size to keep the part count in range can never grow past this.
const maxPartSize = 5 * bytesize.GiB

// Copy performs the existence probe, plan selection, and copy for key. A
// missing source object is treated as success: the creation race was lost
// to a later deletion and the event is safely ack-able.
func (c *Copier) Copy(ctx context.Context, key string) error {
	ctx, span := telemetry.StartCopySpan(ctx, key, 0)
	defer span.End()

	meta, err := c.source.Head(ctx, c.cfg.SourceBucket, key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil
		}
		err = mirror.NewError(mirror.ErrSourceHeadFailed, key, err)
		telemetry.RecordError(ctx, err)
		return err
	}
	span.SetAttributes(telemetry.Size(meta.Size))

	plan, err := planCopy(meta.Size, c.cfg.SingleCopyCeiling, c.cfg.PartSize)
	if err != nil {
		telemetry.RecordError(ctx, err)
		return err
	}
	span.SetAttributes(telemetry.Plan(string(plan.Kind)))

	switch plan.Kind {
	case mirror.PlanSingle:
		if err := c.target.CopySingle(ctx, c.cfg.SourceBucket, key, key); err != nil {
			if !errors.Is(err, ErrEntityTooLargeForSingleCopy) {
				err = mirror.NewError(mirror.ErrCopyFailed, key, err)
				telemetry.RecordError(ctx, err)
				return err
			}

			// The target rejected a whole-object copy on size grounds that
			// HeadObject didn't report (or a size right at S3's 5GiB single
			// PUT/COPY limit): escalate to a multipart plan for the same key.
			span.SetAttributes(telemetry.Plan(string(mirror.PlanMultipart)))
			fallback, planErr := planCopy(meta.Size, 0, c.cfg.PartSize)
			if planErr != nil {
				telemetry.RecordError(ctx, planErr)
				return planErr
			}
			if copyErr := c.copyMultipart(ctx, key, fallback); copyErr != nil {
				telemetry.RecordError(ctx, copyErr)
				return copyErr
			}
		}
		return nil
	default:
		if err := c.copyMultipart(ctx, key, plan); err != nil {
			telemetry.RecordError(ctx, err)
			return err
		}
		return nil
	}
}

// planCopy selects SINGLE or MULTIPART for an object of the given size,
// growing the part size (doubling) until the part count fits under
// maxMultipartParts. OBJECT_TOO_LARGE if even a single part at the largest
// attempted size can't keep the part count in bounds.
func planCopy(size int64, ceiling, partSize bytesize.ByteSize) (mirror.CopyPlan, error) {
	if size < int64(ceiling) {
		return mirror.CopyPlan{Kind: mirror.PlanSingle, Size: size}, nil
	}

	part := int64(partSize)
	if part <= 0 {
		part = int64(64 * bytesize.MiB)
	}

	partCount := ceilDiv(size, part)
	for partCount > maxMultipartParts && part < int64(maxPartSize) {
		part *= 2
		partCount = ceilDiv(size, part)
	}
	if part > int64(maxPartSize) {
		part = int64(maxPartSize)
		partCount = ceilDiv(size, part)
	}

	if partCount > maxMultipartParts {
		return mirror.CopyPlan{}, mirror.NewError(mirror.ErrObjectTooLarge, "", fmt.Errorf("object of size %d cannot be split into at most %d parts of at most %s each", size, maxMultipartParts, maxPartSize))
	}

	var parts []mirror.CopyPart
	partNumber := int32(1)
	for offset := int64(0); offset < size; offset += part {
		end := offset + part
		if end > size {
			end = size
		}
		parts = append(parts, mirror.CopyPart{
			PartNumber: partNumber,
			Offset:     offset,
			Length:     end - offset,
		})
		partNumber++
	}

	return mirror.CopyPlan{
		Kind:     mirror.PlanMultipart,
		Size:     size,
		PartSize: part,
		Parts:    parts,
	}, nil
}

// copyMultipart drives a bounded pool of COPY_PARALLELISM concurrent
// part-copy tasks, collects ETags under a mutex, and completes or aborts
// the upload depending on whether every part succeeded.
func (c *Copier) copyMultipart(ctx context.Context, key string, plan mirror.CopyPlan) error {
	uploadID, err := c.target.InitiateMultipart(ctx, key)
	if err != nil {
		return mirror.NewError(mirror.ErrCopyFailed, key, fmt.Errorf("initiate multipart upload: %w", err))
	}

	parallelism := c.cfg.CopyParallelism
	if parallelism <= 0 {
		parallelism = 256
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sem := make(chan struct{}, parallelism)
	var wg sync.WaitGroup

	var mu sync.Mutex
	completed := make([]CompletedPart, 0, len(plan.Parts))
	var firstErr error

	for _, part := range plan.Parts {
		part := part
		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer func() {
				<-sem
				wg.Done()
			}()

			if ctx.Err() != nil {
				return
			}

			partCtx, partSpan := telemetry.StartPartSpan(ctx, uploadID, part.PartNumber, telemetry.Key(key))
			etag, err := c.target.CopyPart(partCtx, uploadID, key, part.PartNumber, c.cfg.SourceBucket, key, part.Offset, part.Offset+part.Length-1)
			c.observePartCopy(err)
			if err != nil {
				telemetry.RecordError(partCtx, err)
				partSpan.End()
				mu.Lock()
				if firstErr == nil {
					firstErr = err
					cancel()
				}
				mu.Unlock()
				return
			}
			partSpan.End()

			mu.Lock()
			completed = append(completed, CompletedPart{PartNumber: part.PartNumber, ETag: etag})
			mu.Unlock()
		}()
	}

	wg.Wait()

	if firstErr != nil {
		_ = c.target.AbortMultipart(context.WithoutCancel(ctx), key, uploadID)
		c.observeMultipartAbort()
		return mirror.NewError(mirror.ErrCopyFailed, key, firstErr)
	}

	sort.Slice(completed, func(i, j int) bool { return completed[i].PartNumber < completed[j].PartNumber })

	if err := c.target.CompleteMultipart(ctx, key, uploadID, completed); err != nil {
		_ = c.target.AbortMultipart(context.WithoutCancel(ctx), key, uploadID)
		c.observeMultipartAbort()
		return mirror.NewError(mirror.ErrCopyFailed, key, fmt.Errorf("complete multipart upload: %w", err))
	}

	return nil
}

func (c *Copier) observePartCopy(err error) {
	if c.metrics != nil {
		c.metrics.ObservePartCopy(err)
	}
}

func (c *Copier) observeMultipartAbort() {
	if c.metrics != nil {
		c.metrics.ObserveMultipartAbort()
	}
}

// ceilDiv returns the number of parts of size part needed to cover size,
// rounding up.
func ceilDiv(size, part int64) int64 {
	return (size + part - 1) / part
}
