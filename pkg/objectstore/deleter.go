package objectstore

import (
	"context"

	"github.com/KevinZhao/s3sync/internal/telemetry"
	"github.com/KevinZhao/s3sync/pkg/mirror"
)

// Deleter implements the mirror's delete engine (C3): an idempotent
// unconditional delete against the target store. Retry behavior lives in
// the TargetStore implementation (it owns the notion of "transient"); this
// type just maps the outcome to a mirror ErrorKind.
type Deleter struct {
	target TargetStore
}

// NewDeleter builds a Deleter bound to the given target store.
func NewDeleter(target TargetStore) *Deleter {
	return &Deleter{target: target}
}

// Delete removes key from the target. A not-found response is already
// folded into success by the TargetStore implementation.
func (d *Deleter) Delete(ctx context.Context, key string) error {
	ctx, span := telemetry.StartDeleteSpan(ctx, key)
	defer span.End()

	if err := d.target.Delete(ctx, key); err != nil {
		err = mirror.NewError(mirror.ErrDeleteFailed, key, err)
		telemetry.RecordError(ctx, err)
		return err
	}
	return nil
}
