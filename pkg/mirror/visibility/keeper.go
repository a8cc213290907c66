// Package visibility implements the mirror's visibility keeper (C4): a
// background ticker that extends a queue message's lease while the Worker's
// foreground processing is in flight.
package visibility

import (
	"context"
	"sync"
	"time"

	"github.com/KevinZhao/s3sync/internal/logger"
	"github.com/KevinZhao/s3sync/internal/telemetry"
)

// Extender is the subset of queue.Client the keeper needs, kept narrow so
// tests can fake just this.
type Extender interface {
	Extend(ctx context.Context, receipt string, seconds int32) error
}

// Keeper extends one message's visibility deadline on a fixed interval until
// Stop is called. A Worker processing a single message spawns exactly one
// Keeper; Stop must be deferred by the caller on every exit path (success,
// failure, or panic) so a Keeper is never leaked extending a dead message.
type Keeper struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu        sync.Mutex
	leaseLost bool
}

// Start begins extending receipt's visibility every interval by timeout
// seconds, logging and recording LEASE_LOST and stopping if an extend call
// fails for any reason. The returned Keeper must be stopped by the
// caller; Stop blocks until the background tick goroutine has exited.
func Start(ctx context.Context, ext Extender, receipt string, interval, timeout time.Duration) *Keeper {
	keeperCtx, cancel := context.WithCancel(ctx)
	k := &Keeper{
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go k.run(keeperCtx, ext, receipt, interval, timeout)

	return k
}

func (k *Keeper) run(ctx context.Context, ext Extender, receipt string, interval, timeout time.Duration) {
	defer close(k.done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			tickCtx, span := telemetry.StartSpan(ctx, telemetry.SpanVisibilityExtend)
			err := ext.Extend(tickCtx, receipt, int32(timeout.Seconds()))
			if err != nil {
				telemetry.RecordError(tickCtx, err)
			}
			span.End()
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				short := receipt
				if len(short) > 16 {
					short = short[:16] + "..."
				}
				logger.Warn("visibility extend failed, lease may be lost", logger.KeyReceipt, short, logger.Err(err))
				k.mu.Lock()
				k.leaseLost = true
				k.mu.Unlock()
				return
			}
		}
	}
}

// LeaseLost reports whether an extend call failed, meaning the message may
// have already been redelivered to another receiver. The in-flight
// operation still completes; its eventual ack will simply fail, which is
// acceptable since the copy engine's existence probe makes a redelivered
// retry safe.
func (k *Keeper) LeaseLost() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.leaseLost
}

// Stop halts the background extension goroutine and waits for it to exit.
// Safe to call multiple times.
func (k *Keeper) Stop() {
	k.cancel()
	<-k.done
}
