package mirror

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/KevinZhao/s3sync/internal/logger"
	"github.com/KevinZhao/s3sync/internal/telemetry"
	"github.com/KevinZhao/s3sync/pkg/mirror/visibility"
	"github.com/KevinZhao/s3sync/pkg/queue"
)

// WorkerState is the Worker's local state, per the data model in §3. No
// state is shared across Workers.
type WorkerState string

const (
	StateStarting   WorkerState = "STARTING"
	StatePolling    WorkerState = "POLLING"
	StateProcessing WorkerState = "PROCESSING"
	StateDraining   WorkerState = "DRAINING"
	StateExited     WorkerState = "EXITED"
)

// Copier is the subset of the copy engine (C2) the Worker drives.
type Copier interface {
	Copy(ctx context.Context, key string) error
}

// Deleter is the subset of the delete engine (C3) the Worker drives.
type Deleter interface {
	Delete(ctx context.Context, key string) error
}

// Metrics is the optional observability sink the Worker reports to. A nil
// Metrics is valid and results in zero overhead, matching the teacher's
// nil-safe metrics convention.
type Metrics interface {
	ObserveEvent(kind EventKind, duration time.Duration, err error)
	ObserveEmptyPoll()
	ObserveWorkerExit(reason string)
}

// WorkerConfig controls one Worker's polling, processing, and idle/drain
// behavior. Zero values fall back to the defaults in spec.md §6.
type WorkerConfig struct {
	ID string

	SourceBucket string
	PrefixFilter string

	WaitTime             time.Duration
	Batch                int32
	EmptyPollsBeforeExit int
	ExtendInterval       time.Duration
	VisibilityTimeout    time.Duration
	DrainDeadline        time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.WaitTime <= 0 {
		c.WaitTime = 20 * time.Second
	}
	if c.Batch <= 0 {
		c.Batch = 1
	}
	if c.EmptyPollsBeforeExit <= 0 {
		c.EmptyPollsBeforeExit = 3
	}
	if c.ExtendInterval <= 0 {
		c.ExtendInterval = 5 * time.Minute
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 30 * time.Minute
	}
	if c.DrainDeadline <= 0 {
		c.DrainDeadline = 25 * time.Second
	}
	return c
}

// Worker implements the Worker loop (C5): long-polls the queue, dispatches
// each record to the copy or delete engine, acks on full-message success,
// and self-exits on sustained idleness or signal-driven preemption.
type Worker struct {
	queue   queue.Client
	copier  Copier
	deleter Deleter
	metrics Metrics
	cfg     WorkerConfig
}

// NewWorker builds a Worker bound to the given queue client, copy/delete
// engines, and config. metrics may be nil.
func NewWorker(q queue.Client, copier Copier, deleter Deleter, metrics Metrics, cfg WorkerConfig) *Worker {
	return &Worker{
		queue:   q,
		copier:  copier,
		deleter: deleter,
		metrics: metrics,
		cfg:     cfg.withDefaults(),
	}
}

// Run drives the Worker loop until it exits cleanly (idle, or drained after
// ctx is canceled) or hits an unrecoverable error. The returned exit code
// matches spec.md §6: 0 on clean idle or clean drain, 3 on unrecoverable
// initialization/runtime failure. Callers arrange for ctx to be canceled on
// SIGTERM/preemption; Run treats that cancellation as the drain signal and
// never begins a new message once it observes it.
func (w *Worker) Run(ctx context.Context) int {
	state := w.transition(StateStarting)
	state = w.transition(StatePolling)
	emptyPolls := 0

	for {
		if ctx.Err() != nil {
			logger.Info("worker draining: no message in flight, exiting", logger.WorkerID(w.cfg.ID), logger.State(string(state)))
			w.transition(StateExited)
			w.observeExit("drain")
			return 0
		}

		pollCtx, pollSpan := telemetry.StartSpan(ctx, telemetry.SpanWorkerPoll, trace.WithAttributes(telemetry.WorkerID(w.cfg.ID)))
		msgs, err := w.queue.Receive(pollCtx, int32(w.cfg.WaitTime.Seconds()), w.cfg.Batch)
		if err != nil {
			telemetry.RecordError(pollCtx, err)
			pollSpan.End()
			if ctx.Err() != nil {
				w.transition(StateExited)
				w.observeExit("drain")
				return 0
			}
			logger.Error("queue receive failed", logger.WorkerID(w.cfg.ID), logger.Err(err), logger.ErrorKind(string(ErrQueueUnavailable)))
			emptyPolls++
			if emptyPolls >= w.cfg.EmptyPollsBeforeExit {
				w.transition(StateExited)
				w.observeExit("queue_unavailable")
				return 3
			}
			continue
		}
		pollSpan.End()

		if len(msgs) == 0 {
			emptyPolls++
			w.observeEmptyPoll()
			if emptyPolls >= w.cfg.EmptyPollsBeforeExit {
				logger.Info("worker idle, exiting", logger.WorkerID(w.cfg.ID), "empty_polls", emptyPolls)
				w.transition(StateExited)
				w.observeExit("idle")
				return 0
			}
			continue
		}
		emptyPolls = 0

		for _, msg := range msgs {
			if ctx.Err() != nil {
				logger.Info("worker draining: leaving unstarted message for redrive", logger.WorkerID(w.cfg.ID), logger.MessageID(msg.MessageID))
				continue
			}

			state = w.transition(StateProcessing)
			w.processWithDrainDeadline(ctx, msg)

			if ctx.Err() != nil {
				state = w.transition(StateDraining)
			}
		}

		if ctx.Err() != nil {
			w.transition(StateExited)
			w.observeExit("drain")
			return 0
		}
		state = w.transition(StatePolling)
	}
}

// transition logs and returns the Worker's new local state. State is never
// shared across Workers, so this is purely observability bookkeeping.
func (w *Worker) transition(s WorkerState) WorkerState {
	logger.Debug("worker state transition", logger.WorkerID(w.cfg.ID), logger.State(string(s)))
	return s
}

// processWithDrainDeadline runs processMessage to completion, but never lets
// it outlive DrainDeadline past the point ctx is canceled; if the backstop
// fires, the Worker abandons the in-flight call and returns (the AWS calls
// it started will themselves observe ctx cancellation and unwind).
func (w *Worker) processWithDrainDeadline(ctx context.Context, msg queue.Message) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.processMessage(ctx, msg)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
	}

	select {
	case <-done:
	case <-time.After(w.cfg.DrainDeadline):
		logger.Warn("drain deadline exceeded, exiting without waiting for in-flight message",
			logger.WorkerID(w.cfg.ID), logger.MessageID(msg.MessageID))
	}
}

// processMessage parses one queue message into its constituent SyncEvents
// and executes them in order, stopping at the first failure. It acks the
// message only if every record succeeded (including the degenerate case of
// zero relevant records, which is a no-op ack).
func (w *Worker) processMessage(ctx context.Context, msg queue.Message) {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanWorkerProcess,
		trace.WithAttributes(telemetry.WorkerID(w.cfg.ID), telemetry.MessageID(msg.MessageID)))
	defer span.End()

	events, err := ParseEnvelope(msg.Body, w.cfg.SourceBucket, w.cfg.PrefixFilter)
	if err != nil {
		telemetry.RecordError(ctx, err)
		logger.Error("malformed queue message, leaving for redrive",
			logger.MessageID(msg.MessageID), logger.Err(err))
		return
	}

	keeper := visibility.Start(ctx, w.queue, msg.Receipt, w.cfg.ExtendInterval, w.cfg.VisibilityTimeout)
	defer keeper.Stop()

	for _, ev := range events {
		ev.MessageID = msg.MessageID
		ev.Receipt = msg.Receipt
		ev.Attempt = msg.Attempts

		start := time.Now()
		err := w.dispatch(ctx, ev)
		w.observeEvent(ev.Kind, time.Since(start), err)

		if err != nil {
			kind, _ := KindOf(err)
			telemetry.RecordError(ctx, err)
			logger.Error("event processing failed, leaving message for redrive",
				logger.MessageID(msg.MessageID), logger.Key(ev.Key), logger.Kind(string(ev.Kind)),
				logger.ErrorKind(string(kind)), logger.Err(err))
			return
		}
	}

	if err := w.queue.Ack(ctx, msg.Receipt); err != nil {
		if keeper.LeaseLost() {
			logger.Warn("ack failed after lease lost, message will redrive safely",
				logger.MessageID(msg.MessageID), logger.Err(err))
			return
		}
		logger.Error("ack failed", logger.MessageID(msg.MessageID), logger.Err(err))
		return
	}
}

func (w *Worker) dispatch(ctx context.Context, ev SyncEvent) error {
	switch ev.Kind {
	case EventCreate:
		return w.copier.Copy(ctx, ev.Key)
	case EventDelete:
		return w.deleter.Delete(ctx, ev.Key)
	default:
		return nil
	}
}

func (w *Worker) observeEvent(kind EventKind, d time.Duration, err error) {
	if w.metrics != nil {
		w.metrics.ObserveEvent(kind, d, err)
	}
}

func (w *Worker) observeEmptyPoll() {
	if w.metrics != nil {
		w.metrics.ObserveEmptyPoll()
	}
}

func (w *Worker) observeExit(reason string) {
	if w.metrics != nil {
		w.metrics.ObserveWorkerExit(reason)
	}
}
