package mirror

import (
	"context"

	"github.com/KevinZhao/s3sync/internal/logger"
	"github.com/KevinZhao/s3sync/pkg/launcher"
	"github.com/KevinZhao/s3sync/pkg/queue"
)

// DispatcherMetrics is the optional observability sink the Dispatcher
// reports to.
type DispatcherMetrics interface {
	ObserveDesired(desired int)
	ObserveLaunched(count int)
	ObserveLaunchFailure()
}

// DispatcherConfig controls the scaling decision. Values come directly from
// spec.md §6.
type DispatcherConfig struct {
	MaxWorkers           int
	TargetBacklogPerTask int
	BurstStartLimit      int
	PreemptibleWeight    int
	OnDemandWeight       int
	LaunchRetries        int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.MaxWorkers <= 0 {
		c.MaxWorkers = 64
	}
	if c.TargetBacklogPerTask <= 0 {
		c.TargetBacklogPerTask = 3
	}
	if c.BurstStartLimit <= 0 {
		c.BurstStartLimit = 20
	}
	if c.PreemptibleWeight == 0 && c.OnDemandWeight == 0 {
		c.PreemptibleWeight, c.OnDemandWeight = 4, 1
	}
	if c.LaunchRetries <= 0 {
		c.LaunchRetries = 3
	}
	return c
}

// Dispatcher implements the periodic scaler (C6): a pure function of
// observed queue depth and worker census, invoked once per tick by an
// external clock. It keeps no state across invocations (§9's statelessness
// requirement), so a duplicate or overlapping invocation never compounds.
type Dispatcher struct {
	queue    queue.Client
	launcher launcher.Launcher
	metrics  DispatcherMetrics
	cfg      DispatcherConfig
}

// NewDispatcher builds a Dispatcher bound to the given queue-inspection and
// compute-launcher clients. metrics may be nil.
func NewDispatcher(q queue.Client, l launcher.Launcher, metrics DispatcherMetrics, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{queue: q, launcher: l, metrics: metrics, cfg: cfg.withDefaults()}
}

// TickResult summarizes the outcome of one Dispatcher invocation.
type TickResult struct {
	Depth    QueueDepth
	Census   WorkerCensus
	Desired  int
	ToStart  int
	Launched int
}

// Tick reads queue depth and worker census, computes the desired worker
// count, and launches the shortfall bounded by BurstStartLimit. A failed
// launch attempt is retried within this invocation up to LaunchRetries; any
// remaining shortfall is left for the next tick to compensate, since the
// Dispatcher is stateless and idempotent across invocations.
func (d *Dispatcher) Tick(ctx context.Context) (TickResult, error) {
	visible, inFlight, err := d.readDepth(ctx)
	if err != nil {
		return TickResult{}, NewError(ErrQueueUnavailable, "", err)
	}
	depth := QueueDepth{Visible: visible, InFlight: inFlight}

	census, err := d.launcher.ListWorkers(ctx)
	if err != nil {
		return TickResult{}, NewError(ErrLaunchFailed, "", err)
	}
	workerCensus := WorkerCensus{Running: census.Running, Pending: census.Pending}

	desired := desiredWorkers(depth, d.cfg.MaxWorkers, d.cfg.TargetBacklogPerTask)
	toStart := clamp(desired-workerCensus.Total(), 0, d.cfg.BurstStartLimit)

	logger.Info("dispatcher tick",
		"queue_visible", depth.Visible, "queue_in_flight", depth.InFlight,
		"running", workerCensus.Running, "pending", workerCensus.Pending,
		"desired", desired, "to_start", toStart)

	d.observeDesired(desired)

	result := TickResult{Depth: depth, Census: workerCensus, Desired: desired, ToStart: toStart}
	if toStart == 0 {
		return result, nil
	}

	weighting := launcher.Weighting{Preemptible: d.cfg.PreemptibleWeight, OnDemand: d.cfg.OnDemandWeight}
	launched, err := d.launchWithRetry(ctx, weighting, toStart)
	result.Launched = launched
	d.observeLaunched(launched)

	if err != nil {
		d.observeLaunchFailure()
		logger.Error("dispatcher launch incomplete, next tick will compensate",
			"requested", toStart, "launched", launched, logger.Err(err))
		return result, NewError(ErrLaunchFailed, "", err)
	}

	return result, nil
}

func (d *Dispatcher) readDepth(ctx context.Context) (visible, inFlight int64, err error) {
	depth, err := d.queue.Depth(ctx)
	if err != nil {
		return 0, 0, err
	}
	return depth.Visible, depth.InFlight, nil
}

// launchWithRetry attempts to launch `count` workers, retrying only the
// shortfall up to LaunchRetries within this single invocation.
func (d *Dispatcher) launchWithRetry(ctx context.Context, weighting launcher.Weighting, count int) (int, error) {
	launched := 0
	remaining := count
	var lastErr error

	for attempt := 0; attempt <= d.cfg.LaunchRetries && remaining > 0; attempt++ {
		n, err := d.launcher.Launch(ctx, weighting, remaining)
		launched += n
		remaining -= n
		if err != nil {
			lastErr = err
		}
	}

	if remaining > 0 {
		if lastErr == nil {
			lastErr = NewError(ErrLaunchFailed, "", nil)
		}
		return launched, lastErr
	}
	return launched, nil
}

// desiredWorkers computes min(ceil(depth.Total()/targetBacklogPerTask), maxWorkers).
func desiredWorkers(depth QueueDepth, maxWorkers, targetBacklogPerTask int) int {
	total := depth.Total()
	if total <= 0 {
		return 0
	}
	desired := int((total + int64(targetBacklogPerTask) - 1) / int64(targetBacklogPerTask))
	if desired > maxWorkers {
		desired = maxWorkers
	}
	return desired
}

// clamp bounds v to [lo, hi].
func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func (d *Dispatcher) observeDesired(n int) {
	if d.metrics != nil {
		d.metrics.ObserveDesired(n)
	}
}

func (d *Dispatcher) observeLaunched(n int) {
	if d.metrics != nil {
		d.metrics.ObserveLaunched(n)
	}
}

func (d *Dispatcher) observeLaunchFailure() {
	if d.metrics != nil {
		d.metrics.ObserveLaunchFailure()
	}
}
