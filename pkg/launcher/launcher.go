// Package launcher defines the compute-launcher contract the Dispatcher
// consumes, independent of any particular compute backend.
package launcher

import "context"

// Census is the Dispatcher's view of worker population, as reported by the
// launcher backend.
type Census struct {
	Running int
	Pending int
}

// Weighting splits launch count between preemptible and on-demand capacity,
// e.g. 4:1 preemptible:on-demand.
type Weighting struct {
	Preemptible int
	OnDemand    int
}

// Launcher is the compute-launcher contract (§6). The Dispatcher does not
// care what a "worker" physically is; it only observes running+pending
// counts and requests more.
type Launcher interface {
	// ListWorkers returns the current running+pending worker census.
	ListWorkers(ctx context.Context) (Census, error)

	// Launch starts count additional workers, split across preemptible and
	// on-demand capacity per weighting. Returns the number actually
	// launched and an error for any that failed; a partial launch is not
	// itself an error — the Dispatcher retries the shortfall within the
	// same invocation up to its own LaunchRetries cap.
	Launch(ctx context.Context, weighting Weighting, count int) (launched int, err error)
}
