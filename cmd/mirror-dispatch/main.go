// Command mirror-dispatch runs a single scheduling tick: it observes queue
// depth and worker census, computes the desired worker count, and launches
// the shortfall via the compute launcher. It is invoked periodically by an
// external scheduler (e.g. an EventBridge rule on Mirror.DispatchPeriod) and
// exits after one tick rather than running a loop of its own, per the
// Dispatcher's stateless-per-invocation design.
package main

import (
	"fmt"
	"os"

	"github.com/KevinZhao/s3sync/cmd/mirror-dispatch/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
