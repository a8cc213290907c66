// Command mirror-worker polls the durable queue for sync events and copies
// or deletes the corresponding objects between source and target buckets,
// self-exiting on sustained idleness or signal-driven preemption.
package main

import (
	"fmt"
	"os"

	"github.com/KevinZhao/s3sync/cmd/mirror-worker/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
