// Command netprobe is the CLI entrypoint: protocol detection, a Telnet
// client, and a bounded-concurrency scan harness over a target list.
package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/plyul/netprobe/internal/cli"
	"github.com/plyul/netprobe/internal/logging"
)

// version is overridden at build time via -ldflags.
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	root := cli.NewRootCommand(version, os.Stdout, os.Stderr)

	err := cli.ClassifyExecError(root.ExecuteContext(ctx))
	if err != nil {
		logging.NewDefault(0).Error().Err(err).Msg("netprobe failed")
		if cli.IsUsageError(err) {
			return 2
		}
		return 1
	}
	return 0
}
