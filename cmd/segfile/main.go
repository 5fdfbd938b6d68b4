// Command segfile stores, fetches and checks segmented files in any of the
// supported backends.
//
// Every flag can also be set through the environment, prefixed with SEGFILE_
// and with dashes replaced by underscores (e.g. SEGFILE_BACKEND=dynamodb,
// SEGFILE_SEGMENTS_TABLE=files), or through a config file given with --config.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
