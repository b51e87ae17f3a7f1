// Command etl builds the Regional Price Parity store from the BEA API and
// distributes it as a SQL bundle.
//
// Usage:
//
//	etl run                 # fetch → load → export → publish
//	etl fetch | load | export | publish
//	etl seed --bundle data/seed --db data/serve.db
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
