// Command ridgedb-server runs the TCP front-end and admin HTTP plane over a
// shared storage engine.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ridgedb/ridgedb/internal/bootstrap"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := bootstrap.RunServer(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ridgedb-server:", err)
		os.Exit(1)
	}
}
