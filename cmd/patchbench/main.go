// File: cmd/patchbench/main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/patchbench/cmd"
	"github.com/xkilldash9x/patchbench/internal/observability"
)

func main() {
	// Interrupts abort cleanly; any in-flight apply still restores the tree
	// through its deferred snapshot bracket.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := cmd.Execute(ctx)
	observability.Sync()
	if err != nil {
		if errors.Is(err, context.Canceled) {
			os.Exit(0)
		}
		os.Exit(1)
	}
}
