// tierstream - a client for a tiered music streaming service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tierstream/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tierstream: %v\n", err)
		os.Exit(1)
	}
}
