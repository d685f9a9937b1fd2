// Command groundtrack computes a satellite's ground track and ground-station
// look angles and keeps them in a key-value store for the map UI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "groundtrack: %v\n", err)
		stop()
		os.Exit(1)
	}
}
