// Package main is the yourupnext CLI entry point.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/louisbranch/yourupnext/internal/platform/config"
	"github.com/louisbranch/yourupnext/internal/platform/otel"

	runcmd "github.com/louisbranch/yourupnext/internal/cmd/run"
)

func main() {
	cfg, err := runcmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("Error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := otel.Setup(ctx, "yourupnext")
	if err != nil {
		config.Exitf("Error: %v", err)
	}
	defer shutdown(context.Background())

	if err := runcmd.Run(ctx, cfg, os.Stdout, os.Stderr); err != nil {
		config.Exitf("Error: %v", err)
	}
}
