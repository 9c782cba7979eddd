// Package main provides the entry point for the bh CLI.
//
// Usage:
//
//	bh job artifact download -j <job-id> -a <artifact-name> [-o <output>]
//	bh scan dispatch -w <workflow-id> -s <scan-name> [--input-string k=v] [--input-bool k=true]
//	bh blob upload -s <file> --dst <path>
//	bh runner registration command
//
// Commands rely on the BOUNTYHUB_TOKEN and BOUNTYHUB_URL environment variables.
package main

import (
	"bh/internal/client/commands"
	"context"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := commands.Execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
