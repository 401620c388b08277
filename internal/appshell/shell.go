// Package appshell is the process entry shared by every command: it wires
// SIGINT/SIGTERM to context cancellation and turns the run result into the
// process exit status.
package appshell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// ExitCanceled is returned when a signal stopped the run.
const ExitCanceled = 130

func Main(run func(context.Context, []string, io.Writer, io.Writer) int) {
	os.Exit(Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, run))
}

// Run calls run under a context cancelled by SIGINT or SIGTERM.
func Run(parent context.Context, argv []string, stdout, stderr io.Writer, run func(context.Context, []string, io.Writer, io.Writer) int) int {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, argv, stdout, stderr)
	// Normalize cancellation exit code.
	if ctx.Err() != nil && code == 0 {
		code = ExitCanceled
	}
	return code
}
