// internal/appshell/shell.go
package appshell

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"

	"argscreen/internal/cmdutil"
)

// RunFunc is a tool entry point returning its exit code.
type RunFunc func(ctx context.Context, argv []string, stdout, stderr io.Writer) int

// Main runs a tool with SIGINT/SIGTERM wired to cancellation and exits.
// A second signal kills the process the default way.
func Main(run RunFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)

	argv := os.Args[1:]
	if len(argv) == 0 {
		argv = []string{"--help"}
	}

	go func() {
		<-ctx.Done()
		stop()
	}()

	code := run(ctx, argv, os.Stdout, os.Stderr)
	if ctx.Err() != nil && code == cmdutil.ExitOK {
		code = cmdutil.ExitCancelled
	}

	stop()
	os.Exit(code)
}
