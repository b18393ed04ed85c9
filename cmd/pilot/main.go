// File: cmd/pilot/main.go
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/pilot/cmd"
)

// osExit is swapped in tests.
var osExit = os.Exit

func main() {
	// Cancelling the context stops the active run between steps.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := exitCode(cmd.Execute(ctx))
	stop()
	osExit(code)
}

// exitCode maps a command error to the process status. An interrupted run
// has already printed its report, so it exits cleanly.
func exitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, context.Canceled):
		return 0
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
}
