package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/compozy/autorelease/cmd"
	"github.com/compozy/autorelease/internal/domain"
)

func main() {
	if err := cmd.InitCommands(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize commands: %v\n", err)
		os.Exit(1)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		var wfErr *domain.WorkflowError
		if errors.As(err, &wfErr) {
			fmt.Fprintln(os.Stderr, wfErr.Diagnostic())
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(domain.ExitCodeFor(err))
	}
}
