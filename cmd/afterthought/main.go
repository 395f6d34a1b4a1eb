package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// Exit codes for different failure modes
const (
	ExitSuccess     = 0 // Every item succeeded or was skipped
	ExitItemsFailed = 1 // The run finished but some items failed
	ExitError       = 2 // Configuration or runtime error
)

// ItemsFailedError indicates that the run completed, but one or more
// items ended in FAILED.
type ItemsFailedError struct {
	Failed int
}

func (e *ItemsFailedError) Error() string {
	if e.Failed == 1 {
		return "1 item failed"
	}
	return fmt.Sprintf("%d items failed", e.Failed)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := execute(ctx)
	stop()
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	fmt.Fprintln(os.Stderr, err)

	var failed *ItemsFailedError
	if errors.As(err, &failed) {
		return ExitItemsFailed
	}
	return ExitError
}
