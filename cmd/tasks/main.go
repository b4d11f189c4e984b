// Command tasks runs the project maintenance tasks.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/open-teleop/scenebridge/pkg/tasks"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(defaultEnv()).ExecuteContext(ctx)
	stop()
	if err != nil {
		var exit *tasks.ExitError
		if errors.As(err, &exit) {
			fmt.Fprintln(os.Stderr, exit.Message)
			os.Exit(1)
		}
		var cmdErr *tasks.CommandError
		if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(cmdErr.ExitCode)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
