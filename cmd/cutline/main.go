package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/mgpai22/cutline/internal/cli"
	"github.com/mgpai22/cutline/internal/errs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(errs.ExitCode(err))
	}
}
