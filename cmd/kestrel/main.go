package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/fang"

	"github.com/simonhull/firebird-suite/kestrel"
	"github.com/simonhull/firebird-suite/kestrel/internal/commands"
)

func main() {
	os.Exit(run())
}

func run() int {
	// An interrupt cancels the run; whatever step is active returns and the
	// scaffold is rolled back before we exit.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := fang.Execute(ctx, commands.RootCmd(), fang.WithVersion(kestrel.Version))
	return commands.ExitCode(err)
}
