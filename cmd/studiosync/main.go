// Command studiosync reconciles Stash studios with StashDB, ThePornDB and
// other stash-box registries. It runs standalone or as a Stash plugin.
package main

import (
	"context"
	"os"

	"github.com/agentstation/studiosync/cmd/studiosync/app"
	"github.com/agentstation/studiosync/pkg/constants"
)

// Set through -ldflags at release time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
	builtBy = "source"
)

func main() {
	app.ExitOnError(run(os.Args[1:]))
}

func run(args []string) error {
	cli, err := app.New(version, commit, date, builtBy)
	if err != nil {
		return err
	}

	ctx, stop := app.ContextWithSignals(context.Background())
	defer stop()

	runErr := cli.Execute(ctx, args)

	// ctx may be canceled by now; the lock still has to go.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
	defer cancel()
	if err := cli.Shutdown(shutdownCtx); err != nil {
		cli.Logger().Error().Err(err).Msg("Shutdown failed")
	}
	return runErr
}
