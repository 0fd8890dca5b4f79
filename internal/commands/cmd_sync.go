package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/porter"
)

type SyncCmd struct {
	flags *Flags
	app   *porter.App
}

// NewSyncCmd creates a new sync command
func NewSyncCmd(flags *Flags, app *porter.App) *SyncCmd {
	return &SyncCmd{flags: flags, app: app}
}

// Register adds the sync command to the application
func (cmd *SyncCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "sync",
		Usage:     "Replay queued offline writes against the remote store",
		UsageText: "porter sync",
		Description: `Re-probes connectivity and, when the remote store is reachable, drains
the pending mutation queue in order. A failure stops the pass; the failed
mutation and everything after it stay queued for the next attempt.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *SyncCmd) run(ctx context.Context, c *cli.Command) error {
	cmd.app.Monitor.Refresh(ctx)

	if !cmd.app.Monitor.Online() {
		return fmt.Errorf("remote store is unreachable")
	}

	pending := cmd.app.Queue.Len()
	if pending == 0 {
		fmt.Println(styles.Success.Render("nothing to sync"))
		return nil
	}

	if err := cmd.app.Reconciler.Run(ctx); err != nil {
		return fmt.Errorf("sync stopped with %d mutation(s) still queued: %w", cmd.app.Queue.Len(), err)
	}

	fmt.Printf("%s %d mutation(s) applied\n", styles.Success.Render("synced"), pending)
	return nil
}
