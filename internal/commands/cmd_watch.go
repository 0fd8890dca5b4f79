package commands

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/porter"
)

type WatchCmd struct {
	flags *Flags
	app   *porter.App
}

// NewWatchCmd creates a new watch command
func NewWatchCmd(flags *Flags, app *porter.App) *WatchCmd {
	return &WatchCmd{flags: flags, app: app}
}

// Register adds the watch command to the application
func (cmd *WatchCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "watch",
		Usage:     "Follow the live task list and sync in the background",
		UsageText: "porter watch",
		Description: `Runs until interrupted. The remote push subscription keeps the local
snapshot current, queued offline writes are replayed whenever
connectivity returns, and every snapshot change is printed.`,
		Action: cmd.run,
	})

	return app
}

func (cmd *WatchCmd) run(ctx context.Context, c *cli.Command) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	events, err := cmd.app.Monitor.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch connectivity: %w", err)
	}

	snapshots, err := cmd.app.Repository.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch tasks: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return cmd.app.Repository.Run(ctx)
	})

	g.Go(func() error {
		return cmd.app.Reconciler.Watch(ctx, events)
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case snapshot, ok := <-snapshots:
				if !ok {
					return nil
				}
				fmt.Printf("%s %d task(s), %d pending mutation(s)\n",
					styles.Muted.Render(time.Now().Format("15:04:05")),
					len(snapshot), cmd.app.Queue.Len())
			}
		}
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}
