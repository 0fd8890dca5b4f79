package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/porter"
)

type RmCmd struct {
	flags *Flags
	app   *porter.App
}

// NewRmCmd creates a new rm command
func NewRmCmd(flags *Flags, app *porter.App) *RmCmd {
	return &RmCmd{flags: flags, app: app}
}

// Register adds the rm command to the application
func (cmd *RmCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "rm",
		Usage:     "Delete a task",
		UsageText: "porter rm <id>",
		Action:    cmd.run,
	})

	return app
}

func (cmd *RmCmd) run(ctx context.Context, c *cli.Command) error {
	t, err := resolveTask(ctx, cmd.app, c.Args().First())
	if err != nil {
		return err
	}

	if err := cmd.app.Repository.Delete(ctx, t.ID); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}

	fmt.Printf("%s %s\n", styles.Success.Render("deleted"), t.Title)
	if !cmd.app.Monitor.Online() {
		fmt.Println(styles.Warning.Render("offline: queued for next sync"))
	}

	return nil
}
