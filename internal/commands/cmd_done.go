package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/porter"
)

type DoneCmd struct {
	flags *Flags
	app   *porter.App
}

// NewDoneCmd creates the done and undone commands
func NewDoneCmd(flags *Flags, app *porter.App) *DoneCmd {
	return &DoneCmd{flags: flags, app: app}
}

// Register adds the done and undone commands to the application
func (cmd *DoneCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands,
		&cli.Command{
			Name:      "done",
			Usage:     "Mark a task as completed",
			UsageText: "porter done <id>",
			Action: func(ctx context.Context, c *cli.Command) error {
				return cmd.toggle(ctx, c, true)
			},
		},
		&cli.Command{
			Name:      "undone",
			Usage:     "Mark a task as not completed",
			UsageText: "porter undone <id>",
			Action: func(ctx context.Context, c *cli.Command) error {
				return cmd.toggle(ctx, c, false)
			},
		},
	)

	return app
}

func (cmd *DoneCmd) toggle(ctx context.Context, c *cli.Command, done bool) error {
	t, err := resolveTask(ctx, cmd.app, c.Args().First())
	if err != nil {
		return err
	}

	updated, err := cmd.app.Repository.Update(ctx, t.ID, task.Patch{Done: &done})
	if err != nil {
		return fmt.Errorf("update task: %w", err)
	}

	verb := "reopened"
	if done {
		verb = "completed"
	}
	fmt.Printf("%s %s\n", styles.Success.Render(verb), updated.Title)
	if !cmd.app.Monitor.Online() {
		fmt.Println(styles.Warning.Render("offline: queued for next sync"))
	}

	return nil
}
