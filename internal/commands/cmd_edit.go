package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/porter"
)

type EditCmd struct {
	flags *Flags
	app   *porter.App

	// flags
	title    string
	category string
	due      string
	dueTime  string
}

// NewEditCmd creates a new edit command
func NewEditCmd(flags *Flags, app *porter.App) *EditCmd {
	return &EditCmd{flags: flags, app: app}
}

// Register adds the edit command to the application
func (cmd *EditCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "edit",
		Usage:     "Edit a task's title, category, or due fields",
		UsageText: "porter edit <id> [--title <t>] [--category <c>] [--due <date>] [--time <hh:mm>]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "title",
				Usage:       "new title",
				Destination: &cmd.title,
			},
			&cli.StringFlag{
				Name:        "category",
				Aliases:     []string{"c"},
				Usage:       "new category",
				Destination: &cmd.category,
			},
			&cli.StringFlag{
				Name:        "due",
				Usage:       "new due date (YYYY-MM-DD)",
				Destination: &cmd.due,
			},
			&cli.StringFlag{
				Name:        "time",
				Usage:       "new due time (HH:MM)",
				Destination: &cmd.dueTime,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *EditCmd) run(ctx context.Context, c *cli.Command) error {
	t, err := resolveTask(ctx, cmd.app, c.Args().First())
	if err != nil {
		return err
	}

	var patch task.Patch
	if cmd.title != "" {
		patch.Title = &cmd.title
	}
	if cmd.category != "" {
		cat := task.Category(cmd.category)
		patch.Category = &cat
	}
	if cmd.due != "" {
		due, err := time.ParseInLocation("2006-01-02", cmd.due, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --due date %q, expected YYYY-MM-DD", cmd.due)
		}
		patch.DueDate = &due
	}
	if cmd.dueTime != "" {
		if _, err := time.Parse("15:04", cmd.dueTime); err != nil {
			return fmt.Errorf("invalid --time %q, expected HH:MM", cmd.dueTime)
		}
		patch.DueTime = &cmd.dueTime
	}

	if patch == (task.Patch{}) {
		return fmt.Errorf("nothing to change, pass at least one of --title, --category, --due, --time")
	}

	updated, err := cmd.app.Repository.Update(ctx, t.ID, patch)
	if err != nil {
		return fmt.Errorf("edit task: %w", err)
	}

	fmt.Printf("%s %s\n", styles.Success.Render("updated"), updated.Title)
	if !cmd.app.Monitor.Online() {
		fmt.Println(styles.Warning.Render("offline: queued for next sync"))
	}

	return nil
}
