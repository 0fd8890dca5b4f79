package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/porter"
)

type AddCmd struct {
	flags *Flags
	app   *porter.App

	// flags
	category string
	due      string
	dueTime  string
}

// NewAddCmd creates a new add command
func NewAddCmd(flags *Flags, app *porter.App) *AddCmd {
	return &AddCmd{flags: flags, app: app}
}

// Register adds the add command to the application
func (cmd *AddCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "add",
		Usage:     "Create a new task",
		UsageText: "porter add [options] <title>",
		Description: `Creates a task. When the remote store is reachable the task is written
through immediately; otherwise it is applied to the local snapshot and
queued for the next sync.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "category",
				Aliases:     []string{"c"},
				Usage:       "task category (general, work, personal, shopping, health, education)",
				Value:       string(task.CategoryGeneral),
				Destination: &cmd.category,
			},
			&cli.StringFlag{
				Name:        "due",
				Usage:       "due date (YYYY-MM-DD)",
				Destination: &cmd.due,
			},
			&cli.StringFlag{
				Name:        "time",
				Usage:       "due time of day (HH:MM), independent of --due",
				Destination: &cmd.dueTime,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *AddCmd) run(ctx context.Context, c *cli.Command) error {
	title := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))

	t := task.Task{
		Title:    title,
		Category: task.Category(cmd.category),
	}

	if cmd.due != "" {
		due, err := time.ParseInLocation("2006-01-02", cmd.due, time.Local)
		if err != nil {
			return fmt.Errorf("invalid --due date %q, expected YYYY-MM-DD", cmd.due)
		}
		t.DueDate = &due
	}

	if cmd.dueTime != "" {
		if _, err := time.Parse("15:04", cmd.dueTime); err != nil {
			return fmt.Errorf("invalid --time %q, expected HH:MM", cmd.dueTime)
		}
		t.DueTime = cmd.dueTime
	}

	created, err := cmd.app.Repository.Create(ctx, t)
	if err != nil {
		return fmt.Errorf("add task: %w", err)
	}

	fmt.Printf("%s %s %s\n", styles.Success.Render("added"), created.Title, styles.Muted.Render(shortID(created.ID)))
	if !cmd.app.Monitor.Online() {
		fmt.Println(styles.Warning.Render("offline: queued for next sync"))
	}

	return nil
}
