package commands

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/porter"
	"github.com/colonyops/porter/pkg/iojson"
)

type LsCmd struct {
	flags *Flags
	app   *porter.App

	// flags
	jsonOutput bool
	category   string
	search     string
	today      bool
}

// NewLsCmd creates a new ls command
func NewLsCmd(flags *Flags, app *porter.App) *LsCmd {
	return &LsCmd{flags: flags, app: app}
}

// Register adds the ls command to the application
func (cmd *LsCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "ls",
		Usage:     "List tasks",
		UsageText: "porter ls [--json] [--category <name>] [--search <text>] [--today]",
		Description: `Displays the current best-known task list, newest first: the remote
result set when online, the cached snapshot when offline. Pending and
completed tasks are shown in separate sections.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
			&cli.StringFlag{
				Name:        "category",
				Aliases:     []string{"c"},
				Usage:       "only show tasks in this category",
				Destination: &cmd.category,
			},
			&cli.StringFlag{
				Name:        "search",
				Aliases:     []string{"s"},
				Usage:       "only show tasks whose title contains this text",
				Destination: &cmd.search,
			},
			&cli.BoolFlag{
				Name:        "today",
				Usage:       "only show tasks due today",
				Destination: &cmd.today,
			},
		},
		Action: cmd.run,
	})

	return app
}

func (cmd *LsCmd) run(ctx context.Context, c *cli.Command) error {
	tasks, err := cmd.app.Repository.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}

	tasks = cmd.filter(tasks)

	if cmd.jsonOutput {
		return iojson.Write(tasks)
	}

	if len(tasks) == 0 {
		fmt.Fprintln(os.Stderr, "No tasks found")
		return nil
	}

	if !cmd.app.Monitor.Online() {
		fmt.Println(styles.Warning.Render("offline mode"))
	}

	var pending, done []task.Task
	for _, t := range tasks {
		if t.Done {
			done = append(done, t)
		} else {
			pending = append(pending, t)
		}
	}

	now := time.Now()
	if len(pending) > 0 {
		fmt.Println(styles.Header.Render("Pending"))
		for _, t := range pending {
			printTask(t, now)
		}
	}
	if len(done) > 0 {
		fmt.Println(styles.Header.Render("Done"))
		for _, t := range done {
			printTask(t, now)
		}
	}

	return nil
}

func (cmd *LsCmd) filter(tasks []task.Task) []task.Task {
	now := time.Now()
	var out []task.Task
	for _, t := range tasks {
		if cmd.category != "" && t.Category != task.Category(cmd.category) {
			continue
		}
		if cmd.search != "" && !containsFold(t.Title, cmd.search) {
			continue
		}
		if cmd.today && !t.DueToday(now) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func printTask(t task.Task, now time.Time) {
	box := "[ ]"
	title := t.Title
	if t.Done {
		box = "[x]"
		title = styles.Done.Render(title)
	}

	line := fmt.Sprintf("  %s %s  %s %s", box, title, styles.CategoryTag(t.Category), styles.Muted.Render(shortID(t.ID)))
	if t.DueDate != nil {
		due := t.DueDate.Format("Jan 2")
		if t.DueTime != "" {
			due += " " + t.DueTime
		}
		if t.Overdue(now) {
			line += " " + styles.Overdue.Render("due "+due)
		} else {
			line += " " + styles.Muted.Render("due "+due)
		}
	}

	fmt.Println(line)
}
