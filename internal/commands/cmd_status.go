package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/colonyops/porter/internal/core/styles"
	"github.com/colonyops/porter/internal/porter"
	"github.com/colonyops/porter/pkg/iojson"
)

type StatusCmd struct {
	flags *Flags
	app   *porter.App

	// flags
	jsonOutput bool
}

// NewStatusCmd creates a new status command
func NewStatusCmd(flags *Flags, app *porter.App) *StatusCmd {
	return &StatusCmd{flags: flags, app: app}
}

// Register adds the status command to the application
func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show connectivity and pending sync state",
		UsageText: "porter status [--json]",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output as JSON",
				Destination: &cmd.jsonOutput,
			},
		},
		Action: cmd.run,
	})

	return app
}

type statusReport struct {
	Online     bool          `json:"online"`
	Reconciler string        `json:"reconciler"`
	Pending    int           `json:"pending"`
	Mutations  []statusEntry `json:"mutations,omitempty"`
}

type statusEntry struct {
	Sequence int64  `json:"sequence"`
	Action   string `json:"action"`
	TaskID   string `json:"task_id"`
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	report := statusReport{
		Online:     cmd.app.Monitor.Online(),
		Reconciler: string(cmd.app.Reconciler.State()),
		Pending:    cmd.app.Queue.Len(),
	}
	for _, m := range cmd.app.Queue.All() {
		report.Mutations = append(report.Mutations, statusEntry{
			Sequence: m.Sequence,
			Action:   string(m.Action),
			TaskID:   m.TargetID,
		})
	}

	if cmd.jsonOutput {
		return iojson.Write(report)
	}

	if report.Online {
		fmt.Println(styles.Success.Render("online"))
	} else {
		fmt.Println(styles.Warning.Render("offline"))
	}
	fmt.Printf("reconciler: %s\n", report.Reconciler)
	fmt.Printf("pending mutations: %d\n", report.Pending)
	for _, m := range report.Mutations {
		fmt.Printf("  %d %s %s\n", m.Sequence, m.Action, styles.Muted.Render(shortID(m.TaskID)))
	}

	return nil
}
