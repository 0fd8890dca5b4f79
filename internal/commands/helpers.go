package commands

import (
	"context"
	"fmt"
	"strings"

	"github.com/colonyops/porter/internal/core/task"
	"github.com/colonyops/porter/internal/porter"
)

// containsFold reports whether s contains substr, case-insensitively.
func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// shortID returns the display form of a task id.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// resolveTask finds the single task whose id matches the given prefix.
func resolveTask(ctx context.Context, app *porter.App, ref string) (task.Task, error) {
	if ref == "" {
		return task.Task{}, fmt.Errorf("task id required")
	}

	tasks, err := app.Repository.List(ctx)
	if err != nil {
		return task.Task{}, fmt.Errorf("list tasks: %w", err)
	}

	var matches []task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}

	switch len(matches) {
	case 0:
		return task.Task{}, task.ErrNotFound
	case 1:
		return matches[0], nil
	default:
		return task.Task{}, fmt.Errorf("id %q is ambiguous, matches %d tasks", ref, len(matches))
	}
}
