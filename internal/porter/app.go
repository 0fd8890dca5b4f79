// Package porter contains the offline-first sync engine: the mutation
// queue, the reconciler, and the task repository consumed by the CLI.
package porter

import (
	"github.com/colonyops/porter/internal/core/config"
	"github.com/colonyops/porter/internal/data/db"
	"github.com/colonyops/porter/internal/remote"
)

// App is the central entry point for all porter operations.
// Commands consume App instead of cherry-picking raw dependencies.
type App struct {
	Repository *Repository
	Queue      *Queue
	Reconciler *Reconciler
	Monitor    Connectivity
	Source     remote.Source
	Config     *config.Config
	DB         *db.DB
}

// NewApp constructs an App from explicit dependencies.
func NewApp(
	repo *Repository,
	queue *Queue,
	rec *Reconciler,
	monitor Connectivity,
	source remote.Source,
	cfg *config.Config,
	database *db.DB,
) *App {
	return &App{
		Repository: repo,
		Queue:      queue,
		Reconciler: rec,
		Monitor:    monitor,
		Source:     source,
		Config:     cfg,
		DB:         database,
	}
}
