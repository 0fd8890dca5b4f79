// Package logging provides zerolog helpers shared across components.
package logging

import (
	"github.com/rs/zerolog"
)

// Component derives a child logger carrying a component identifier.
func Component(log zerolog.Logger, name string) zerolog.Logger {
	return log.With().Str("component", name).Logger()
}
