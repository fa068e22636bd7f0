package observability

import (
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ComponentLogger derives a child of the configured global logger tagged with
// the node id and component name. Used for structured HTTP access logs.
func ComponentLogger(node, component string) zerolog.Logger {
	return log.Logger.With().Str("node", node).Str("component", component).Logger()
}
