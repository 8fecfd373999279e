package mockfirebolt

import (
	"github.com/fogfish/opts"

	"github.com/Nandana-NNR/mock-firebolt/config"
	"github.com/Nandana-NNR/mock-firebolt/schema"
	"github.com/Nandana-NNR/mock-firebolt/triggers"
)

// WithConfig replaces the default configuration wholesale. Resolve it with
// config.Load or start from config.Default().
var WithConfig = opts.ForName[Server, config.Config]("cfg")

// WithSchemas installs a pre-populated payload schema registry instead of
// the empty one the server would otherwise create.
var WithSchemas = opts.ForName[Server, *schema.Registry]("schemas")

// WithTrigger registers a pre/post hook pair for one event method before
// the server starts taking traffic.
func WithTrigger(method string, trigger triggers.Trigger) opts.Option[Server] {
	return opts.Type[Server](func(s *Server) error {
		if s.pendingTriggers == nil {
			s.pendingTriggers = map[string]triggers.Trigger{}
		}
		s.pendingTriggers[method] = trigger
		return nil
	})
}
