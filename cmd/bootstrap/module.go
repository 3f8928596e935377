package bootstrap

import (
	"supplysim/cmd/bootstrap/components"
	"supplysim/internal/pkg/config"

	"go.uber.org/fx"
)

// SimOptions assembles the graph for the simulation command. The transport
// has to be decided before fx sees the graph, which is why the command
// loads the config itself and supplies it instead of providing a loader.
func SimOptions(cfg config.Config) fx.Option {
	opts := []fx.Option{
		components.SimModule,
		components.HandlerModule,
	}
	if cfg.Sim.Transport == config.TransportNATS {
		opts = append(opts, NATSModule, components.NATSTransportModule)
	} else {
		opts = append(opts, components.InprocTransportModule)
	}
	return fx.Options(opts...)
}

// ArchiveOptions assembles the graph for the archive worker command.
func ArchiveOptions() fx.Option {
	return fx.Options(
		DBModule,
		NATSModule,
		components.ArchiveModule,
	)
}
