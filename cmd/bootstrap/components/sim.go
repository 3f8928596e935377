package components

import (
	"context"

	"supplysim/internal/infra/world"
	"supplysim/internal/pkg/clock"
	"supplysim/internal/pkg/config"
	"supplysim/internal/sim"
	"supplysim/internal/stats"
	"supplysim/internal/usecase"

	"go.uber.org/fx"
)

var SimModule = fx.Module("sim",
	fx.Provide(
		clock.NewRealClock,
		NewGrid,
		NewCollector,
		NewFleet,
	),
)

func NewGrid(cfg config.Config) (*world.Grid, error) {
	return world.NewGrid(cfg.Sim.GridWidth, cfg.Sim.GridHeight)
}

func NewCollector(cfg config.Config) *stats.Collector {
	return stats.New(cfg.Server.History)
}

func NewFleet(lc fx.Lifecycle, cfg config.Config, transport usecase.Transport, grid *world.Grid, clk clock.Clock, observer usecase.Observer) (*sim.Fleet, error) {
	fleet, err := sim.Build(sim.Params{
		Sim:       cfg.Sim,
		Protocol:  cfg.Protocol,
		Transport: transport,
		Grid:      grid,
		Clock:     clk,
		Observer:  observer,
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			fleet.Start()
			return nil
		},
		OnStop: func(_ context.Context) error {
			fleet.Stop()
			return nil
		},
	})

	return fleet, nil
}
