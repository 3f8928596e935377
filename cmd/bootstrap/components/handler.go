package components

import (
	"supplysim/internal/handler"
	"supplysim/internal/handler/api"
	"supplysim/internal/sim"

	"go.uber.org/fx"
)

var HandlerModule = fx.Module("handler",
	fx.Provide(
		fx.Annotate(
			NewFleetView,
			fx.As(new(api.FleetView)),
		),
		api.NewStatusHandler,
	),
	fx.Invoke(handler.NewRouter),
)

func NewFleetView(fleet *sim.Fleet) *sim.Fleet {
	return fleet
}
