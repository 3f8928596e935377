package components

import (
	"context"

	"supplysim/internal/infra/eventstream"
	"supplysim/internal/infra/transport/inproc"
	"supplysim/internal/infra/transport/natsbus"
	"supplysim/internal/pkg/config"
	"supplysim/internal/stats"
	"supplysim/internal/usecase"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/fx"
)

var InprocTransportModule = fx.Module("transport/inproc",
	fx.Provide(
		fx.Annotate(
			NewInprocBus,
			fx.As(new(usecase.Transport)),
		),
		NewLocalObserver,
	),
)

func NewInprocBus(lc fx.Lifecycle, cfg config.Config) *inproc.Bus {
	bus := inproc.New(cfg.Protocol.EventBuffer)

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			bus.Close()
			return nil
		},
	})

	return bus
}

func NewLocalObserver(collector *stats.Collector) usecase.Observer {
	return usecase.Observers{collector}
}

var NATSTransportModule = fx.Module("transport/nats",
	fx.Provide(
		fx.Annotate(
			NewNATSBus,
			fx.As(new(usecase.Transport)),
		),
		NewEventPublisher,
		NewStreamObserver,
	),
)

func NewNATSBus(nc *nats.Conn, cfg config.Config) *natsbus.Bus {
	return natsbus.New(nc, cfg.NATS.SubjectPrefix)
}

func NewEventPublisher(lc fx.Lifecycle, js jetstream.JetStream, cfg config.Config) (*eventstream.Publisher, error) {
	if err := eventstream.EnsureStream(context.Background(), js, cfg.NATS.Stream, cfg.NATS.SubjectPrefix); err != nil {
		return nil, err
	}

	publisher := eventstream.NewPublisher(js, cfg.NATS.SubjectPrefix, cfg.Protocol.EventBuffer)

	// Stops after the fleet, so events emitted during shutdown still drain.
	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			publisher.Close()
			return nil
		},
	})

	return publisher, nil
}

func NewStreamObserver(collector *stats.Collector, publisher *eventstream.Publisher) usecase.Observer {
	return usecase.Observers{collector, publisher}
}
