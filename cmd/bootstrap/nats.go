package bootstrap

import (
	"context"

	"supplysim/internal/pkg/config"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/fx"
)

var NATSModule = fx.Module("nats",
	fx.Provide(
		NewNATSConn,
		NewJetStream,
	),
)

func NewNATSConn(lc fx.Lifecycle, cfg config.Config) (*nats.Conn, error) {
	nc, err := nats.Connect(cfg.NATS.URL, nats.Name("supplysim"))
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			return nc.Drain()
		},
	})

	return nc, nil
}

func NewJetStream(nc *nats.Conn) (jetstream.JetStream, error) {
	return jetstream.New(nc)
}
