package components

import (
	"context"

	"supplysim/internal/infra/archive"
	"supplysim/internal/infra/eventstream"
	"supplysim/internal/pkg/config"
	"supplysim/migrations"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/fx"
)

var ArchiveModule = fx.Module("archive",
	fx.Provide(
		archive.NewStore,
	),
	fx.Invoke(
		ApplyMigrations,
		StartArchiveConsumer,
	),
)

func ApplyMigrations(pool *pgxpool.Pool) error {
	return migrations.Apply(context.Background(), pool)
}

// StartArchiveConsumer binds the durable consumer to the lifecycle. The
// stream is ensured first so the worker can start before any publisher.
func StartArchiveConsumer(lc fx.Lifecycle, js jetstream.JetStream, store *archive.Store, cfg config.Config) {
	consumer := archive.NewConsumer(js, store, cfg.NATS.Stream, cfg.NATS.SubjectPrefix, cfg.NATS.Consumer)

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := eventstream.EnsureStream(ctx, js, cfg.NATS.Stream, cfg.NATS.SubjectPrefix); err != nil {
				return err
			}
			return consumer.Start(ctx)
		},
		OnStop: func(_ context.Context) error {
			consumer.Stop()
			return nil
		},
	})
}
