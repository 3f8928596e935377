package main

import (
	"context"
	"log/slog"
	"os"

	"supplysim/cmd/bootstrap"
	"supplysim/internal/handler/middleware"
	"supplysim/internal/pkg/config"
	"supplysim/internal/pkg/errs"

	"github.com/gin-gonic/gin"
	"github.com/urfave/cli/v2"
	"go.uber.org/fx"
)

func init() {
	// 設定ミスでもデバッグ情報を公開しない（フェイルセーフ）
	gin.SetMode(gin.ReleaseMode)

	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	}
}

func main() {
	app := &cli.App{
		Name:  "supplysim",
		Usage: "Multi-echelon supply negotiation simulator",
		Commands: []*cli.Command{
			runCmd,
			archiveCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("コマンドの実行に失敗しました", "error", err)
		os.Exit(1)
	}
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "Run the simulation fleet and its status API",
	Action: func(_ *cli.Context) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		switch cfg.Sim.Transport {
		case config.TransportInproc, config.TransportNATS:
		default:
			return errs.Newf("unknown transport %q", cfg.Sim.Transport)
		}
		return runApp(
			baseOptions(cfg),
			fx.Provide(func() *gin.Engine {
				return gin.New()
			}),
			bootstrap.SimOptions(cfg),
			fx.Invoke(startServer),
		)
	},
}

var archiveCmd = &cli.Command{
	Name:  "archive",
	Usage: "Persist lifecycle events from the event stream into Postgres",
	Action: func(_ *cli.Context) error {
		cfg, err := config.LoadConfig()
		if err != nil {
			return err
		}
		return runApp(
			baseOptions(cfg),
			bootstrap.ArchiveOptions(),
		)
	},
}

func baseOptions(cfg config.Config) fx.Option {
	// NewLogger installs the slog default as a side effect, so it runs
	// eagerly rather than as a lazy provider.
	logger := middleware.NewLogger(cfg.Log)
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(logger.GetSlogLogger),
	)
}

func startServer(lc fx.Lifecycle, engine *gin.Engine, cfg config.Config, logger *slog.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			gin.EnableJsonDecoderDisallowUnknownFields()
			listenAddr := ":" + cfg.Server.Port
			logger.Info("🚀 サーバーを起動します", "address", listenAddr, "mode", gin.Mode())
			go func() {
				if err := engine.Run(listenAddr); err != nil {
					logger.Error("サーバーの起動に失敗しました", "error", err)
				}
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			logger.Info("🛑 サーバーを停止します")
			return nil
		},
	})
}

func runApp(opts ...fx.Option) error {
	app := fx.New(opts...)

	if err := app.Start(context.Background()); err != nil {
		return errs.Wrap(err, "start application")
	}

	<-app.Done()

	if err := app.Stop(context.Background()); err != nil {
		slog.Error("アプリケーションの停止に失敗しました", "error", err)
		// Djangoと同様、Exitしない
	}

	slog.Info("アプリケーションが正常に停止しました")
	return nil
}
