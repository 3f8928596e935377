//go:build e2e

package e2e

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"supplysim/cmd/bootstrap"
	"supplysim/cmd/bootstrap/components"
	"supplysim/internal/infra/db"
	"supplysim/internal/pkg/config"
	"supplysim/migrations"
	"supplysim/tests/common/dbtest"

	"github.com/docker/go-connections/nat"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/fx"
)

var (
	postgresContainerOnce sync.Once
	postgresTestContainer testcontainers.Container

	natsContainerOnce sync.Once
	natsTestContainer testcontainers.Container

	testUser     = "test"
	testPassword = "testpass"
)

type ContainerInfo struct {
	Host string
	Port nat.Port
}

// ------------------------------------------------------------
// シミュレーション用E2E環境（NATSコンテナ + fxアプリ）
// ------------------------------------------------------------
func setupSimEnvironment(t *testing.T) (*gin.Engine, config.Config) {
	gin.SetMode(gin.TestMode)
	natsInfo := startNATSContainer(t)

	router, cfg, app := buildSimApp(natsInfo)
	require.NotNil(t, router, "Routerのセットアップに失敗")

	// Register cleanup for the fx app
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := app.Stop(ctx); err != nil {
			slog.Warn("fxアプリケーションの停止に失敗しました", "error", err.Error())
		}
	})

	slog.Info("シミュレーションE2E環境の準備が完了しました",
		"nats_host", natsInfo.Host,
		"nats_port", natsInfo.Port.Port())

	return router, cfg
}

// ------------------------------------------------------------
// アーカイブワーカー用E2E環境（PostgreSQL + NATSコンテナ）
// fxアプリは組まず、各テストが自前でストリームとコンシューマを作る
// ------------------------------------------------------------
func setupArchiveEnvironment(t *testing.T) (*pgxpool.Pool, *nats.Conn, jetstream.JetStream, config.Config) {
	gin.SetMode(gin.TestMode)
	postgresInfo := startPostgresContainer(t)
	natsInfo := startNATSContainer(t)

	pool, dbConfig := prepareDatabase(t, postgresInfo)

	natsURL := fmt.Sprintf("nats://%s:%s", natsInfo.Host, natsInfo.Port.Port())
	nc, err := nats.Connect(natsURL, nats.Name("supplysim-e2e"))
	require.NoError(t, err, "NATS接続に失敗")
	t.Cleanup(func() {
		if err := nc.Drain(); err != nil {
			slog.Warn("NATS接続のクローズに失敗しました", "error", err.Error())
		}
	})

	js, err := jetstream.New(nc)
	require.NoError(t, err, "JetStreamコンテキストの作成に失敗")

	cfg := config.NewTestConfig()
	cfg.DB = dbConfig
	cfg.NATS.URL = natsURL

	slog.Info("アーカイブE2E環境の準備が完了しました",
		"postgres_host", postgresInfo.Host,
		"postgres_port", postgresInfo.Port.Port(),
		"nats_host", natsInfo.Host,
		"nats_port", natsInfo.Port.Port())

	return pool, nc, js, cfg
}

// ------------------------------------------------------------
// コンテナ起動関数
// ------------------------------------------------------------
func startPostgresContainer(t *testing.T) ContainerInfo {
	startPostgreSQLContainerOnce(t)

	postgresInfo, err := getContainerHostPort(postgresTestContainer, "5432/tcp")
	require.NoError(t, err, "PostgreSQLコンテナ情報の取得に失敗")

	return postgresInfo
}

func startNATSContainer(t *testing.T) ContainerInfo {
	startNATSContainerOnce(t)

	natsInfo, err := getContainerHostPort(natsTestContainer, "4222/tcp")
	require.NoError(t, err, "NATSコンテナ情報の取得に失敗")

	return natsInfo
}

// ------------------------------------------------------------
// データベース準備関数
// ------------------------------------------------------------
func prepareDatabase(t *testing.T, postgresInfo ContainerInfo) (*pgxpool.Pool, config.DBConfig) {
	// プロセス毎に違うスキーマ名を生成
	dbName := "testdb_" + strings.ReplaceAll(uuid.New().String(), "-", "") // ハイフンを除去してDB名として使用

	adminDSN := fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
		testUser, testPassword, postgresInfo.Host, postgresInfo.Port.Port())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	adminPool, err := pgxpool.New(ctx, adminDSN)
	require.NoError(t, err, "管理者接続に失敗")
	defer adminPool.Close()

	// データベース作成をリトライ機構付きで実行
	var createErr error
	for attempts := range 5 {
		var waitTime time.Duration
		if attempts > 0 {
			// 指数バックオフ
			waitTime = time.Duration(500+attempts*500) * time.Millisecond
			waitTime = min(waitTime, 3*time.Second)
			time.Sleep(waitTime)
		}
		_, createErr = adminPool.Exec(ctx, "CREATE DATABASE "+dbName)
		if createErr == nil {
			break
		}
		if attempts > 0 {
			slog.Warn("データベース作成を再試行中", "attempt", attempts+1, "error", createErr.Error(), "retry_wait", waitTime)
		} else {
			slog.Warn("データベース作成を再試行中", "attempt", attempts+1, "error", createErr.Error())
		}
	}
	require.NoError(t, createErr, "テスト用データベースの作成に失敗")

	// クリーンアップ（コンテナ自体は自動で消えるが、異常終了時も考慮）
	t.Cleanup(func() {
		cleanupCtx, cleanupCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cleanupCancel()

		cleanupPool, err := pgxpool.New(cleanupCtx, adminDSN)
		if err != nil {
			slog.Warn("クリーンアップ用のデータベース接続に失敗しました", "database", dbName, "error", err.Error())
			return
		}
		defer cleanupPool.Close()

		_, err = cleanupPool.Exec(cleanupCtx, "DROP DATABASE IF EXISTS "+dbName)
		if err != nil {
			slog.Warn("テストデータベースの削除に失敗しました", "database", dbName, "error", err.Error())
		}
	})

	dbConfig := config.DBConfig{
		Host:     postgresInfo.Host,
		Port:     postgresInfo.Port.Port(),
		User:     testUser,
		Password: testPassword,
		DBName:   dbName,
		SSLMode:  "disable",
		TimeZone: "Asia/Tokyo",
	}

	pool, _, err := db.Connect(dbConfig)
	require.NoError(t, err, "データベース接続に失敗")
	require.NotNil(t, pool, "データベース接続が nil です")

	migrateCtx, migrateCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer migrateCancel()
	err = migrations.Apply(migrateCtx, pool)
	require.NoError(t, err, "データベースマイグレーションに失敗")

	if gin.Mode() != gin.TestMode {
		slog.Info("データベースの準備が完了しました", "postgres_schema", dbName)
	}
	return pool, dbConfig
}

// ------------------------------------------------------------
// E2Eテスト用アプリケーション構築関数
// Returns router, config, and fx.App for proper lifecycle management
// ------------------------------------------------------------
func buildSimApp(natsInfo ContainerInfo) (*gin.Engine, config.Config, *fx.App) {
	var router *gin.Engine
	var cfg config.Config

	testConfigModule := fx.Module("testconfig",
		fx.Provide(func() config.Config {
			return createSimTestConfig(natsInfo)
		}),
	)

	app := fx.New(
		testConfigModule,
		fx.Provide(func() *gin.Engine { return gin.New() }),
		bootstrap.NATSModule,
		components.NATSTransportModule,
		components.SimModule,
		components.HandlerModule,

		fx.Populate(&router, &cfg),

		// ログを無効にして起動
		fx.NopLogger,
	)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		panic(fmt.Sprintf("Failed to start fx app: %v", err))
	}

	if router == nil {
		panic("fxアプリケーションの起動に失敗しました")
	}

	return router, cfg, app
}

func createSimTestConfig(natsInfo ContainerInfo) config.Config {
	// プロセス毎にサブジェクトとストリームを分離
	suffix := strings.ReplaceAll(uuid.New().String(), "-", "")[:12]

	cfg := config.NewTestConfig()
	cfg.NATS.URL = fmt.Sprintf("nats://%s:%s", natsInfo.Host, natsInfo.Port.Port())
	cfg.NATS.Stream = "SUPPLYSIM_TEST_" + strings.ToUpper(suffix)
	cfg.NATS.SubjectPrefix = "supplysim-test-" + suffix

	// 数秒のうちに取引が何周も完結するように周期を詰める
	cfg.Sim.Transport = config.TransportNATS
	cfg.Sim.Products = []string{"A", "B"}
	cfg.Sim.BuyPeriod = 200 * time.Millisecond
	cfg.Sim.ResupplyPeriod = 300 * time.Millisecond
	cfg.Sim.RetryPeriod = 500 * time.Millisecond
	cfg.Sim.BuyProbability = 1.0
	cfg.Protocol.CollectTimeout = 1 * time.Second
	cfg.Protocol.ConfirmTimeout = 2 * time.Second
	return cfg
}

// ------------------------------------------------------------
// コンテナ起動の共通関数
// ------------------------------------------------------------
func startGenericContainer(req testcontainers.ContainerRequest, timeoutSec int) (testcontainers.Container, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSec)*time.Second)
	defer cancel()

	return testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
		// Reuse: true, // Removed to enable proper cleanup by ryuk
	})
}

// ------------------------------------------------------------
// PostgreSQLコンテナを一度だけ起動／再利用
// ------------------------------------------------------------
func startPostgreSQLContainerOnce(t *testing.T) {
	postgresContainerOnce.Do(func() {
		// testcontainers Docker-in-Docker configuration
		// Note: RYUK is enabled for proper cleanup in local development

		req := testcontainers.ContainerRequest{
			Image:        "postgres:17",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     testUser,
				"POSTGRES_PASSWORD": testPassword,
				"POSTGRES_DB":       "postgres",
			},
			Tmpfs: map[string]string{
				"/var/lib/postgresql/data": "rw,size=512m", // PostgreSQLデータをRAMに載せてI/O削減
			},
			Cmd: []string{
				"postgres",
				"-c", "fsync=off", // 耐久性よりパフォーマンスを優先
				"-c", "full_page_writes=off", // フルページ書き込み無効
				"-c", "synchronous_commit=off", // 同期コミット無効
				"-c", "max_wal_size=512MB", // WALファイルサイズ上限
				"-c", "checkpoint_completion_target=0.9", // チェックポイント完了目標時間
				"-c", "wal_buffers=16MB", // WALバッファ増量
				"-c", "shared_buffers=256MB", // 共有バッファ増量
				"-c", "max_connections=200", // 最大接続数
				"-c", "log_statement=none", // ログ無効化
				"-c", "log_duration=off", // 実行時間ログ無効
				"-c", "log_lock_waits=off", // ロック待ちログ無効
				"-c", "log_checkpoints=off", // チェックポイントログ無効
				"-c", "autovacuum=on", // オートバキューム有効
				"-c", "autovacuum_max_workers=2", // バキュームワーカー削減
			},
			WaitingFor: wait.ForSQL("5432/tcp", "pgx", func(host string, port nat.Port) string {
				return fmt.Sprintf("postgres://%s:%s@%s:%s/postgres?sslmode=disable",
					testUser, testPassword, host, port.Port())
			}).WithStartupTimeout(60 * time.Second),
			Name:   "postgres-e2e",
			Labels: map[string]string{"purpose": "e2e-tests"},
		}

		var err error
		postgresTestContainer, err = startGenericContainer(req, 180)
		require.NoError(t, err, "PostgreSQLコンテナの起動に失敗")

		// コンテナの手動クリーンアップを登録 (RYUK無効時用)
		t.Cleanup(func() {
			if postgresTestContainer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := postgresTestContainer.Terminate(ctx); err != nil {
					slog.Warn("PostgreSQLコンテナの終了に失敗しました", "error", err.Error())
				}
			}
		})
	})
}

// ------------------------------------------------------------
// NATSコンテナを一度だけ起動／再利用
// ------------------------------------------------------------
func startNATSContainerOnce(t *testing.T) {
	natsContainerOnce.Do(func() {
		req := testcontainers.ContainerRequest{
			Image:        "nats:2.10-alpine",
			ExposedPorts: []string{"4222/tcp"},
			Cmd: []string{
				"--jetstream",              // アーカイブ用ストリームを有効化
				"--store_dir", "/tmp/nats", // ファイルストレージはコンテナ内tmpへ
			},
			WaitingFor: wait.ForLog("Server is ready").
				WithStartupTimeout(30 * time.Second),
			Name:   "nats-e2e",
			Labels: map[string]string{"purpose": "e2e-tests"},
		}

		var err error
		natsTestContainer, err = startGenericContainer(req, 60)
		require.NoError(t, err, "NATSコンテナの起動に失敗")

		t.Cleanup(func() {
			if natsTestContainer != nil {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := natsTestContainer.Terminate(ctx); err != nil {
					slog.Warn("NATSコンテナの終了に失敗しました", "error", err.Error())
				}
			}
		})
	})
}

// ------------------------------------------------------------
// コンテナ関連の共通ユーティリティ関数
// ------------------------------------------------------------
func getContainerHostPort(c testcontainers.Container, port string) (ContainerInfo, error) {
	ctx := context.Background()
	mappedPort, err := c.MappedPort(ctx, nat.Port(port))
	if err != nil {
		return ContainerInfo{}, err
	}
	host, err := c.Host(ctx)
	if err != nil {
		return ContainerInfo{}, err
	}
	return ContainerInfo{Host: host, Port: mappedPort}, nil
}

// ------------------------------------------------------------
// シミュレーションE2Eスイートで共通のセットアップ
// ------------------------------------------------------------
type SimSharedSuite struct {
	suite.Suite
	Router *gin.Engine
	Config config.Config
}

func (s *SimSharedSuite) SetupSuite() {
	router, cfg := setupSimEnvironment(s.T())
	s.Router = router
	s.Config = cfg
	require.NotNil(s.T(), s.Router, "Routerのセットアップに失敗")
	require.NotEmpty(s.T(), s.Config, "Configの取得に失敗")
}

func (s *SimSharedSuite) SetupTest() {
	// The fleet keeps running between tests; every test reads live state
}

// ------------------------------------------------------------
// アーカイブE2Eスイートで共通のセットアップ
// ------------------------------------------------------------
type ArchiveSharedSuite struct {
	suite.Suite
	DB     *pgxpool.Pool // 各テストで使う DB 接続
	NC     *nats.Conn
	JS     jetstream.JetStream
	Config config.Config
}

func (s *ArchiveSharedSuite) SetupSuite() {
	pool, nc, js, cfg := setupArchiveEnvironment(s.T())
	s.DB = pool
	s.NC = nc
	s.JS = js
	s.Config = cfg
	require.NotNil(s.T(), s.DB, "DBのセットアップに失敗")
	require.NotNil(s.T(), s.JS, "JetStreamのセットアップに失敗")
}

func (s *ArchiveSharedSuite) SetupSubTest() {
	// Reset archive tables between subtests
	err := dbtest.ResetArchive(s.DB)
	require.NoError(s.T(), err, "Failed to reset archive tables")
}
