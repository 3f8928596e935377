package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments and have no safe default
// - default: Values common across all environments (timeouts, simulation
//   parameters, etc.), standard settings
// -----------------------------------------------------------------------------

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	NATS     NATSConfig
	CORS     CORSConfig
	Log      LogConfig
	Protocol ProtocolConfig
	Sim      SimConfig
}

type ServerConfig struct {
	Port    string `envconfig:"PORT" default:"8088"`
	History int    `envconfig:"STATS_HISTORY" default:"256"`
}

// DBConfig is only consumed by the archive worker; the simulation itself
// never touches a database.
type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"supplysim"`
	Password string `envconfig:"DB_PASSWORD" default:"supplysim"`
	DBName   string `envconfig:"DB_NAME" default:"supplysim"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	TimeZone string `envconfig:"DB_TIMEZONE" default:"Asia/Tokyo"`
}

type NATSConfig struct {
	URL           string `envconfig:"NATS_URL" default:"nats://127.0.0.1:4222"`
	Stream        string `envconfig:"NATS_STREAM" default:"SUPPLYSIM_EVENTS"`
	SubjectPrefix string `envconfig:"NATS_SUBJECT_PREFIX" default:"supplysim"`
	Consumer      string `envconfig:"NATS_CONSUMER" default:"archive-worker"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level          string `envconfig:"LOG_LEVEL" default:"info"`
	TimeZone       string `envconfig:"LOG_TIMEZONE" default:"Asia/Tokyo"`
	TimeFormat     string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
	TimeZoneOffset int    `envconfig:"LOG_TIMEZONE_OFFSET" default:"32400"` // 9*60*60
}

// ProtocolConfig carries the negotiation deadlines shared by every actor.
type ProtocolConfig struct {
	CollectTimeout time.Duration `envconfig:"COLLECT_TIMEOUT" default:"5s"`
	ConfirmTimeout time.Duration `envconfig:"CONFIRM_TIMEOUT" default:"10s"`
	RetryQueueSize int           `envconfig:"RETRY_QUEUE_SIZE" default:"256"`
	EventBuffer    int           `envconfig:"EVENT_BUFFER" default:"256"`
}

// Values accepted by SimConfig.Transport.
const (
	TransportInproc = "inproc"
	TransportNATS   = "nats"
)

type SimConfig struct {
	Products          []string      `envconfig:"SIM_PRODUCTS" default:"A,B,C,D"`
	Stores            int           `envconfig:"SIM_STORES" default:"2"`
	Warehouses        int           `envconfig:"SIM_WAREHOUSES" default:"2"`
	Suppliers         int           `envconfig:"SIM_SUPPLIERS" default:"2"`
	WarehouseCapacity int           `envconfig:"SIM_WAREHOUSE_CAPACITY" default:"80"`
	ResupplyThreshold int           `envconfig:"SIM_RESUPPLY_THRESHOLD" default:"20"`
	StoreMaxQuantity  int           `envconfig:"SIM_STORE_MAX_QUANTITY" default:"20"`
	BuyPeriod         time.Duration `envconfig:"SIM_BUY_PERIOD" default:"5s"`
	BuyProbability    float64       `envconfig:"SIM_BUY_PROBABILITY" default:"0.6"`
	ResupplyPeriod    time.Duration `envconfig:"SIM_RESUPPLY_PERIOD" default:"5s"`
	RetryPeriod       time.Duration `envconfig:"SIM_RETRY_PERIOD" default:"5s"`
	GridWidth         int           `envconfig:"SIM_GRID_WIDTH" default:"5"`
	GridHeight        int           `envconfig:"SIM_GRID_HEIGHT" default:"5"`
	Seed              int64         `envconfig:"SIM_SEED" default:"0"` // 0 = seed from wall clock
	Transport         string        `envconfig:"SIM_TRANSPORT" default:"inproc"` // inproc | nats
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s&timezone=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode, c.TimeZone,
	)
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port:    "8889", // Test port
			History: 64,
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433", // Test DB port
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
			TimeZone: "Asia/Tokyo",
		},
		NATS: NATSConfig{
			URL:           "nats://127.0.0.1:14222",
			Stream:        "SUPPLYSIM_EVENTS_TEST",
			SubjectPrefix: "supplysim-test",
			Consumer:      "archive-worker-test",
		},
		Log: LogConfig{
			Level:          "error", // Error level only for tests
			TimeZone:       "Asia/Tokyo",
			TimeFormat:     "2006-01-02 15:04:05.000",
			TimeZoneOffset: 32400,
		},
		Protocol: ProtocolConfig{
			CollectTimeout: 5 * time.Second,
			ConfirmTimeout: 10 * time.Second,
			RetryQueueSize: 16,
			EventBuffer:    16,
		},
		Sim: SimConfig{
			Products:          []string{"A", "B", "C", "D"},
			Stores:            2,
			Warehouses:        2,
			Suppliers:         2,
			WarehouseCapacity: 80,
			ResupplyThreshold: 20,
			StoreMaxQuantity:  20,
			BuyPeriod:         5 * time.Second,
			BuyProbability:    0.6,
			ResupplyPeriod:    5 * time.Second,
			RetryPeriod:       5 * time.Second,
			GridWidth:         5,
			GridHeight:        5,
			Seed:              1,
			Transport:         TransportInproc,
		},
	}
}
