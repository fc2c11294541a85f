package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

type Postgres struct {
	Host           string `env:"HOST" envDefault:"localhost"`
	Port           int    `env:"PORT" envDefault:"5432"`
	User           string `env:"USER" envDefault:"postgres"`
	Password       string `env:"PASSWORD" envDefault:"postgres"`
	Name           string `env:"NAME" envDefault:"sneakpeak"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"./internal/repository/migrations"`
}

type Mongo struct {
	URI      string `env:"URI" envDefault:"mongodb://localhost:27017"`
	Database string `env:"DB_NAME" envDefault:"sneakpeak"`
}

type Redis struct {
	Addr     string `env:"ADDR" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
}

type Kafka struct {
	Brokers []string `env:"BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	Topic   string   `env:"TOPIC" envDefault:"cart-events"`
	GroupID string   `env:"GROUP_ID" envDefault:"cart-projector"`
}

type Stripe struct {
	SecretKey  string        `env:"SECRET_KEY"`
	SuccessURL string        `env:"SUCCESS_URL" envDefault:"http://localhost:5173/checkout/success/{reference}"`
	CancelURL  string        `env:"CANCEL_URL" envDefault:"http://localhost:5173/checkout/cancel/{reference}"`
	Currency   string        `env:"CURRENCY" envDefault:"eur"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"30m"`
}

type Outbox struct {
	PollInterval time.Duration `env:"POLL_INTERVAL" envDefault:"1s"`
	BatchSize    int           `env:"BATCH_SIZE" envDefault:"100"`
	MaxAttempts  int           `env:"MAX_ATTEMPTS" envDefault:"10"`
	Lease        time.Duration `env:"LEASE" envDefault:"30s"`
}

// Config is shared by the api and projector binaries.
type Config struct {
	HTTPPort        string        `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout  time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	CallTimeout     time.Duration `env:"CALL_TIMEOUT" envDefault:"5s"`
	CartWindow      time.Duration `env:"CART_WINDOW" envDefault:"15m"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT"`
	MapsAPIKey      string        `env:"GOOGLE_MAPS_API_KEY"`

	Postgres Postgres `envPrefix:"DB_"`
	Mongo    Mongo    `envPrefix:"MONGO_"`
	Redis    Redis    `envPrefix:"REDIS_"`
	Kafka    Kafka    `envPrefix:"KAFKA_"`
	Stripe   Stripe   `envPrefix:"STRIPE_"`
	Outbox   Outbox   `envPrefix:"OUTBOX_"`
}

// Load reads an optional .env file and parses the environment into a Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	if err := godotenv.Load(files...); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
		slog.Debug("no .env file found, using process environment")
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}
