package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/shopspring/decimal"
)

// DevGuestCartSecret is only meant for local runs.
const DevGuestCartSecret = "dev-guest-cart-secret"

type Config struct {
	HTTPPort           string        `env:"HTTP_PORT" envDefault:"8080"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout    time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	MaxRequestBodySize int64         `env:"MAX_REQUEST_BODY_SIZE" envDefault:"1048576"`

	DBDriver       string `env:"DB_DRIVER" envDefault:"postgres"`
	DBHost         string `env:"DB_HOST" envDefault:"localhost"`
	DBPort         int    `env:"DB_PORT" envDefault:"5432"`
	DBUser         string `env:"DB_USER" envDefault:"postgres"`
	DBPassword     string `env:"DB_PASSWORD" envDefault:"postgres"`
	DBName         string `env:"DB_NAME" envDefault:"storefront"`
	SQLitePath     string `env:"SQLITE_PATH" envDefault:"storefront.db"`
	MigrationsPath string `env:"MIGRATIONS_PATH" envDefault:"internal/repository/migrations"`

	RedisAddr     string        `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisPassword string        `env:"REDIS_PASSWORD"`
	CartTTL       time.Duration `env:"CART_TTL" envDefault:"0s"`

	KafkaBrokers []string      `env:"KAFKA_BROKERS" envSeparator:"," envDefault:"localhost:9092"`
	KafkaTopic   string        `env:"KAFKA_TOPIC" envDefault:"order-events"`
	OutboxTick   time.Duration `env:"OUTBOX_TICK" envDefault:"1s"`

	GuestCartSecret string        `env:"GUEST_CART_SECRET" envDefault:"dev-guest-cart-secret"`
	GuestCartTTL    time.Duration `env:"GUEST_CART_TTL" envDefault:"336h"`

	Freight            decimal.Decimal `env:"FREIGHT" envDefault:"10.00"`
	ReserveMaxAttempts int             `env:"RESERVE_MAX_ATTEMPTS" envDefault:"300"`
	ReserveMaxWait     time.Duration   `env:"RESERVE_MAX_WAIT" envDefault:"500ms"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads the environment and validates the result.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.DBDriver != "postgres" && c.DBDriver != "sqlite" {
		errs = append(errs, fmt.Errorf("DB_DRIVER must be postgres or sqlite, got %q", c.DBDriver))
	}
	if c.ReserveMaxAttempts < 1 {
		errs = append(errs, errors.New("RESERVE_MAX_ATTEMPTS must be positive"))
	}
	if c.ReserveMaxWait <= 0 {
		errs = append(errs, errors.New("RESERVE_MAX_WAIT must be positive"))
	}
	if c.Freight.IsNegative() {
		errs = append(errs, errors.New("FREIGHT must not be negative"))
	}
	if c.GuestCartSecret == "" {
		errs = append(errs, errors.New("GUEST_CART_SECRET must not be empty"))
	}
	if c.CartTTL < 0 {
		errs = append(errs, errors.New("CART_TTL must not be negative"))
	}
	return errors.Join(errs...)
}

// MigrationsDir is the dialect specific directory under MigrationsPath.
func (c *Config) MigrationsDir() string {
	return c.MigrationsPath + "/" + c.DBDriver
}
