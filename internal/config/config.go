package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	_ "github.com/joho/godotenv/autoload"
	"github.com/shopspring/decimal"
)

const (
	StoreSQLite   = "sqlite"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Config struct {
	Port   int    `env:"PORT" envDefault:"8080"`
	AppEnv string `env:"APP_ENV" envDefault:"local"`

	Store      string `env:"STORE_DRIVER" envDefault:"sqlite"`
	SQLitePath string `env:"SQLITE_PATH" envDefault:"scrazino.db"`

	Redis          Redis    `envPrefix:"REDIS_"`
	Postgres       Postgres `envPrefix:"BLUEPRINT_DB_"`
	MigrationsPath string   `env:"MIGRATIONS_PATH" envDefault:"./internal/database/migrations"`
	Wallet         Wallet
	Games          Games
	Log            Log `envPrefix:"LOG_"`
}

type Redis struct {
	Addr     string `env:"URL" envDefault:"localhost:6379"`
	Password string `env:"PASSWORD"`
	DB       int    `env:"DB" envDefault:"0"`
}

type Postgres struct {
	Host     string `env:"HOST" envDefault:"localhost"`
	Port     string `env:"PORT" envDefault:"5432"`
	Database string `env:"DATABASE" envDefault:"scrazino"`
	Username string `env:"USERNAME" envDefault:"postgres"`
	Password string `env:"PASSWORD" envDefault:"postgres"`
	Schema   string `env:"SCHEMA" envDefault:"public"`
}

// DSN returns a pgx-compatible connection URL.
func (p Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		p.Username, p.Password, p.Host, p.Port, p.Database, p.Schema)
}

type Wallet struct {
	InitialBalance decimal.Decimal `env:"INITIAL_BALANCE" envDefault:"1000"`
	MaxDeposit     decimal.Decimal `env:"MAX_DEPOSIT" envDefault:"10000"`
	CurrencySymbol string          `env:"CURRENCY_SYMBOL" envDefault:"₽"`
}

type Games struct {
	RulesFile   string        `env:"GAMES_CONFIG"`
	RevealDelay time.Duration `env:"REVEAL_DELAY" envDefault:"1s"`
	RNGMode     string        `env:"RNG_MODE" envDefault:"math"`
}

type Log struct {
	Level string `env:"LEVEL" envDefault:"info"`
	Dir   string `env:"DIR" envDefault:"logs"`
	File  bool   `env:"FILE" envDefault:"false"`
}

// Load parses the process environment (after .env autoload) into a Config.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Store {
	case StoreSQLite, StoreRedis, StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.Store)
	}
	if c.Wallet.InitialBalance.IsNegative() {
		return fmt.Errorf("INITIAL_BALANCE must not be negative")
	}
	if !c.Wallet.MaxDeposit.IsPositive() {
		return fmt.Errorf("MAX_DEPOSIT must be positive")
	}
	if c.Games.RevealDelay < 0 {
		return fmt.Errorf("REVEAL_DELAY must not be negative")
	}
	return nil
}

// IsProduction reports whether file logging and stricter defaults apply.
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}
