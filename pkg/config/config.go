package config

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the server configuration. Values come from the environment
// (optionally seeded from .env files) and can be overridden by flags.
type Config struct {
	DatabaseURL   string        `env:"DATABASE_URL" envDefault:"sqlite://progression.db" validate:"required"`
	MigrationsDir string        `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	APIPort       int           `env:"API_PORT" envDefault:"8080" validate:"min=1,max=65535"`
	AuthPort      int           `env:"AUTH_PORT" envDefault:"8081" validate:"min=1,max=65535"`
	WSPort        int           `env:"WS_PORT" envDefault:"8888" validate:"min=1,max=65535"`
	LogLevel      string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=error warn info debug trace"`
	JWTSecret     string        `env:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL      time.Duration `env:"TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	// TLS is used by every listener when both files are set.
	TLSCertFile string `env:"TLS_CERT_FILE" validate:"required_with=TLSKeyFile"`
	TLSKeyFile  string `env:"TLS_KEY_FILE" validate:"required_with=TLSCertFile"`
	// CoinPickupValue is credited for every collect message.
	CoinPickupValue int64         `env:"COIN_PICKUP_VALUE" envDefault:"10" validate:"gt=0"`
	SaveInterval    time.Duration `env:"SAVE_INTERVAL" envDefault:"5s" validate:"gt=0"`
}

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "PROGRESSION_"

// Load reads .env files, if present, then the environment, then args, and
// validates the result.
func Load(args []string, envFiles ...string) (*Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %v", f, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	flags := flag.NewFlagSet("progsync", flag.ContinueOnError)
	flags.StringVar(&cfg.DatabaseURL, "database-url", cfg.DatabaseURL, "Database URL (sqlite://, postgresql://, memory://)")
	flags.StringVar(&cfg.MigrationsDir, "migrations", cfg.MigrationsDir, "Migrations directory")
	flags.IntVar(&cfg.APIPort, "api-port", cfg.APIPort, "HTTP API port to listen on")
	flags.IntVar(&cfg.AuthPort, "auth-port", cfg.AuthPort, "Auth port to listen on")
	flags.IntVar(&cfg.WSPort, "ws-port", cfg.WSPort, "Websocket port to listen on")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level")
	if err := flags.Parse(args); err != nil {
		return nil, fmt.Errorf("failed to parse flags: %v", err)
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
