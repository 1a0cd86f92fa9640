package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const Production = "production"

type Config struct {
	Port               string        `env:"PORT" envDefault:"8080"`
	DatabaseURL        string        `env:"DATABASE_URL" envDefault:"file:db.sqlite"`
	AppEnv             string        `env:"APP_ENV" envDefault:"local"`
	BaseURL            string        `env:"BASE_URL" envDefault:"http://localhost:8080"`
	GoogleClientID     string        `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string        `env:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURL  string        `env:"GOOGLE_REDIRECT_URL" envDefault:"http://localhost:8080/auth/google/callback"`
	JWTSecret          string        `env:"JWT_SECRET" envDefault:"secret"`
	FrontendURL        string        `env:"FRONTEND_URL" envDefault:"http://localhost:8080/dashboard"`
	AllowedEmails      []string      `env:"ALLOWED_EMAILS" envSeparator:","`
	AdminEmails        []string      `env:"ADMIN_EMAILS" envSeparator:","`
	RedisURL           string        `env:"REDIS_URL"` // profile cache disabled when empty
	ProfileCacheTTL    time.Duration `env:"PROFILE_CACHE_TTL" envDefault:"10m"`
	VisitSalt          string        `env:"VISIT_SALT" envDefault:"linkpage"`
	LogLevel           string        `env:"LOG_LEVEL" envDefault:"info"`
	CORSOrigins        []string      `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`
}

func Load() (*Config, error) {
	_ = godotenv.Load() // Ignore error if .env not found (e.g. prod)
	return Parse()
}

// Parse reads the configuration from the process environment only
func Parse() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if cfg.ProfileCacheTTL <= 0 {
		return nil, errors.Errorf("PROFILE_CACHE_TTL must be positive, got %s", cfg.ProfileCacheTTL)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == Production
}
