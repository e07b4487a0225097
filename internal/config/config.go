package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Backend  BackendConfig
	Session  SessionConfig
	Cookie   CookieConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Mail     MailConfig
}

type ServerConfig struct {
	Port           string        `env:"PORT" envDefault:"8080"`
	Env            string        `env:"ENV" envDefault:"development"`
	LogLevel       string        `env:"LOG_LEVEL" envDefault:"info"`
	AllowedOrigins []string      `env:"ALLOWED_ORIGINS" envSeparator:","`
	TrustedProxies []string      `env:"TRUSTED_PROXIES" envSeparator:","`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT" envDefault:"60s"`
	IPRateLimit    int           `env:"IP_RATE_LIMIT" envDefault:"30"` // auth requests per IP per minute
}

type BackendConfig struct {
	URL               string        `env:"BACKEND_URL,required,notEmpty"`
	Timeout           time.Duration `env:"BACKEND_TIMEOUT" envDefault:"30s"`
	RequestsPerSecond float64       `env:"BACKEND_RPS" envDefault:"50"`
	Burst             int           `env:"BACKEND_BURST" envDefault:"100"`
	TokenSecret       string        `env:"TOKEN_SECRET"` // verifies backend tokens when set
}

type SessionConfig struct {
	IdleTimeout     time.Duration `env:"SESSION_IDLE_TIMEOUT" envDefault:"30m"`
	WarningBefore   time.Duration `env:"SESSION_WARNING_BEFORE" envDefault:"5m"`
	TimeoutEnabled  bool          `env:"SESSION_TIMEOUT_ENABLED" envDefault:"true"`
	AnonymousTTL    time.Duration `env:"SESSION_ANONYMOUS_TTL" envDefault:"2h"`
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
}

type CookieConfig struct {
	Name     string        `env:"COOKIE_NAME" envDefault:"sv_session"`
	Domain   string        `env:"COOKIE_DOMAIN"`
	Secure   bool          `env:"COOKIE_SECURE" envDefault:"true"`
	SameSite string        `env:"COOKIE_SAMESITE" envDefault:"lax"`
	MaxAge   time.Duration `env:"COOKIE_MAX_AGE" envDefault:"24h"`
	Secret   string        `env:"SESSION_SECRET"` // signs session cookies; random per process when unset
}

// StorageConfig selects where rate limiter state is persisted
type StorageConfig struct {
	Backend string `env:"ATTEMPT_STORE" envDefault:"memory"` // memory, postgres or redis
}

type DatabaseConfig struct {
	URL             string        `env:"DATABASE_URL"`
	MaxConns        int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int32         `env:"DB_MIN_CONNS" envDefault:"1"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"5m"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"1m"`
}

type RedisConfig struct {
	Addr      string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	Password  string `env:"REDIS_PASSWORD"`
	DB        int    `env:"REDIS_DB" envDefault:"0"`
	KeyPrefix string `env:"REDIS_KEY_PREFIX" envDefault:"serenvoice:"`
}

type MailConfig struct {
	Provider  string `env:"MAIL_PROVIDER" envDefault:"log"` // log, ses or smtp
	From      string `env:"MAIL_FROM" envDefault:"no-reply@serenvoice.app"`
	To        string `env:"CONTACT_INBOX" envDefault:"soporte@serenvoice.app"`
	AWSRegion string `env:"AWS_REGION" envDefault:"us-east-1"`
	SMTPHost  string `env:"SMTP_HOST"`
	SMTPPort  int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser  string `env:"SMTP_USER"`
	SMTPPass  string `env:"SMTP_PASS"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if len(cfg.Server.AllowedOrigins) == 0 {
		cfg.Server.AllowedOrigins = defaultAllowedOrigins(cfg.Server.Env)
	}
	for i, origin := range cfg.Server.AllowedOrigins {
		cfg.Server.AllowedOrigins[i] = strings.TrimSpace(origin)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Session.IdleTimeout <= 0 {
		return fmt.Errorf("SESSION_IDLE_TIMEOUT must be positive")
	}
	if c.Session.WarningBefore < 0 || c.Session.WarningBefore >= c.Session.IdleTimeout {
		return fmt.Errorf("SESSION_WARNING_BEFORE must be between 0 and SESSION_IDLE_TIMEOUT")
	}

	switch c.Storage.Backend {
	case "memory", "redis":
	case "postgres":
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required when ATTEMPT_STORE=postgres")
		}
	default:
		return fmt.Errorf("ATTEMPT_STORE must be memory, postgres or redis (got %q)", c.Storage.Backend)
	}

	switch c.Mail.Provider {
	case "log", "ses":
	case "smtp":
		if c.Mail.SMTPHost == "" {
			return fmt.Errorf("SMTP_HOST is required when MAIL_PROVIDER=smtp")
		}
	default:
		return fmt.Errorf("MAIL_PROVIDER must be log, ses or smtp (got %q)", c.Mail.Provider)
	}

	switch strings.ToLower(c.Cookie.SameSite) {
	case "strict", "lax", "none":
	default:
		return fmt.Errorf("COOKIE_SAMESITE must be strict, lax or none")
	}

	if c.Server.Env == "production" {
		if !c.Cookie.Secure {
			return fmt.Errorf("COOKIE_SECURE must be enabled in production")
		}
		if len(c.Cookie.Secret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 characters in production (got %d)", len(c.Cookie.Secret))
		}
		if c.Backend.TokenSecret != "" && len(c.Backend.TokenSecret) < 32 {
			return fmt.Errorf("TOKEN_SECRET must be at least 32 characters in production (got %d)", len(c.Backend.TokenSecret))
		}
	}

	return nil
}

// defaultAllowedOrigins allows local dev servers outside production
func defaultAllowedOrigins(env string) []string {
	if env == "production" {
		return []string{}
	}
	return []string{
		"http://localhost:3000",
		"http://localhost:5173", // Vite default
		"http://localhost:8081", // Expo web
		"http://127.0.0.1:3000",
		"http://127.0.0.1:5173",
	}
}
