package config

import (
	"os"
	"time"

	"github.com/sswpa/box-office/internal/util"
)

type Config struct {
	Addr        string
	DatabaseDSN string
	CacheURL    string
	MQURL       string

	// AdminSecret guards the admin surface. There are no per-user
	// accounts; the whole management view shares this one secret.
	AdminSecret string

	Currency      string
	OrderExpiry   time.Duration
	SweepInterval time.Duration
	CatalogTTL    time.Duration

	Square SquareConfig
	SMTP   SMTPConfig
}

// SquareConfig selects credentials from either a literal token (local
// development) or a token file mounted by the secret manager. Exactly
// one of AccessToken/AccessTokenFile should be set.
type SquareConfig struct {
	BaseURL         string
	AccessToken     string
	AccessTokenFile string
	Timeout         time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
}

func LoadConfig() (*Config, error) {
	if err := util.LoadEnv(); err != nil {
		return nil, err
	}
	return &Config{
		Addr:          getenv("ADDR", ":8080"),
		DatabaseDSN:   os.Getenv("DATABASE_DSN"),
		CacheURL:      os.Getenv("CACHE_URL"),
		MQURL:         os.Getenv("RABBIT_MQ_URL"),
		AdminSecret:   os.Getenv("ADMIN_SECRET"),
		Currency:      getenv("CURRENCY", "USD"),
		OrderExpiry:   getdur("ORDER_EXPIRY", time.Hour),
		SweepInterval: getdur("SWEEP_INTERVAL", 5*time.Minute),
		CatalogTTL:    getdur("CATALOG_CACHE_TTL", 30*time.Second),
		Square: SquareConfig{
			BaseURL:         getenv("SQUARE_BASE_URL", "https://connect.squareupsandbox.com"),
			AccessToken:     os.Getenv("SQUARE_ACCESS_TOKEN"),
			AccessTokenFile: os.Getenv("SQUARE_ACCESS_TOKEN_FILE"),
			Timeout:         getdur("SQUARE_TIMEOUT", 30*time.Second),
		},
		SMTP: SMTPConfig{
			Host:     os.Getenv("SMTP_HOST"),
			Port:     getenv("SMTP_PORT", "587"),
			From:     os.Getenv("SMTP_FROM"),
			Password: os.Getenv("SMTP_PASSWORD"),
		},
	}, nil
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getdur(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
