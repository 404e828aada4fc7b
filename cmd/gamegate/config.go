package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/kalrey/gamegate/pkg/keypool"
)

// config holds the daemon configuration, loaded from the environment.
// A local .env file is honored when present; real deployments set the
// variables directly.
type config struct {
	Port int `env:"PORT" envDefault:"8080"`

	// RedisURL accepts redis:// and rediss:// connection URLs.
	RedisURL string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`

	// UpstreamURL is the game-data API root every fetch goes to.
	UpstreamURL string `env:"UPSTREAM_URL,required"`
	UserAgent   string `env:"USER_AGENT" envDefault:"gamegate/0.1.0"`

	// APIKeys lists the credential pool as comma-separated id:secret pairs,
	// e.g. "main:RGAPI-xxx,backup:RGAPI-yyy".
	APIKeys string `env:"API_KEYS,required"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"false"`

	// Upstream admission windows. The defaults match the development tier
	// of the upstream quota: 20 per second and 100 per 2 minutes.
	ShortCapacity int           `env:"RATE_SHORT_CAPACITY" envDefault:"20"`
	ShortLength   time.Duration `env:"RATE_SHORT_LENGTH" envDefault:"1s"`
	LongCapacity  int           `env:"RATE_LONG_CAPACITY" envDefault:"100"`
	LongLength    time.Duration `env:"RATE_LONG_LENGTH" envDefault:"2m"`

	// Inbound per-client protection for the daemon itself.
	InboundRPS   float64 `env:"INBOUND_RPS" envDefault:"50"`
	InboundBurst int     `env:"INBOUND_BURST" envDefault:"100"`

	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// loadConfig reads the optional .env file and parses the environment.
func loadConfig() (config, error) {
	_ = godotenv.Load()

	var cfg config
	if err := env.Parse(&cfg); err != nil {
		return config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// parseCredentials turns the API_KEYS value into the credential pool.
// Secrets never appear in errors; malformed entries are reported by
// position only.
func parseCredentials(value string) ([]keypool.Credential, error) {
	var creds []keypool.Credential

	for i, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}

		id, secret, ok := strings.Cut(entry, ":")
		if !ok || id == "" || secret == "" {
			return nil, fmt.Errorf("api key entry %d: want id:secret", i+1)
		}

		creds = append(creds, keypool.Credential{
			ID:     strings.TrimSpace(id),
			Secret: strings.TrimSpace(secret),
		})
	}

	if len(creds) == 0 {
		return nil, fmt.Errorf("API_KEYS holds no credentials")
	}
	return creds, nil
}
