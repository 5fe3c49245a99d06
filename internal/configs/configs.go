/*
Package configs is responsible for loading and parsing the application's configuration settings.

It configures server parameters by reading operating system environment variables (optionally
seeded from a .env file by the caller), including the running environment, port, CORS allowed
origins, the room catalog, liveness timings and rate limits.
*/
package configs

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/samber/lo"
)

// DefaultRooms is the room catalog used when ROOMS is unset.
const DefaultRooms = "General,Sports,Tech,Music,Gaming"

// AppConfig contains all configuration parameters required for the application to run.
// All configuration values are loaded from environment variables.
type AppConfig struct {
	// General Server Settings
	Environment string `env:"ENVIRONMENT,default=development"`
	Port        int    `env:"PORT,default=3000"`
	StaticDir   string `env:"STATIC_DIR"`
	LogLevel    string `env:"LOG_LEVEL"`

	// Security Settings
	AllowedOriginsRaw string `env:"ALLOWED_ORIGINS"`
	AllowedOrigins    []string

	// Room catalog, comma separated
	RoomsRaw string `env:"ROOMS"`
	Rooms    []string

	// Liveness Settings
	StaleThreshold time.Duration `env:"STALE_THRESHOLD,default=5m"`
	SweepInterval  time.Duration `env:"SWEEP_INTERVAL,default=1m"`

	// Rate Limit Settings
	MessageRate  float64 `env:"MESSAGE_RATE,default=5"`
	MessageBurst int     `env:"MESSAGE_BURST,default=10"`
	ConnectRate  float64 `env:"CONNECT_RATE,default=1"`
	ConnectBurst int     `env:"CONNECT_BURST,default=5"`

	// Shutdown Settings
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=5s"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// LoadConfig reads and parses the application configuration from environment variables.
// It applies default values, splits list settings and validates ranges.
func LoadConfig() (*AppConfig, error) {
	cfg := &AppConfig{}

	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, fmt.Errorf("invalid environment: %w", err)
	}

	// an empty variable counts as unset so the default applies
	for key, value := range es {
		if strings.TrimSpace(value) == "" {
			delete(es, key)
		}
	}

	if err := env.Unmarshal(es, cfg); err != nil {
		return nil, fmt.Errorf("invalid environment configuration: %w", err)
	}

	// --- List Settings ---
	cfg.AllowedOrigins = splitList(cfg.AllowedOriginsRaw)

	if strings.TrimSpace(cfg.RoomsRaw) == "" {
		cfg.RoomsRaw = DefaultRooms
	}
	cfg.Rooms = lo.Uniq(splitList(cfg.RoomsRaw))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, 1024, 65535)
	}

	if len(c.Rooms) == 0 {
		return fmt.Errorf("ROOMS must name at least one room")
	}

	if c.StaleThreshold <= 0 {
		return fmt.Errorf("STALE_THRESHOLD must be positive, got %s", c.StaleThreshold)
	}
	if c.SweepInterval <= 0 {
		return fmt.Errorf("SWEEP_INTERVAL must be positive, got %s", c.SweepInterval)
	}
	if c.ShutdownTimeout <= 0 {
		return fmt.Errorf("SHUTDOWN_TIMEOUT must be positive, got %s", c.ShutdownTimeout)
	}

	if c.MessageRate <= 0 || c.MessageBurst <= 0 {
		return fmt.Errorf("MESSAGE_RATE and MESSAGE_BURST must be positive")
	}
	if c.ConnectRate <= 0 || c.ConnectBurst <= 0 {
		return fmt.Errorf("CONNECT_RATE and CONNECT_BURST must be positive")
	}

	return nil
}

// splitList splits a comma separated value, trimming entries and dropping empty ones.
func splitList(raw string) []string {
	return lo.FilterMap(strings.Split(raw, ","), func(item string, _ int) (string, bool) {
		trimmed := strings.TrimSpace(item)
		return trimmed, trimmed != ""
	})
}
