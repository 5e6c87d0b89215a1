package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go-simpler.org/env"
)

type Config struct {
	AppEnv    string `env:"APP_ENV" default:"development"`
	Port      string `env:"PORT" default:"8000"`
	AppURL    string `env:"APP_URL" default:"http://localhost:8000"`
	LogLevel  string `env:"LOG_LEVEL" default:"info"`
	LogFormat string `env:"LOG_FORMAT" default:"text"`

	// Comma-separated origins of nursing-station displays allowed to subscribe besides APP_URL.
	ExtraOrigins string `env:"EXTRA_ALLOWED_ORIGINS"`

	VitalsFile        string        `env:"VITALS_FILE" default:"data/mock/vitales/vital_signs_data.json"`
	TickInterval      time.Duration `env:"TICK_INTERVAL" default:"5s"`
	PersistInterval   time.Duration `env:"PERSIST_INTERVAL" default:"30s"`
	SimulationEnabled bool          `env:"SIMULATION_ENABLED" default:"true"`

	MaxWebSocketConnections      int     `env:"MAX_WEBSOCKET_CONNECTIONS" default:"500"`
	MaxWebSocketConnectionsPerIP int     `env:"MAX_WEBSOCKET_CONNECTIONS_PER_IP" default:"20"`
	WebSocketConnectRate         float64 `env:"WEBSOCKET_CONNECT_RATE" default:"5"`
	WebSocketConnectBurst        int     `env:"WEBSOCKET_CONNECT_BURST" default:"10"`
	APIRateLimit                 float64 `env:"API_RATE_LIMIT" default:"20"`
	APIRateBurst                 int     `env:"API_RATE_BURST" default:"40"`

	RedisURL          string `env:"REDIS_URL"`
	AlertStream       string `env:"ALERT_STREAM" default:"vitals:alerts"`
	AlertStreamMaxLen int64  `env:"ALERT_STREAM_MAXLEN" default:"10000"`

	DatabaseURL string `env:"DATABASE_URL"`
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// AllowedOrigins returns the trimmed, non-empty entries of EXTRA_ALLOWED_ORIGINS.
func (c *Config) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.ExtraOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Info("No .env file found, using environment variables")
	}

	var cfg Config
	if err := env.Load(&cfg, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func validate(cfg *Config) error {
	if cfg.TickInterval <= 0 {
		return errors.New("TICK_INTERVAL must be positive")
	}
	if cfg.PersistInterval <= 0 {
		return errors.New("PERSIST_INTERVAL must be positive")
	}
	if cfg.PersistInterval < cfg.TickInterval {
		return fmt.Errorf("PERSIST_INTERVAL (%s) must not be shorter than TICK_INTERVAL (%s)", cfg.PersistInterval, cfg.TickInterval)
	}

	positive := map[string]int{
		"MAX_WEBSOCKET_CONNECTIONS":        cfg.MaxWebSocketConnections,
		"MAX_WEBSOCKET_CONNECTIONS_PER_IP": cfg.MaxWebSocketConnectionsPerIP,
		"WEBSOCKET_CONNECT_BURST":          cfg.WebSocketConnectBurst,
		"API_RATE_BURST":                   cfg.APIRateBurst,
	}
	for name, value := range positive {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if cfg.WebSocketConnectRate <= 0 || cfg.APIRateLimit <= 0 {
		return errors.New("WEBSOCKET_CONNECT_RATE and API_RATE_LIMIT must be positive")
	}

	if cfg.LogFormat != "text" && cfg.LogFormat != "json" {
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", cfg.LogFormat)
	}
	if cfg.VitalsFile == "" {
		return errors.New("VITALS_FILE is required")
	}

	for _, o := range cfg.AllowedOrigins() {
		u, err := url.Parse(o)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("EXTRA_ALLOWED_ORIGINS entry %q must be scheme://host[:port]", o)
		}
	}

	if cfg.RedisURL != "" {
		if cfg.AlertStream == "" {
			return errors.New("ALERT_STREAM is required when REDIS_URL is set")
		}
		if cfg.AlertStreamMaxLen <= 0 {
			return errors.New("ALERT_STREAM_MAXLEN must be positive")
		}
	}

	if cfg.DatabaseURL != "" && cfg.IsProduction() {
		if err := requireSecureSSL(cfg.DatabaseURL); err != nil {
			return err
		}
	}

	return nil
}

func requireSecureSSL(databaseURL string) error {
	u, err := url.Parse(databaseURL)
	if err != nil {
		return fmt.Errorf("DATABASE_URL is not a valid URL: %w", err)
	}
	mode := strings.ToLower(u.Query().Get("sslmode"))
	if mode == "disable" || mode == "allow" {
		return fmt.Errorf("DATABASE_URL uses sslmode=%s which is not allowed in production", mode)
	}
	return nil
}
