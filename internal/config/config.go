package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"chatelly/internal/content"
	"chatelly/internal/session"
	"chatelly/internal/ws"
)

type Config struct {
	WidgetHost   string
	WidgetScheme string
	WidgetKey    string
	ConsoleAddr  string
	ArchiveDB    string

	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
}

// Load reads the configuration from the environment. A non-empty widgetKey
// takes precedence over WIDGET_KEY. In cliMode no widget is contacted, so the
// key may be missing.
func Load(cliMode bool, widgetKey string) (*Config, error) {
	reconnectInterval, err := time.ParseDuration(getEnv("WS_RECONNECT_INTERVAL", "3s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_RECONNECT_INTERVAL: %w", err)
	}
	heartbeatInterval, err := time.ParseDuration(getEnv("WS_HEARTBEAT_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_HEARTBEAT_INTERVAL: %w", err)
	}
	maxAttempts, err := strconv.Atoi(getEnv("WS_MAX_RECONNECT_ATTEMPTS", "5"))
	if err != nil {
		return nil, fmt.Errorf("invalid WS_MAX_RECONNECT_ATTEMPTS: %w", err)
	}

	cfg := &Config{
		WidgetHost:           getEnv("WIDGET_HOST", "localhost:8080"),
		WidgetScheme:         getEnv("WIDGET_SCHEME", "ws"),
		WidgetKey:            os.Getenv("WIDGET_KEY"),
		ConsoleAddr:          getEnv("CONSOLE_ADDR", "localhost:8090"),
		ArchiveDB:            getEnv("ARCHIVE_DB", "chatelly.db"),
		ReconnectInterval:    reconnectInterval,
		MaxReconnectAttempts: maxAttempts,
		HeartbeatInterval:    heartbeatInterval,
	}
	if widgetKey != "" {
		cfg.WidgetKey = widgetKey
	}

	if err := cfg.Validate(cliMode); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate(cliMode bool) error {
	if !cliMode {
		if c.WidgetKey == "" {
			return fmt.Errorf("WIDGET_KEY is required")
		}
		if err := content.ValidateWidgetKey(c.WidgetKey); err != nil {
			return err
		}
	}

	if c.WidgetHost == "" {
		return fmt.Errorf("WIDGET_HOST is required")
	}

	if c.WidgetScheme != "ws" && c.WidgetScheme != "wss" {
		return fmt.Errorf("WIDGET_SCHEME must be ws or wss, got %q", c.WidgetScheme)
	}

	if c.ReconnectInterval <= 0 {
		return fmt.Errorf("WS_RECONNECT_INTERVAL must be greater than 0")
	}

	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("WS_HEARTBEAT_INTERVAL must be greater than 0")
	}

	if c.MaxReconnectAttempts < 0 {
		return fmt.Errorf("WS_MAX_RECONNECT_ATTEMPTS must not be negative")
	}

	return nil
}

// Session returns the store configuration; the socket URL is filled in per
// widget on connect.
func (c *Config) Session() session.Config {
	return session.Config{
		Host:   c.WidgetHost,
		Scheme: c.WidgetScheme,
		Manager: ws.Config{
			ReconnectInterval:    c.ReconnectInterval,
			MaxReconnectAttempts: c.MaxReconnectAttempts,
			HeartbeatInterval:    c.HeartbeatInterval,
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}
