package ws

import (
	"errors"
	"time"
)

const (
	DefaultReconnectInterval    = 3 * time.Second
	DefaultMaxReconnectAttempts = 5
	DefaultHeartbeatInterval    = 30 * time.Second

	// MaxBackoffDelay bounds the wait between reconnect attempts.
	MaxBackoffDelay = time.Hour
)

type Config struct {
	URL                  string
	ReconnectInterval    time.Duration
	MaxReconnectAttempts int
	HeartbeatInterval    time.Duration
}

func (c *Config) Validate() error {
	if c.URL == "" {
		return errors.New("url is required")
	}
	if c.ReconnectInterval < 0 || c.HeartbeatInterval < 0 || c.MaxReconnectAttempts < 0 {
		return errors.New("intervals and attempts must not be negative")
	}

	if c.ReconnectInterval == 0 {
		c.ReconnectInterval = DefaultReconnectInterval
	}
	if c.MaxReconnectAttempts == 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.HeartbeatInterval == 0 {
		c.HeartbeatInterval = DefaultHeartbeatInterval
	}

	return nil
}

// BackoffDelay returns the wait before reconnect attempt n (1-indexed),
// capped at MaxBackoffDelay.
func (c Config) BackoffDelay(attempt int) time.Duration {
	delay := c.ReconnectInterval
	if delay > MaxBackoffDelay {
		return MaxBackoffDelay
	}
	for i := 1; i < attempt; i++ {
		if delay > MaxBackoffDelay/2 {
			return MaxBackoffDelay
		}
		delay *= 2
	}
	return delay
}
