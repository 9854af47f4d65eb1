package printer

import (
	"time"

	"duet-backup/core/transport"
)

// Config holds configuration for the printer connection.
type Config struct {
	// URL is the base address of the controller, e.g. http://192.168.1.20.
	URL string `mapstructure:"url" default:"http://127.0.0.1"`
	// Password is sent to rr_connect.
	Password string `mapstructure:"password" default:"reprap"`
	// TimeoutSeconds bounds a single request attempt.
	TimeoutSeconds int `mapstructure:"timeout_seconds" default:"5"`
	// MaxAttempts is the number of attempts per request.
	MaxAttempts int `mapstructure:"max_attempts" default:"2"`
	// RetryDelayMs is the pause between two attempts.
	RetryDelayMs int `mapstructure:"retry_delay_ms" default:"1000"`
	// Notify enables messages on the printer display.
	Notify bool `mapstructure:"notify" default:"true"`
}

// Policy converts the configuration into a transport policy.
func (c Config) Policy() transport.Policy {
	p := transport.DefaultPolicy()
	if c.TimeoutSeconds > 0 {
		p.Timeout = time.Duration(c.TimeoutSeconds) * time.Second
	}
	if c.MaxAttempts > 0 {
		p.MaxAttempts = c.MaxAttempts
	}
	if c.RetryDelayMs >= 0 {
		p.Delay = time.Duration(c.RetryDelayMs) * time.Millisecond
	}
	return p
}
