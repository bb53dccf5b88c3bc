package config

import (
	"fmt"
)

// SessionConfig holds the cookie session settings used for flash messages.
type SessionConfig struct {
	Secret string `koanf:"secret"`
	Name   string `koanf:"name"`
}

func (c *SessionConfig) Validate() error {
	if c.Secret == "" {
		return fmt.Errorf("session secret is not configured")
	}
	if len(c.Secret) < 32 {
		return fmt.Errorf("session secret must be at least 32 bytes, got %d", len(c.Secret))
	}
	if c.Name == "" {
		return fmt.Errorf("session cookie name is not configured")
	}
	return nil
}
