package config

import (
	"fmt"
)

// MediaConfig holds the settings for the uploaded image store.
type MediaConfig struct {
	Dir string `koanf:"dir"`
}

func (c *MediaConfig) Validate() error {
	if c.Dir == "" {
		return fmt.Errorf("media upload directory is not configured")
	}
	return nil
}
