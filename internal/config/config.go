package config

import (
	"fmt"
	"time"
)

type Config struct {
	Bind      string
	Port      int
	PublicURL string
	Countdown time.Duration
	Verbose   bool
}

func Default() Config {
	return Config{
		Bind:      "0.0.0.0",
		Port:      8080,
		PublicURL: "http://localhost:8080",
		Countdown: 1500 * time.Millisecond,
	}
}

func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.Port)
	}
	if c.Countdown <= 0 {
		return fmt.Errorf("invalid countdown: %s", c.Countdown)
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Bind, c.Port)
}
