package client

import "time"

// DefaultTimeout bounds every request made by a Client.
const DefaultTimeout = 15 * time.Second

// Config points a Client at a nurseryfinder API.
type Config struct {
	BaseURL string
	Timeout time.Duration
	Debug   bool
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}
