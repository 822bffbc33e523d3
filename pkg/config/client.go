package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// ClientConfig configures API consumers such as nurseryctl. Command-line
// flags override these values.
type ClientConfig struct {
	APIURL       string        `envconfig:"NURSERYFINDER_API_URL" default:"http://localhost:8080"`
	Timeout      time.Duration `envconfig:"NURSERYFINDER_CLIENT_TIMEOUT" default:"15s"`
	SessionFile  string        `envconfig:"NURSERYFINDER_SESSION_FILE"`
	PollInterval time.Duration `envconfig:"NURSERYFINDER_SESSION_POLL_INTERVAL" default:"1s"`
	LogLevel     string        `envconfig:"NURSERYFINDER_LOG_LEVEL" default:"warn"`
	LogFormat    string        `envconfig:"NURSERYFINDER_LOG_FORMAT" default:"console"`
	Moderation   ModerationConfig
}

func LoadClient() (*ClientConfig, error) {
	var cfg ClientConfig
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing client config: %w", err)
	}
	return &cfg, nil
}
