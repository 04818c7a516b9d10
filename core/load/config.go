package load

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// MaxMemoryBytes forces a routing flush once the buffered size goes
	// above it.
	MaxMemoryBytes int64 `envconfig:"LOAD_MAX_MEMORY_BYTES" default:"67108864"`
	// MaxRetryAttempts is the attempt count per node, per RPC.
	MaxRetryAttempts int `envconfig:"LOAD_MAX_RETRY_ATTEMPTS" default:"5"`
	// RetryIntervalMillis is the fixed delay between attempts.
	RetryIntervalMillis int `envconfig:"LOAD_RETRY_INTERVAL_MILLIS" default:"6000"`
}

func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) RetryInterval() time.Duration {
	return time.Duration(c.RetryIntervalMillis) * time.Millisecond
}
