package loadnode

import "github.com/kelseyhightower/envconfig"

type Config struct {
	Server struct {
		Host string `envconfig:"SERVER_HOST" default:"0.0.0.0"`
		Port int    `envconfig:"SERVER_PORT" default:"9090"`
	}
	Staging struct {
		Path string `envconfig:"STAGING_PATH" default:"staging"`
	}
	Data struct {
		Path string `envconfig:"DATA_PATH" default:"data"`
	}
}

func GetConfig() (*Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
