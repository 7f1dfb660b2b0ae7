package main

import (
	"github.com/caarlos0/env/v11"

	"github.com/k11v/etex/internal/builder"
	"github.com/k11v/etex/internal/relay"
	"github.com/k11v/etex/internal/server"
)

// config holds the application configuration.
type config struct {
	Development bool           `env:"ETEX_DEVELOPMENT"`
	Server      server.Config  `envPrefix:"ETEX_SERVER_"`
	Relay       relay.Config   `envPrefix:"ETEX_RELAY_"`
	Builder     builder.Config `envPrefix:"ETEX_BUILDER_"`
}

// parseConfig parses the application configuration from the environment variables.
func parseConfig(environ []string) (*config, error) {
	var cfg config

	err := env.ParseWithOptions(&cfg, env.Options{
		Environment: env.ToMap(environ),
	})
	if err != nil {
		return nil, err
	}

	return &cfg, nil
}
