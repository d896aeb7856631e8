// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package quarry

import (
	"net"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/huynambka/quarry/pkg/teleport"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "QUARRY_"

// Config holds the proxy configuration read from the environment.
type Config struct {
	Host       string `env:"HOST"        envDefault:""`
	Port       int    `env:"PORT"        envDefault:"25565"`
	TargetHost string `env:"TARGET_HOST" envDefault:"127.0.0.1"`
	TargetPort int    `env:"TARGET_PORT" envDefault:"25565"`

	TeleportMode teleport.Mode `env:"TELEPORT_MODE" envDefault:"vertical"`

	DialTimeout     time.Duration `env:"DIAL_TIMEOUT"     envDefault:"10s"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	// Observability, 0 disables a server
	MetricsPort int    `env:"METRICS_PORT" envDefault:"9090"`
	HealthPort  int    `env:"HEALTH_PORT"  envDefault:"8080"`
	LogLevel    string `env:"LOG_LEVEL"    envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT"   envDefault:"json"`
	LogFile     string `env:"LOG_FILE"     envDefault:""`

	// Connection admission, capacity 0 disables rate limiting
	RateLimitCapacity int     `env:"RATE_LIMIT_CAPACITY" envDefault:"10"`
	RateLimitRefill   float64 `env:"RATE_LIMIT_REFILL"   envDefault:"1"`

	BreakerMaxFailures  int           `env:"BREAKER_MAX_FAILURES"  envDefault:"5"`
	BreakerResetTimeout time.Duration `env:"BREAKER_RESET_TIMEOUT" envDefault:"30s"`
}

// NewConfig parses the environment with the given options. An empty prefix
// defaults to EnvPrefix.
func NewConfig(opts env.Options) (Config, error) {
	if opts.Prefix == "" {
		opts.Prefix = EnvPrefix
	}

	var c Config
	if err := env.ParseWithOptions(&c, opts); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Address returns the listen address.
func (c Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// TargetAddress returns the address of the Minecraft server.
func (c Config) TargetAddress() string {
	return net.JoinHostPort(c.TargetHost, strconv.Itoa(c.TargetPort))
}
