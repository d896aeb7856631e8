// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package proxy

import (
	"context"
	"log/slog"
	"net"
	"time"

	"github.com/huynambka/quarry/pkg/breaker"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/health"
	"github.com/huynambka/quarry/pkg/metrics"
	"github.com/huynambka/quarry/pkg/ratelimit"
	"github.com/huynambka/quarry/pkg/server/tcp"
	"github.com/huynambka/quarry/pkg/teleport"
)

// MinecraftConfig holds configuration for the Minecraft proxy.
type MinecraftConfig struct {
	Host            string
	Port            string
	TargetHost      string
	TargetPort      string
	TeleportMode    teleport.Mode
	DialTimeout     time.Duration
	ShutdownTimeout time.Duration
	Logger          *slog.Logger

	// Optional collaborators, nil disables each one.
	Metrics *metrics.Metrics
	Limiter *ratelimit.Limiter
	Breaker *breaker.Breaker
	Health  *health.Checker
}

// MinecraftProxy coordinates the TCP server and the port command handlers.
type MinecraftProxy struct {
	server *tcp.Server
	table  *handler.Table
}

// NewMinecraft creates a proxy whose handler table answers port commands
// with the configured teleport mode.
func NewMinecraft(cfg MinecraftConfig) *MinecraftProxy {
	table := handler.NewTable()
	teleport.New(cfg.TeleportMode).Register(table)

	serverCfg := tcp.Config{
		Address:         net.JoinHostPort(cfg.Host, cfg.Port),
		TargetAddress:   net.JoinHostPort(cfg.TargetHost, cfg.TargetPort),
		DialTimeout:     cfg.DialTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          cfg.Logger,
	}

	var opts []tcp.Option
	if cfg.Metrics != nil {
		opts = append(opts, tcp.WithMetrics(cfg.Metrics))
	}
	if cfg.Limiter != nil {
		opts = append(opts, tcp.WithRateLimiter(cfg.Limiter))
	}
	if cfg.Breaker != nil {
		opts = append(opts, tcp.WithBreaker(cfg.Breaker))
	}
	if cfg.Health != nil {
		opts = append(opts, tcp.WithHealth(cfg.Health))
	}

	return &MinecraftProxy{
		server: tcp.New(serverCfg, table, opts...),
		table:  table,
	}
}

// Table returns the handler table, so callers can register more handlers
// before the proxy starts.
func (p *MinecraftProxy) Table() *handler.Table {
	return p.table
}

// Listen starts the proxy server and blocks until context is cancelled.
func (p *MinecraftProxy) Listen(ctx context.Context) error {
	return p.server.Listen(ctx)
}

// Serve runs the proxy on an existing listener.
func (p *MinecraftProxy) Serve(ctx context.Context, ln net.Listener) error {
	return p.server.Serve(ctx, ln)
}
