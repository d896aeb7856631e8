// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/huynambka/quarry"
	"github.com/huynambka/quarry/pkg/breaker"
	"github.com/huynambka/quarry/pkg/health"
	"github.com/huynambka/quarry/pkg/metrics"
	"github.com/huynambka/quarry/pkg/proxy"
	"github.com/huynambka/quarry/pkg/ratelimit"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

type flags struct {
	listenHost  string
	listenPort  int
	connectHost string
	connectPort int
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "quarry",
		Short: "Minecraft proxy with a client-side port command",
		Long: `quarry relays Minecraft connections to a target server and answers
"/port <distance>" chat commands by teleporting the player on the client.

Settings are read from QUARRY_* environment variables and an optional .env
file. Flags override the environment.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dotenv := godotenv.Load() == nil

			cfg, err := quarry.NewConfig(env.Options{})
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			f.apply(cmd, &cfg)

			return run(cmd.Context(), cfg, dotenv)
		},
	}

	fs := cmd.Flags()
	fs.StringVarP(&f.listenHost, "listen-host", "a", "", "address to listen on")
	fs.IntVarP(&f.listenPort, "listen-port", "p", 25565, "port to listen on")
	fs.StringVarP(&f.connectHost, "connect-host", "b", "127.0.0.1", "address to connect to")
	fs.IntVarP(&f.connectPort, "connect-port", "q", 25565, "port to connect to")

	return cmd
}

// apply copies the flags the user set over the environment configuration.
func (f flags) apply(cmd *cobra.Command, cfg *quarry.Config) {
	fs := cmd.Flags()
	if fs.Changed("listen-host") {
		cfg.Host = f.listenHost
	}
	if fs.Changed("listen-port") {
		cfg.Port = f.listenPort
	}
	if fs.Changed("connect-host") {
		cfg.TargetHost = f.connectHost
	}
	if fs.Changed("connect-port") {
		cfg.TargetPort = f.connectPort
	}
}

func run(ctx context.Context, cfg quarry.Config, dotenv bool) error {
	logger, closer := setupLogger(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	defer closer.Close()
	if !dotenv {
		logger.Debug("no .env file found, using environment variables")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, ctx := errgroup.WithContext(ctx)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New("quarry", reg)

	checker := health.NewChecker(10 * time.Second)
	checker.Register("target", health.StatusCheck(cfg.TargetAddress(), cfg.DialTimeout))

	var limiter *ratelimit.Limiter
	if cfg.RateLimitCapacity > 0 {
		limiter = ratelimit.New(ratelimit.Config{
			Capacity: cfg.RateLimitCapacity,
			Refill:   cfg.RateLimitRefill,
		})
		defer limiter.Close()
	}

	cb := breaker.New(breaker.Config{
		MaxFailures:  cfg.BreakerMaxFailures,
		ResetTimeout: cfg.BreakerResetTimeout,
	}, func(from, to breaker.State) {
		logger.Warn("circuit breaker state changed",
			slog.String("target", cfg.TargetAddress()),
			slog.String("from", from.String()),
			slog.String("to", to.String()))
		m.BreakerState(int(to), to == breaker.StateOpen)
	})

	p := proxy.NewMinecraft(proxy.MinecraftConfig{
		Host:            cfg.Host,
		Port:            strconv.Itoa(cfg.Port),
		TargetHost:      cfg.TargetHost,
		TargetPort:      strconv.Itoa(cfg.TargetPort),
		TeleportMode:    cfg.TeleportMode,
		DialTimeout:     cfg.DialTimeout,
		ShutdownTimeout: cfg.ShutdownTimeout,
		Logger:          logger,
		Metrics:         m,
		Limiter:         limiter,
		Breaker:         cb,
		Health:          checker,
	})

	g.Go(func() error {
		logger.Info("starting Minecraft proxy",
			slog.String("address", cfg.Address()),
			slog.String("target", cfg.TargetAddress()),
			slog.String("teleport_mode", cfg.TeleportMode.String()))
		return p.Listen(ctx)
	})

	if cfg.MetricsPort > 0 {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		g.Go(func() error {
			return serveHTTP(ctx, "metrics", cfg.MetricsPort, mux, logger)
		})
	}

	if cfg.HealthPort > 0 {
		g.Go(func() error {
			return serveHTTP(ctx, "health", cfg.HealthPort, checker.Mux(), logger)
		})
	}

	g.Go(func() error {
		return StopSignalHandler(ctx, cancel, logger)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("quarry terminated with error: %s", err))
		return err
	}
	logger.Info("quarry stopped")
	return nil
}

// serveHTTP runs an auxiliary HTTP server until ctx is done.
func serveHTTP(ctx context.Context, name string, port int, h http.Handler, logger *slog.Logger) error {
	addr := fmt.Sprintf(":%d", port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      h,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	logger.Info("starting "+name+" server", slog.String("address", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

func StopSignalHandler(ctx context.Context, cancel context.CancelFunc, logger *slog.Logger) error {
	c := make(chan os.Signal, 2)
	signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(c)

	select {
	case sig := <-c:
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
		return nil
	case <-ctx.Done():
		return nil
	}
}
