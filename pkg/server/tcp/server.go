// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package tcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	"github.com/google/uuid"
	"github.com/huynambka/quarry/pkg/breaker"
	"github.com/huynambka/quarry/pkg/bridge"
	qerrors "github.com/huynambka/quarry/pkg/errors"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/health"
	"github.com/huynambka/quarry/pkg/metrics"
	"github.com/huynambka/quarry/pkg/ratelimit"
)

var (
	// ErrShutdownTimeout is returned when graceful shutdown exceeds the configured timeout.
	ErrShutdownTimeout = errors.New("shutdown timeout exceeded")
)

// Config holds the TCP server configuration.
type Config struct {
	// Address is the listen address (host:port)
	Address string

	// TargetAddress is the Minecraft server to proxy to (host:port)
	TargetAddress string

	// DialTimeout bounds connecting to the target server.
	DialTimeout time.Duration

	// ShutdownTimeout is the maximum time to wait for active bridges to drain
	// during graceful shutdown. After this timeout, remaining bridges are
	// forcefully closed.
	ShutdownTimeout time.Duration

	// Logger for server events
	Logger *slog.Logger
}

// Option configures optional server collaborators.
type Option func(*Server)

// WithMetrics records bridge and packet metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// WithRateLimiter rejects clients whose host exceeds the limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(s *Server) { s.limiter = l }
}

// WithBreaker dials the target through a circuit breaker.
func WithBreaker(b *breaker.Breaker) Option {
	return func(s *Server) { s.breaker = b }
}

// WithHealth reports listener state to the readiness probe.
func WithHealth(c *health.Checker) Option {
	return func(s *Server) { s.health = c }
}

// Server accepts Minecraft clients and bridges each one to the target
// server.
type Server struct {
	config  Config
	table   *handler.Table
	metrics *metrics.Metrics
	limiter *ratelimit.Limiter
	breaker *breaker.Breaker
	health  *health.Checker
	wg      sync.WaitGroup
}

// New creates a new TCP server that dispatches play packets through table.
func New(cfg Config, table *handler.Table, opts ...Option) *Server {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = 10 * time.Second
	}
	if table == nil {
		table = handler.NewTable()
	}

	s := &Server{
		config: cfg,
		table:  table,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen starts the TCP server and blocks until the context is cancelled.
func (s *Server) Listen(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Address, err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until the context is cancelled, then
// drains active bridges. It closes the listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.config.Logger.Info("TCP server started",
		slog.String("address", listener.Addr().String()),
		slog.String("target", s.config.TargetAddress))
	if s.health != nil {
		s.health.SetListening(true)
		defer s.health.SetListening(false)
	}

	// Bridges get their own context so they outlive ctx until the drain
	// timeout.
	connCtx, connCancel := context.WithCancel(context.Background())
	defer connCancel()

	acceptDone := make(chan struct{})
	go func() {
		defer close(acceptDone)
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if errors.Is(err, net.ErrClosed) {
					return
				}
				s.config.Logger.Error("failed to accept connection", slog.String("error", err.Error()))
				continue
			}

			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.logResult(conn.RemoteAddr().String(), s.handleConn(connCtx, conn))
			}()
		}
	}()

	<-ctx.Done()
	s.config.Logger.Info("shutdown signal received, closing listener")

	if err := listener.Close(); err != nil {
		s.config.Logger.Error("error closing listener", slog.String("error", err.Error()))
	}
	<-acceptDone

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.config.Logger.Info("all bridges closed gracefully")
		return nil
	case <-time.After(s.config.ShutdownTimeout):
		s.config.Logger.Warn("shutdown timeout exceeded, forcing bridge closure")
		connCancel()
		select {
		case <-done:
		case <-time.After(time.Second):
		}
		return ErrShutdownTimeout
	}
}

func (s *Server) logResult(remote string, err error) {
	switch {
	case err == nil, qerrors.IsClosed(err):
	case errors.Is(err, qerrors.ErrRateLimited):
		s.config.Logger.Warn("connection rate limited", slog.String("remote", remote))
	default:
		s.config.Logger.Warn("bridge failed",
			slog.String("remote", remote),
			slog.String("error", err.Error()))
	}
}

// handleConn admits a client, dials the target and runs the bridge until
// either side goes away.
func (s *Server) handleConn(ctx context.Context, inbound net.Conn) error {
	remote := inbound.RemoteAddr().String()

	if s.limiter != nil && !s.limiter.Allow(ratelimit.Host(remote)) {
		s.metrics.RateLimitedConnection()
		inbound.Close()
		return qerrors.New("accept", "", "", remote, qerrors.ErrRateLimited)
	}

	outbound, err := s.dial(ctx)
	if err != nil {
		inbound.Close()
		return qerrors.New("dial", "", "", remote, err)
	}

	sessionID := uuid.New().String()
	s.config.Logger.Info("bridge opened",
		slog.String("session", sessionID),
		slog.String("client", remote),
		slog.String("target", s.config.TargetAddress))

	b := bridge.New(mcnet.WrapConn(inbound), mcnet.WrapConn(outbound), bridge.Config{
		SessionID:  sessionID,
		RemoteAddr: remote,
		Table:      s.table,
		Logger:     s.config.Logger,
		Metrics:    s.metrics,
	})

	start := time.Now()
	err = s.metrics.ObserveBridge(func() error {
		return b.Run(ctx)
	})
	s.config.Logger.Info("bridge closed",
		slog.String("session", sessionID),
		slog.Duration("duration", time.Since(start)))
	return err
}

func (s *Server) dial(ctx context.Context) (net.Conn, error) {
	dial := func(ctx context.Context) (net.Conn, error) {
		d := net.Dialer{Timeout: s.config.DialTimeout}
		return d.DialContext(ctx, "tcp", s.config.TargetAddress)
	}

	var (
		conn net.Conn
		err  error
	)
	if s.breaker != nil {
		conn, err = s.breaker.Dial(ctx, dial)
	} else {
		conn, err = dial(ctx)
	}
	if err != nil {
		s.metrics.DialError(dialReason(err))
		return nil, fmt.Errorf("%w: %w", qerrors.ErrBackendUnavailable, err)
	}
	return conn, nil
}

func dialReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, breaker.ErrCircuitOpen):
		return "circuit_open"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "refused"
	}
}
