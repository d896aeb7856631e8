// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package health serves liveness and readiness probes for the proxy.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
)

// ErrNotListening is reported by readiness until the proxy listener is up.
var ErrNotListening = errors.New("listener not started")

// Status represents the health status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Check is the outcome of one named check.
type Check struct {
	Name        string    `json:"name"`
	Status      Status    `json:"status"`
	Message     string    `json:"message,omitempty"`
	LastChecked time.Time `json:"last_checked"`
	DurationMS  int64     `json:"duration_ms"`
}

// Report is the body returned by the health and readiness endpoints.
type Report struct {
	Status Status  `json:"status"`
	Checks []Check `json:"checks"`
}

// CheckFunc is a function that performs a health check.
type CheckFunc func(ctx context.Context) error

// Checker runs registered checks and caches their results for a short time
// so probes do not hammer the target server.
type Checker struct {
	mu        sync.Mutex
	checks    map[string]CheckFunc
	cache     map[string]Check
	ttl       time.Duration
	listening atomic.Bool
}

// NewChecker creates a new health checker.
func NewChecker(cacheTTL time.Duration) *Checker {
	if cacheTTL == 0 {
		cacheTTL = 10 * time.Second
	}
	return &Checker{
		checks: make(map[string]CheckFunc),
		cache:  make(map[string]Check),
		ttl:    cacheTTL,
	}
}

// Register adds a health check.
func (c *Checker) Register(name string, check CheckFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checks[name] = check
	delete(c.cache, name)
}

// SetListening records whether the proxy is accepting connections.
func (c *Checker) SetListening(ok bool) {
	c.listening.Store(ok)
}

// Health runs every check, or reuses a cached result younger than the TTL.
// The report is degraded when any check fails.
func (c *Checker) Health(ctx context.Context) Report {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.checks))
	for name := range c.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	report := Report{Status: StatusHealthy, Checks: make([]Check, 0, len(names))}
	for _, name := range names {
		check, ok := c.cache[name]
		if !ok || time.Since(check.LastChecked) >= c.ttl {
			check = run(ctx, name, c.checks[name])
			c.cache[name] = check
		}
		if check.Status != StatusHealthy {
			report.Status = StatusDegraded
		}
		report.Checks = append(report.Checks, check)
	}
	return report
}

func run(ctx context.Context, name string, fn CheckFunc) Check {
	start := time.Now()
	err := fn(ctx)
	check := Check{
		Name:        name,
		Status:      StatusHealthy,
		LastChecked: time.Now(),
		DurationMS:  time.Since(start).Milliseconds(),
	}
	if err != nil {
		check.Status = StatusUnhealthy
		check.Message = err.Error()
	}
	return check
}

// Ready reports whether the proxy can take players: the listener is up and
// every check passes.
func (c *Checker) Ready(ctx context.Context) Report {
	report := c.Health(ctx)
	if !c.listening.Load() {
		report.Status = StatusUnhealthy
		report.Checks = append(report.Checks, Check{
			Name:        "listener",
			Status:      StatusUnhealthy,
			Message:     ErrNotListening.Error(),
			LastChecked: time.Now(),
		})
	}
	return report
}

// ErrBadStatus is reported when the target answers a status request with
// something other than a status response.
var ErrBadStatus = errors.New("unexpected status response")

const (
	statusIntent     = 1
	statusRequestID  = 0x00
	statusResponseID = 0x00
)

// StatusCheck performs a server list ping against address: a handshake with
// the status intent and a status request, then a read of the response.
func StatusCheck(address string, timeout time.Duration) CheckFunc {
	return func(ctx context.Context) error {
		host, portStr, err := net.SplitHostPort(address)
		if err != nil {
			return err
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			return err
		}

		d := net.Dialer{Timeout: timeout}
		sock, err := d.DialContext(ctx, "tcp", address)
		if err != nil {
			return err
		}
		defer sock.Close()

		deadline := time.Now().Add(timeout)
		if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
			deadline = dl
		}
		if err := sock.SetDeadline(deadline); err != nil {
			return err
		}

		conn := mcnet.WrapConn(sock)
		err = conn.WritePacket(pk.Marshal(0x00,
			pk.VarInt(-1),
			pk.String(host),
			pk.UnsignedShort(port),
			pk.VarInt(statusIntent),
		))
		if err != nil {
			return err
		}
		if err := conn.WritePacket(pk.Marshal(statusRequestID)); err != nil {
			return err
		}

		var p pk.Packet
		if err := conn.ReadPacket(&p); err != nil {
			return err
		}
		var body pk.String
		if p.ID != statusResponseID || p.Scan(&body) != nil {
			return ErrBadStatus
		}
		return nil
	}
}

// HTTPHandler returns the health endpoint. It answers 200 unless the proxy is
// unhealthy, since a degraded proxy still relays players already connected.
func (c *Checker) HTTPHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := c.Health(ctx)
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

// ReadinessHandler returns the readiness endpoint.
func (c *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		report := c.Ready(ctx)
		code := http.StatusOK
		if report.Status != StatusHealthy {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, report)
	}
}

// LivenessHandler returns a simple liveness probe.
func LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
	}
}

// Mux returns a mux serving /health, /ready and /live.
func (c *Checker) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/health", c.HTTPHandler())
	mux.Handle("/ready", c.ReadinessHandler())
	mux.Handle("/live", LivenessHandler())
	return mux
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}
