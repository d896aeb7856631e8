// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package breaker stops dialing the target server after repeated failures.
package breaker

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"
)

// ErrCircuitOpen is returned when the circuit breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half_open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Config holds circuit breaker configuration.
type Config struct {
	// MaxFailures is the number of consecutive failed dials before opening
	// the circuit.
	MaxFailures int
	// ResetTimeout is how long to wait in Open state before letting a probe
	// through.
	ResetTimeout time.Duration
}

// DialFunc opens a connection to the target server.
type DialFunc func(ctx context.Context) (net.Conn, error)

// Breaker wraps a DialFunc. In half-open state only one probe dial is let
// through at a time.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	openedAt time.Time
	probing  bool
	now      func() time.Time
	notify   func(from, to State)
}

// New creates a new circuit breaker. notify, if not nil, is called
// synchronously on every state change.
func New(cfg Config, notify func(from, to State)) *Breaker {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout == 0 {
		cfg.ResetTimeout = 30 * time.Second
	}

	return &Breaker{
		cfg:    cfg,
		now:    time.Now,
		notify: notify,
	}
}

// Dial calls dial unless the circuit is open. A context error from the caller
// is not counted as a failure of the target.
func (b *Breaker) Dial(ctx context.Context, dial DialFunc) (net.Conn, error) {
	if err := b.before(); err != nil {
		return nil, err
	}

	conn, err := dial(ctx)
	switch {
	case err == nil:
		b.after(true)
	case ctx.Err() != nil:
		b.release()
	default:
		b.after(false)
	}
	return conn, err
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return ErrCircuitOpen
		}
		b.set(StateHalfOpen)
		b.probing = true
		return nil

	case StateHalfOpen:
		if b.probing {
			return ErrCircuitOpen
		}
		b.probing = true
		return nil

	default:
		return nil
	}
}

func (b *Breaker) after(ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.probing = false
	if ok {
		b.failures = 0
		b.set(StateClosed)
		return
	}

	b.failures++
	if b.state == StateHalfOpen || b.failures >= b.cfg.MaxFailures {
		b.openedAt = b.now()
		b.set(StateOpen)
	}
}

func (b *Breaker) release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.probing = false
}

func (b *Breaker) set(to State) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.notify != nil {
		b.notify(from, to)
	}
}

// State returns the current state of the circuit breaker.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Failures returns the number of consecutive failed dials.
func (b *Breaker) Failures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}
