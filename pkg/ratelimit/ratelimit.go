// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package ratelimit limits how often one client host may open a bridge.
package ratelimit

import (
	"net"
	"sync"
	"time"
)

// Config holds the limiter settings.
type Config struct {
	// Capacity is the burst of connections a host may open at once.
	Capacity int
	// Refill is the number of connections a host regains per second.
	Refill float64
	// MaxHosts bounds the number of tracked hosts. New hosts are rejected
	// once it is reached.
	MaxHosts int
	// IdleTimeout is how long an untouched, full bucket is kept.
	IdleTimeout time.Duration
}

type bucket struct {
	tokens float64
	last   time.Time // last refill
	used   time.Time
}

// Limiter is a token bucket per client host.
type Limiter struct {
	mu      sync.Mutex
	cfg     Config
	buckets map[string]*bucket
	now     func() time.Time
	sweeper *time.Timer
}

// New returns a limiter and starts its periodic sweep.
func New(cfg Config) *Limiter {
	if cfg.MaxHosts == 0 {
		cfg.MaxHosts = 10000
	}
	if cfg.IdleTimeout == 0 {
		cfg.IdleTimeout = 5 * time.Minute
	}

	l := &Limiter{
		cfg:     cfg,
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	l.sweeper = time.AfterFunc(cfg.IdleTimeout, l.sweepLoop)
	return l
}

// Allow takes one token from host's bucket and reports whether one was
// available.
func (l *Limiter) Allow(host string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	b, ok := l.buckets[host]
	if !ok {
		if len(l.buckets) >= l.cfg.MaxHosts {
			return false
		}
		b = &bucket{tokens: float64(l.cfg.Capacity), last: now}
		l.buckets[host] = b
	}

	l.refill(b, now)
	b.used = now
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) refill(b *bucket, now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}
	b.tokens += elapsed * l.cfg.Refill
	if limit := float64(l.cfg.Capacity); b.tokens > limit {
		b.tokens = limit
	}
	b.last = now
}

// Sweep drops buckets that are full and have not been used for IdleTimeout.
// Such a host would get a fresh bucket with the same tokens anyway.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for host, b := range l.buckets {
		l.refill(b, now)
		if now.Sub(b.used) >= l.cfg.IdleTimeout && b.tokens >= float64(l.cfg.Capacity) {
			delete(l.buckets, host)
		}
	}
}

func (l *Limiter) sweepLoop() {
	l.Sweep()

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sweeper != nil {
		l.sweeper.Reset(l.cfg.IdleTimeout)
	}
}

// Hosts returns the number of tracked hosts.
func (l *Limiter) Hosts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Close stops the periodic sweep.
func (l *Limiter) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.sweeper != nil {
		l.sweeper.Stop()
		l.sweeper = nil
	}
}

// Host returns the host part of a network address, or addr itself when it
// has no port.
func Host(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}
