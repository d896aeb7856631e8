// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type clock struct {
	t time.Time
}

func (c *clock) now() time.Time { return c.t }

func newLimiter(t *testing.T, cfg Config) (*Limiter, *clock) {
	t.Helper()
	c := &clock{t: time.Unix(1700000000, 0)}
	l := New(cfg)
	l.now = c.now
	t.Cleanup(l.Close)
	return l, c
}

func TestAllowBurstAndRefill(t *testing.T) {
	l, c := newLimiter(t, Config{Capacity: 3, Refill: 1})

	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"), "attempt %d", i)
	}
	assert.False(t, l.Allow("10.0.0.1"))

	// Other hosts have their own bucket.
	assert.True(t, l.Allow("10.0.0.2"))

	c.t = c.t.Add(500 * time.Millisecond)
	assert.False(t, l.Allow("10.0.0.1"))

	c.t = c.t.Add(600 * time.Millisecond)
	assert.True(t, l.Allow("10.0.0.1"))
	assert.False(t, l.Allow("10.0.0.1"))

	// Refill never exceeds capacity.
	c.t = c.t.Add(time.Hour)
	for i := 0; i < 3; i++ {
		assert.True(t, l.Allow("10.0.0.1"))
	}
	assert.False(t, l.Allow("10.0.0.1"))
}

func TestMaxHosts(t *testing.T) {
	l, _ := newLimiter(t, Config{Capacity: 1, Refill: 1, MaxHosts: 2})

	assert.True(t, l.Allow("a"))
	assert.True(t, l.Allow("b"))
	assert.False(t, l.Allow("c"))
	assert.Equal(t, 2, l.Hosts())
}

func TestSweep(t *testing.T) {
	l, c := newLimiter(t, Config{Capacity: 2, Refill: 1, IdleTimeout: time.Minute})

	l.Allow("idle")
	l.Allow("busy")
	l.Allow("busy")
	l.Allow("busy")

	c.t = c.t.Add(30 * time.Second)
	l.Sweep()
	assert.Equal(t, 2, l.Hosts())

	c.t = c.t.Add(31 * time.Second)
	l.Sweep()
	assert.Equal(t, 0, l.Hosts())
}

func TestHost(t *testing.T) {
	assert.Equal(t, "127.0.0.1", Host("127.0.0.1:25565"))
	assert.Equal(t, "::1", Host("[::1]:25565"))
	assert.Equal(t, "pipe", Host("pipe"))
}
