// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package breaker

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errRefused = errors.New("connection refused")

func failing(ctx context.Context) (net.Conn, error) {
	return nil, errRefused
}

func succeeding(ctx context.Context) (net.Conn, error) {
	c, _ := net.Pipe()
	return c, nil
}

type transition struct {
	from, to State
}

func TestBreakerOpensAndRecovers(t *testing.T) {
	var transitions []transition
	now := time.Unix(1700000000, 0)

	b := New(Config{MaxFailures: 3, ResetTimeout: 10 * time.Second}, func(from, to State) {
		transitions = append(transitions, transition{from, to})
	})
	b.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := b.Dial(ctx, failing)
		assert.ErrorIs(t, err, errRefused)
	}
	assert.Equal(t, StateOpen, b.State())
	assert.Equal(t, 3, b.Failures())

	_, err := b.Dial(ctx, succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	// A failed probe reopens the circuit.
	now = now.Add(11 * time.Second)
	_, err = b.Dial(ctx, failing)
	assert.ErrorIs(t, err, errRefused)
	assert.Equal(t, StateOpen, b.State())

	now = now.Add(11 * time.Second)
	conn, err := b.Dial(ctx, succeeding)
	require.NoError(t, err)
	conn.Close()
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, 0, b.Failures())

	assert.Equal(t, []transition{
		{StateClosed, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateOpen},
		{StateOpen, StateHalfOpen},
		{StateHalfOpen, StateClosed},
	}, transitions)
}

func TestBreakerSingleProbe(t *testing.T) {
	now := time.Unix(1700000000, 0)
	b := New(Config{MaxFailures: 1, ResetTimeout: time.Second}, nil)
	b.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := b.Dial(ctx, failing)
	require.ErrorIs(t, err, errRefused)
	now = now.Add(2 * time.Second)

	release := make(chan struct{})
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		_, err := b.Dial(ctx, func(ctx context.Context) (net.Conn, error) {
			close(started)
			<-release
			return nil, errRefused
		})
		done <- err
	}()

	<-started
	assert.Equal(t, StateHalfOpen, b.State())
	_, err = b.Dial(ctx, succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	close(release)
	assert.ErrorIs(t, <-done, errRefused)
	assert.Equal(t, StateOpen, b.State())
}

func TestBreakerIgnoresCallerCancel(t *testing.T) {
	b := New(Config{MaxFailures: 1}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.Dial(ctx, func(ctx context.Context) (net.Conn, error) {
		return nil, ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, b.State())
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "closed", StateClosed.String())
	assert.Equal(t, "half_open", StateHalfOpen.String())
	assert.Equal(t, "open", StateOpen.String())
	assert.Equal(t, "unknown", State(9).String())
}
