// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"sync"

	pk "github.com/Tnze/go-mc/net/packet"
)

// Conn is a framed connection to one peer. *net.Conn from
// github.com/Tnze/go-mc/net satisfies it.
type Conn interface {
	ReadPacket(p *pk.Packet) error
	WritePacket(p pk.Packet) error
	SetThreshold(threshold int)
	Close() error
}

// peer serializes writes to one side of the bridge. Both pumps may write to
// the same peer: the owning pump forwards, the other one synthesizes.
type peer struct {
	conn Conn
	mu   sync.Mutex
}

// Send implements handler.Sender.
func (p *peer) Send(ctx context.Context, id int32, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.conn.WritePacket(pk.Packet{ID: id, Data: payload})
}

// setThreshold switches compression for both reads and writes on the
// connection. The caller makes sure no read is in flight.
func (p *peer) setThreshold(threshold int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.conn.SetThreshold(threshold)
}
