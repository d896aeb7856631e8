// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/huynambka/quarry/pkg/codec"
	"github.com/huynambka/quarry/pkg/metrics"
	"github.com/huynambka/quarry/pkg/packet"
	"github.com/huynambka/quarry/pkg/session"
)

// ErrUnknownPacket is returned by Context.Emit when the active protocol has no
// id for the requested packet name.
var ErrUnknownPacket = errors.New("unknown packet name")

// Sender writes one framed packet to a peer. Implementations serialize
// concurrent callers.
type Sender interface {
	Send(ctx context.Context, id int32, payload []byte) error
}

// Context carries the bridge resources a handler may use. One Context exists
// per bridge and is shared by both directions.
type Context struct {
	// SessionID is a unique identifier for this bridge
	SessionID string

	// RemoteAddr is the client's network address
	RemoteAddr string

	// Session is the player state owned by the bridge
	Session *session.Session

	// Protocol is the play id table negotiated in the handshake
	Protocol *packet.Protocol

	// Upstream writes to the server, Downstream writes to the client
	Upstream   Sender
	Downstream Sender

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Sender returns the sender for packets travelling in dir.
func (c *Context) Sender(dir packet.Direction) Sender {
	if dir == packet.Upstream {
		return c.Upstream
	}
	return c.Downstream
}

// Forward sends payload to the peer pkt was travelling towards, keeping the
// packet id.
func (c *Context) Forward(ctx context.Context, pkt packet.Packet, payload []byte) error {
	return c.Sender(pkt.Direction).Send(ctx, pkt.ID, payload)
}

// Emit sends a packet that did not come from either peer. The name is resolved
// through the active protocol table.
func (c *Context) Emit(ctx context.Context, dir packet.Direction, name string, payload []byte) error {
	if c.Protocol == nil {
		return fmt.Errorf("%w: %s (no protocol)", ErrUnknownPacket, name)
	}
	id, ok := c.Protocol.ID(dir, name)
	if !ok {
		return fmt.Errorf("%w: %s %s", ErrUnknownPacket, dir, name)
	}
	if err := c.Sender(dir).Send(ctx, id, payload); err != nil {
		return err
	}
	c.Metrics.SynthesizedPacket(dir.String(), name)
	return nil
}

// Recover turns a decode failure into verbatim forwarding of the packet. Any
// other error is returned unchanged.
func (c *Context) Recover(ctx context.Context, pkt packet.Packet, err error) error {
	if !errors.Is(err, codec.ErrMalformedPacket) {
		return err
	}

	c.Logger.Warn("malformed packet, forwarding raw",
		slog.String("session", c.SessionID),
		slog.String("direction", pkt.Direction.String()),
		slog.String("packet", pkt.Name),
		slog.Int("size", len(pkt.Payload)),
		slog.String("error", err.Error()))
	c.Metrics.MalformedPacket(pkt.Direction.String(), pkt.Name)

	return c.Forward(ctx, pkt, pkt.Payload)
}
