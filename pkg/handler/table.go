// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package handler

import (
	"context"

	"github.com/huynambka/quarry/pkg/packet"
)

// Func handles one play-phase packet. Once a Func other than the default has
// run, forwarding the packet is its own responsibility.
type Func func(ctx context.Context, hctx *Context, pkt packet.Packet) error

// Key identifies a handler slot.
type Key struct {
	Direction packet.Direction
	Name      string
}

// Table maps (direction, packet name) to a handler. It is filled once before
// any bridge starts and only read afterwards, so it needs no locking.
type Table struct {
	handlers map[Key]Func
	fallback Func
}

// NewTable returns a table whose default entry is Passthrough.
func NewTable() *Table {
	return &Table{
		handlers: make(map[Key]Func),
		fallback: Passthrough,
	}
}

// Register sets the handler for (dir, name), replacing any previous one.
func (t *Table) Register(dir packet.Direction, name string, fn Func) {
	t.handlers[Key{Direction: dir, Name: name}] = fn
}

// SetDefault replaces the handler used for unregistered packets.
func (t *Table) SetDefault(fn Func) {
	t.fallback = fn
}

// Lookup returns the handler registered for (dir, name), if any.
func (t *Table) Lookup(dir packet.Direction, name string) (Func, bool) {
	fn, ok := t.handlers[Key{Direction: dir, Name: name}]
	return fn, ok
}

// Resolve returns the handler registered for (dir, name) or the default.
func (t *Table) Resolve(dir packet.Direction, name string) Func {
	if fn, ok := t.Lookup(dir, name); ok {
		return fn
	}
	return t.fallback
}

// Len returns the number of registered handlers, not counting the default.
func (t *Table) Len() int {
	return len(t.handlers)
}

// Passthrough forwards the raw payload to the opposite peer.
func Passthrough(ctx context.Context, hctx *Context, pkt packet.Packet) error {
	return hctx.Forward(ctx, pkt, pkt.Payload)
}
