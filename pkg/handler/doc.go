// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package handler provides the dispatch table that links bridged packets to
// interception logic.
//
// # Data Flow
//
//	Client → Bridge → Table.Resolve(Upstream, name) → Func → Context.Upstream → Server
//	Server → Bridge → Table.Resolve(Downstream, name) → Func → Context.Downstream → Client
//
// Only play-phase packets are dispatched. Before both directions reach play
// the bridge forwards every packet without consulting the table.
//
// # Default entry
//
// Unregistered packets go to the table's default, Passthrough, which forwards
// the raw payload to the opposite peer. The default is an ordinary table entry
// and can be replaced with SetDefault.
//
// # Handler contract
//
// A registered Func owns the packet: it may forward it (Context.Forward),
// drop it by returning nil, rewrite it, or emit extra packets on either side
// (Context.Emit). Decode failures should go through Context.Recover so that a
// corrupt payload degrades to verbatim forwarding. Any other returned error
// tears the bridge down.
//
// # Example
//
//	t := handler.NewTable()
//	t.Register(packet.Upstream, packet.Chat, func(ctx context.Context, hctx *handler.Context, pkt packet.Packet) error {
//		hctx.Logger.Info("chat", slog.Int("size", len(pkt.Payload)))
//		return hctx.Forward(ctx, pkt, pkt.Payload)
//	})
package handler
