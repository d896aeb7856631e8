// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package bridge relays one Minecraft client connection to one server
// connection.
//
// # Login
//
// Run first relays the handshake and the login on a single goroutine: the
// client only speaks in login to answer the server, and the compression
// threshold set by the server must be in place before the client's next
// packet is read. Status pings skip straight to the pumps.
//
// # Pumps
//
// Once the client has acknowledged the login, Run starts one goroutine per
// direction. Each reads a framed packet from its
// source, forwards or dispatches it, then lets the phase tracker observe it:
//
//	client ──ReadPacket──▶ upstream pump ──▶ Table ──▶ server
//	server ──ReadPacket──▶ downstream pump ──▶ Table ──▶ client
//
// Packets of one direction are processed strictly in order. Until both
// directions are in play every packet is forwarded opaquely; after that each
// one goes through the handler table. Writes to a peer are serialized, so a
// handler on one pump may emit packets towards either side.
//
// # Teardown
//
// The first pump, or the login, to fail cancels the bridge context, which closes both
// connections and unblocks the other pump wherever it is waiting. A peer
// hanging up or Close being called is a clean shutdown and Run returns nil.
//
// # Example
//
//	table := handler.NewTable()
//	teleport.New(teleport.Vertical).Register(table)
//
//	b := bridge.New(mcnet.WrapConn(client), mcnet.WrapConn(server), bridge.Config{
//		SessionID: uuid.NewString(),
//		Table:     table,
//		Logger:    logger,
//	})
//	err := b.Run(ctx)
package bridge
