// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package tcp implements the listening side of the Minecraft proxy.
//
// # Architecture
//
//	┌─────────┐         ┌─────────┐         ┌─────────┐
//	│ Client  │ ←─TCP─→ │  Server │ ←─TCP─→ │ Target  │
//	└─────────┘         └─────────┘         └─────────┘
//	                         ↓
//	                    ┌─────────┐
//	                    │ Bridge  │
//	                    └─────────┘
//	                         ↓
//	                    ┌─────────┐
//	                    │  Table  │
//	                    └─────────┘
//
// # Connection Flow
//
//  1. Client connects to server
//  2. The rate limiter, if any, admits or rejects the client host
//  3. Server dials the target, through the circuit breaker if any
//  4. Both sockets are wrapped in go-mc framed connections
//  5. A bridge with a fresh session id relays packets until either side
//     closes
//
// # Graceful Shutdown
//
// When the context is cancelled:
//
//  1. Server stops accepting new connections
//  2. Server waits for existing bridges (with timeout)
//  3. After ShutdownTimeout, forcefully closes remaining bridges
//  4. Returns ErrShutdownTimeout if timeout exceeded
//
// # Example
//
//	table := handler.NewTable()
//	teleport.New(teleport.Vertical).Register(table)
//
//	server := tcp.New(tcp.Config{
//		Address:       ":25565",
//		TargetAddress: "127.0.0.1:25566",
//	}, table, tcp.WithMetrics(m))
//	if err := server.Listen(ctx); err != nil {
//		log.Fatal(err)
//	}
package tcp
