// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package parser follows the protocol phase of a bridged connection.
//
// # Phases
//
// A Minecraft connection moves through
//
//	handshake → status                         (server list ping)
//	handshake → login → configuration → play   (joining)
//	play → configuration → play                (server transfer, resource reload)
//
// Packet ids are only meaningful within a phase, and the two directions
// switch at different packets: the server enters configuration when it sends
// login success, the client when it sends login acknowledged. Tracker keeps
// one phase per direction and the bridge dispatches to handlers only when
// both are in play.
//
// # Observed packets
//
//	Direction   Phase          Id     Effect
//	upstream    handshake      0x00   version + intent → status or login
//	downstream  login          0x01   encryption request → ErrEncryptionUnsupported
//	downstream  login          0x02   login success → downstream configuration
//	downstream  login          0x03   set compression → Effect{Compress}
//	downstream  login          0x04   plugin request → Effect{Reply}
//	downstream  login          0x05   cookie request → Effect{Reply}
//	upstream    login          0x03   login acknowledged → upstream configuration
//	both        configuration  table  finish configuration → play
//	downstream  play           table  start configuration → configuration
//	upstream    play           table  configuration acknowledged → configuration
//
// Observe is called after the packet has been forwarded, so a compression
// threshold takes effect from the next packet on, matching what both peers
// expect. Effect.Reply tells a caller that relays login on one goroutine to
// read the client's answer next.
package parser
