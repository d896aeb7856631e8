// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package quarry holds the configuration of the quarry Minecraft proxy.
//
// The proxy sits between a Minecraft client and server, relays every packet
// and intercepts a handful of play packets to answer "/port <distance>"
// commands with a client-side teleport. The binary lives in cmd.
package quarry
