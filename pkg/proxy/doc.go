// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package proxy wires the TCP server, the handler table and the port command
// handlers into a ready-to-run Minecraft proxy.
//
// # Architecture
//
//	Application
//	     ↓
//	┌────────────────┐
//	│ MinecraftProxy │  (Coordinator)
//	└────────────────┘
//	     ↓
//	┌────────────────┐
//	│   tcp.Server   │  (Transport, admission, dialing)
//	└────────────────┘
//	     ↓
//	┌────────────────┐
//	│ bridge.Bridge  │  (One per player)
//	└────────────────┘
//	     ↓
//	┌────────────────┐
//	│ handler.Table  │  (teleport handlers + passthrough)
//	└────────────────┘
//
// # Example
//
//	p := proxy.NewMinecraft(proxy.MinecraftConfig{
//		Port:         "25565",
//		TargetHost:   "127.0.0.1",
//		TargetPort:   "25566",
//		TeleportMode: teleport.Look,
//		Logger:       logger,
//	})
//	p.Table().Register(packet.Upstream, packet.Chat, logChat)
//
//	g.Go(func() error {
//		return p.Listen(ctx)
//	})
package proxy
