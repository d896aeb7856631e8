// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package teleport implements the port command.
//
// The handlers watch the client's position and orientation reports and the
// server's teleport packets. When the player types "/port <distance>" the
// client is sent a player_position packet that moves it distance blocks up
// (Vertical) or along its line of sight (Look). The command itself still
// reaches the server.
//
// The synthesized teleport reuses the server's id sequence: it carries the
// last id the server issued plus one, and the session keeps the server's id
// so the next real teleport is tracked normally.
package teleport
