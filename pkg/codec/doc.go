// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package codec encodes and decodes packet payloads against fixed field
// layouts.
//
// A Schema is an ordered list of named wire types. Integers and floats are
// big-endian, booleans take one byte and strings carry a VarInt length prefix,
// matching the Minecraft framing convention. The primitive readers and
// writers come from github.com/Tnze/go-mc/net/packet; this package adds
// bounds checking so that a short payload surfaces as ErrMalformedPacket
// instead of a partial read.
//
// # Cursor
//
// Cursor wraps one payload and supports Checkpoint and Rewind:
//
//	cur := codec.NewCursor(payload)
//	cur.Checkpoint()
//	cmd, err := cur.ReadString()
//	...
//	if err := cur.Rewind(); err != nil {
//		return err // ErrNoCheckpoint: handler bug
//	}
//	forward(cur.Rest())
package codec
