// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"github.com/huynambka/quarry/pkg/codec"
)

// FlagOnGround is bit 0 of the movement flags byte.
const FlagOnGround uint8 = 0x01

var (
	// PositionSchema is the layout of move_player_pos.
	PositionSchema = codec.Schema{
		{Name: "x", Type: codec.Float64},
		{Name: "y", Type: codec.Float64},
		{Name: "z", Type: codec.Float64},
		{Name: "flags", Type: codec.Uint8},
	}

	// RotationSchema is the layout of move_player_rot.
	RotationSchema = codec.Schema{
		{Name: "yaw", Type: codec.Float32},
		{Name: "pitch", Type: codec.Float32},
		{Name: "flags", Type: codec.Uint8},
	}

	// TeleportSchema is the layout of the clientbound player_position packet.
	TeleportSchema = codec.Schema{
		{Name: "teleport_id", Type: codec.Uint8},
		{Name: "x", Type: codec.Float64},
		{Name: "y", Type: codec.Float64},
		{Name: "z", Type: codec.Float64},
		{Name: "velocity_x", Type: codec.Float64},
		{Name: "velocity_y", Type: codec.Float64},
		{Name: "velocity_z", Type: codec.Float64},
		{Name: "yaw", Type: codec.Float32},
		{Name: "pitch", Type: codec.Float32},
		{Name: "flags", Type: codec.Uint8},
	}

	// ChatCommandSchema is the layout of the unsigned chat_command packet.
	ChatCommandSchema = codec.Schema{
		{Name: "command", Type: codec.String},
	}
)

// Position is a player position report.
type Position struct {
	X, Y, Z float64
	Flags   uint8
}

// OnGround reports whether the on-ground flag is set.
func (p Position) OnGround() bool {
	return p.Flags&FlagOnGround != 0
}

// ReadPosition decodes a Position at the cursor.
func ReadPosition(c *codec.Cursor) (Position, error) {
	v, err := c.ReadSchema(PositionSchema)
	if err != nil {
		return Position{}, err
	}
	return Position{
		X:     v[0].(float64),
		Y:     v[1].(float64),
		Z:     v[2].(float64),
		Flags: v[3].(uint8),
	}, nil
}

// Encode returns the wire form of p.
func (p Position) Encode() ([]byte, error) {
	return codec.Encode(PositionSchema, codec.Values{p.X, p.Y, p.Z, p.Flags})
}

// Rotation is a player orientation report. Angles are in degrees.
type Rotation struct {
	Yaw, Pitch float32
	Flags      uint8
}

// OnGround reports whether the on-ground flag is set.
func (r Rotation) OnGround() bool {
	return r.Flags&FlagOnGround != 0
}

// ReadRotation decodes a Rotation at the cursor.
func ReadRotation(c *codec.Cursor) (Rotation, error) {
	v, err := c.ReadSchema(RotationSchema)
	if err != nil {
		return Rotation{}, err
	}
	return Rotation{
		Yaw:   v[0].(float32),
		Pitch: v[1].(float32),
		Flags: v[2].(uint8),
	}, nil
}

// Encode returns the wire form of r.
func (r Rotation) Encode() ([]byte, error) {
	return codec.Encode(RotationSchema, codec.Values{r.Yaw, r.Pitch, r.Flags})
}

// Teleport is a server-forced position update. The client acknowledges it by
// echoing ID back to the server.
type Teleport struct {
	ID                              uint8
	X, Y, Z                         float64
	VelocityX, VelocityY, VelocityZ float64
	Yaw, Pitch                      float32
	Flags                           uint8
}

// ReadTeleport decodes a Teleport at the cursor.
func ReadTeleport(c *codec.Cursor) (Teleport, error) {
	v, err := c.ReadSchema(TeleportSchema)
	if err != nil {
		return Teleport{}, err
	}
	return Teleport{
		ID:        v[0].(uint8),
		X:         v[1].(float64),
		Y:         v[2].(float64),
		Z:         v[3].(float64),
		VelocityX: v[4].(float64),
		VelocityY: v[5].(float64),
		VelocityZ: v[6].(float64),
		Yaw:       v[7].(float32),
		Pitch:     v[8].(float32),
		Flags:     v[9].(uint8),
	}, nil
}

// Encode returns the wire form of t.
func (t Teleport) Encode() ([]byte, error) {
	return codec.Encode(TeleportSchema, codec.Values{
		t.ID, t.X, t.Y, t.Z, t.VelocityX, t.VelocityY, t.VelocityZ, t.Yaw, t.Pitch, t.Flags,
	})
}

// ReadChatCommand decodes the command text at the cursor. The text is sent by
// the client without the leading slash, though older clients and test tools
// may include it.
func ReadChatCommand(c *codec.Cursor) (string, error) {
	v, err := c.ReadSchema(ChatCommandSchema)
	if err != nil {
		return "", err
	}
	return v[0].(string), nil
}

// EncodeChatCommand returns the wire form of a chat command.
func EncodeChatCommand(cmd string) ([]byte, error) {
	return codec.Encode(ChatCommandSchema, codec.Values{cmd})
}
