// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packet

import (
	"math/rand"
	"testing"

	"github.com/huynambka/quarry/pkg/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaSizes(t *testing.T) {
	assert.Equal(t, 25, PositionSchema.Size())
	assert.Equal(t, 9, RotationSchema.Size())
	assert.Equal(t, 58, TeleportSchema.Size())
}

func TestPositionRoundTrip(t *testing.T) {
	want := Position{X: 10.0, Y: 64.0, Z: -3.5, Flags: FlagOnGround}

	b, err := want.Encode()
	require.NoError(t, err)
	require.Len(t, b, 25)

	got, err := ReadPosition(codec.NewCursor(b))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.True(t, got.OnGround())
}

func TestRotationRoundTrip(t *testing.T) {
	want := Rotation{Yaw: 90.0, Pitch: -12.25, Flags: 0}

	b, err := want.Encode()
	require.NoError(t, err)
	require.Len(t, b, 9)

	got, err := ReadRotation(codec.NewCursor(b))
	require.NoError(t, err)
	assert.Equal(t, want, got)
	assert.False(t, got.OnGround())
}

func TestTeleportRoundTrip(t *testing.T) {
	want := Teleport{
		ID:        7,
		X:         1,
		Y:         2,
		Z:         3,
		VelocityX: 0.5,
		VelocityY: -0.5,
		Yaw:       180,
		Pitch:     45,
		Flags:     0x1f,
	}

	b, err := want.Encode()
	require.NoError(t, err)
	require.Len(t, b, 58)
	assert.Equal(t, byte(7), b[0])

	got, err := ReadTeleport(codec.NewCursor(b))
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestChatCommandRoundTrip(t *testing.T) {
	b, err := EncodeChatCommand("port 5")
	require.NoError(t, err)
	assert.Equal(t, append([]byte{6}, "port 5"...), b)

	got, err := ReadChatCommand(codec.NewCursor(b))
	require.NoError(t, err)
	assert.Equal(t, "port 5", got)
}

// Any well-formed payload of exactly the schema length re-encodes to the
// same bytes, including NaN payloads and flag bytes other than 0 and 1.
func TestReencodeIsIdentity(t *testing.T) {
	rng := rand.New(rand.NewSource(25565))

	tests := []struct {
		name   string
		size   int
		decode func([]byte) ([]byte, error)
	}{
		{
			name: "position",
			size: PositionSchema.Size(),
			decode: func(b []byte) ([]byte, error) {
				p, err := ReadPosition(codec.NewCursor(b))
				if err != nil {
					return nil, err
				}
				return p.Encode()
			},
		},
		{
			name: "rotation",
			size: RotationSchema.Size(),
			decode: func(b []byte) ([]byte, error) {
				r, err := ReadRotation(codec.NewCursor(b))
				if err != nil {
					return nil, err
				}
				return r.Encode()
			},
		},
		{
			name: "teleport",
			size: TeleportSchema.Size(),
			decode: func(b []byte) ([]byte, error) {
				tp, err := ReadTeleport(codec.NewCursor(b))
				if err != nil {
					return nil, err
				}
				return tp.Encode()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 200; i++ {
				b := make([]byte, tt.size)
				rng.Read(b)

				got, err := tt.decode(b)
				require.NoError(t, err)
				require.Equal(t, b, got)
			}
		})
	}
}

func TestShortPayloads(t *testing.T) {
	_, err := ReadPosition(codec.NewCursor(make([]byte, 22)))
	assert.ErrorIs(t, err, codec.ErrMalformedPacket)

	_, err = ReadRotation(codec.NewCursor(make([]byte, 8)))
	assert.ErrorIs(t, err, codec.ErrMalformedPacket)

	_, err = ReadTeleport(codec.NewCursor(make([]byte, 57)))
	assert.ErrorIs(t, err, codec.ErrMalformedPacket)

	_, err = ReadChatCommand(codec.NewCursor([]byte{10, 'p'}))
	assert.ErrorIs(t, err, codec.ErrMalformedPacket)
}
