// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package teleport

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/huynambka/quarry/pkg/codec"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/packet"
	"github.com/huynambka/quarry/pkg/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct {
	id      int32
	payload []byte
}

type recorder struct {
	sent []sent
}

func (r *recorder) Send(ctx context.Context, id int32, payload []byte) error {
	r.sent = append(r.sent, sent{id: id, payload: append([]byte(nil), payload...)})
	return nil
}

type fixture struct {
	hctx  *handler.Context
	table *handler.Table
	up    *recorder
	down  *recorder
}

func newFixture(t *testing.T, mode Mode) *fixture {
	t.Helper()
	proto, ok := packet.Lookup(774)
	require.True(t, ok)

	f := &fixture{
		table: handler.NewTable(),
		up:    &recorder{},
		down:  &recorder{},
	}
	f.hctx = &handler.Context{
		SessionID:  "test",
		Session:    session.New(),
		Protocol:   proto,
		Upstream:   f.up,
		Downstream: f.down,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	New(mode).Register(f.table)
	return f
}

func (f *fixture) dispatch(t *testing.T, dir packet.Direction, name string, payload []byte) {
	t.Helper()
	id, ok := f.hctx.Protocol.ID(dir, name)
	require.True(t, ok)

	pkt := packet.Packet{Direction: dir, ID: id, Name: name, Payload: payload}
	require.NoError(t, f.table.Resolve(dir, name)(context.Background(), f.hctx, pkt))
}

func mustEncode(t *testing.T) func(b []byte, err error) []byte {
	return func(b []byte, err error) []byte {
		t.Helper()
		require.NoError(t, err)
		return b
	}
}

func TestRegister(t *testing.T) {
	f := newFixture(t, Vertical)
	assert.Equal(t, 5, f.table.Len())

	for _, k := range []handler.Key{
		{Direction: packet.Upstream, Name: packet.ChatCommand},
		{Direction: packet.Upstream, Name: packet.MovePlayerPos},
		{Direction: packet.Upstream, Name: packet.MovePlayerRot},
		{Direction: packet.Downstream, Name: packet.PlayerPosition},
	} {
		_, ok := f.table.Lookup(k.Direction, k.Name)
		assert.True(t, ok, "%s %s", k.Direction, k.Name)
	}
}

func TestStateTracking(t *testing.T) {
	f := newFixture(t, Vertical)

	pos := packet.Position{X: 10, Y: 64, Z: -3.5, Flags: packet.FlagOnGround}
	payload := mustEncode(t)(pos.Encode())
	f.dispatch(t, packet.Upstream, packet.MovePlayerPos, payload)

	got, ok := f.hctx.Session.Position()
	require.True(t, ok)
	assert.Equal(t, pos, got)
	assert.True(t, got.OnGround())

	require.Len(t, f.up.sent, 1)
	assert.Equal(t, int32(0x1d), f.up.sent[0].id)
	assert.Equal(t, payload, f.up.sent[0].payload)
	assert.Empty(t, f.down.sent)

	rot := packet.Rotation{Yaw: 90, Pitch: -12.5}
	payload = mustEncode(t)(rot.Encode())
	f.dispatch(t, packet.Upstream, packet.MovePlayerRot, payload)

	look, ok := f.hctx.Session.Look()
	require.True(t, ok)
	assert.Equal(t, rot, look)
	require.Len(t, f.up.sent, 2)
	assert.Equal(t, payload, f.up.sent[1].payload)
}

func TestTrailingBytesPreserved(t *testing.T) {
	f := newFixture(t, Vertical)

	payload := mustEncode(t)(packet.Position{X: 1, Y: 2, Z: 3}.Encode())
	payload = append(payload, 0xca, 0xfe)
	f.dispatch(t, packet.Upstream, packet.MovePlayerPos, payload)

	require.Len(t, f.up.sent, 1)
	assert.Equal(t, payload, f.up.sent[0].payload)
}

func TestTeleportIDPropagation(t *testing.T) {
	f := newFixture(t, Vertical)

	server := packet.Teleport{ID: 7, X: 10, Y: 64, Z: -3.5, Yaw: 45, Pitch: 10, Flags: 0x10}
	serverPayload := mustEncode(t)(server.Encode())
	f.dispatch(t, packet.Downstream, packet.PlayerPosition, serverPayload)

	require.Len(t, f.down.sent, 1)
	assert.Equal(t, serverPayload, f.down.sent[0].payload)
	id, ok := f.hctx.Session.TeleportID()
	require.True(t, ok)
	assert.Equal(t, uint8(7), id)

	f.dispatch(t, packet.Upstream, packet.MovePlayerPos, mustEncode(t)(packet.Position{X: 10, Y: 64, Z: -3.5}.Encode()))
	f.dispatch(t, packet.Upstream, packet.MovePlayerRot, mustEncode(t)(packet.Rotation{Yaw: 45, Pitch: 10}.Encode()))

	cmd := mustEncode(t)(packet.EncodeChatCommand("port 5"))
	f.dispatch(t, packet.Upstream, packet.ChatCommand, cmd)

	require.Len(t, f.down.sent, 2)
	synth := f.down.sent[1]
	assert.Equal(t, int32(0x46), synth.id)
	require.Len(t, synth.payload, packet.TeleportSchema.Size())

	tp, err := packet.ReadTeleport(codec.NewCursor(synth.payload))
	require.NoError(t, err)
	assert.Equal(t, packet.Teleport{ID: 8, X: 10, Y: 69, Z: -3.5, Yaw: 45, Pitch: 10}, tp)

	// The command itself reaches the server unchanged, after the teleport.
	last := f.up.sent[len(f.up.sent)-1]
	assert.Equal(t, int32(0x06), last.id)
	assert.Equal(t, cmd, last.payload)

	// The session keeps the server's id.
	id, _ = f.hctx.Session.TeleportID()
	assert.Equal(t, uint8(7), id)
}

func TestCommandWithoutState(t *testing.T) {
	tests := []struct {
		name  string
		setup func(f *fixture)
	}{
		{
			name:  "nothing known",
			setup: func(f *fixture) {},
		},
		{
			name: "no position",
			setup: func(f *fixture) {
				f.hctx.Session.SetLook(packet.Rotation{})
				f.hctx.Session.SetTeleportID(1)
			},
		},
		{
			name: "no look",
			setup: func(f *fixture) {
				f.hctx.Session.SetPosition(packet.Position{})
				f.hctx.Session.SetTeleportID(1)
			},
		},
		{
			name: "no teleport id",
			setup: func(f *fixture) {
				f.hctx.Session.SetPosition(packet.Position{})
				f.hctx.Session.SetLook(packet.Rotation{})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Vertical)
			tt.setup(f)

			cmd := mustEncode(t)(packet.EncodeChatCommand("/port 5"))
			f.dispatch(t, packet.Upstream, packet.ChatCommand, cmd)

			assert.Empty(t, f.down.sent)
			require.Len(t, f.up.sent, 1)
			assert.Equal(t, cmd, f.up.sent[0].payload)
		})
	}
}

func TestOtherCommandsForwarded(t *testing.T) {
	f := newFixture(t, Vertical)
	f.hctx.Session.SetPosition(packet.Position{})
	f.hctx.Session.SetLook(packet.Rotation{})
	f.hctx.Session.SetTeleportID(3)

	for _, text := range []string{"gamemode creative", "port", "port up", "portal 5"} {
		cmd := mustEncode(t)(packet.EncodeChatCommand(text))
		f.dispatch(t, packet.Upstream, packet.ChatCommand, cmd)
	}

	assert.Empty(t, f.down.sent)
	assert.Len(t, f.up.sent, 4)
}

func TestMalformedPositionForwarded(t *testing.T) {
	f := newFixture(t, Vertical)

	payload := make([]byte, 22)
	for i := range payload {
		payload[i] = byte(i)
	}
	f.dispatch(t, packet.Upstream, packet.MovePlayerPos, payload)

	require.Len(t, f.up.sent, 1)
	assert.Equal(t, payload, f.up.sent[0].payload)
	_, ok := f.hctx.Session.Position()
	assert.False(t, ok)
}

func TestMalformedTeleportForwarded(t *testing.T) {
	f := newFixture(t, Vertical)
	f.hctx.Session.SetTeleportID(4)

	payload := []byte{9, 1, 2}
	f.dispatch(t, packet.Downstream, packet.PlayerPosition, payload)

	require.Len(t, f.down.sent, 1)
	assert.Equal(t, payload, f.down.sent[0].payload)
	id, _ := f.hctx.Session.TeleportID()
	assert.Equal(t, uint8(4), id)
}

func TestLookMode(t *testing.T) {
	f := newFixture(t, Look)
	f.hctx.Session.SetPosition(packet.Position{X: 0, Y: 64, Z: 0})
	f.hctx.Session.SetLook(packet.Rotation{Yaw: 0, Pitch: 0})
	f.hctx.Session.SetTeleportID(255)

	f.dispatch(t, packet.Upstream, packet.ChatCommand, mustEncode(t)(packet.EncodeChatCommand("port 10")))

	require.Len(t, f.down.sent, 1)
	tp, err := packet.ReadTeleport(codec.NewCursor(f.down.sent[0].payload))
	require.NoError(t, err)
	assert.Equal(t, uint8(0), tp.ID)
	assert.InDelta(t, 0, tp.X, 1e-9)
	assert.InDelta(t, 64, tp.Y, 1e-9)
	assert.InDelta(t, 10, tp.Z, 1e-9)
}
