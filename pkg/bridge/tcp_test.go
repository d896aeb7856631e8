// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	mcnet "github.com/Tnze/go-mc/net"
	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/huynambka/quarry/pkg/codec"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/packet"
	"github.com/huynambka/quarry/pkg/teleport"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// tcpPair returns both ends of a loopback TCP connection.
func tcpPair(t *testing.T) (accepted, dialed net.Conn) {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	ch := make(chan net.Conn, 1)
	go func() {
		c, err := ln.Accept()
		if err != nil {
			close(ch)
			return
		}
		ch <- c
	}()

	dialed, err = net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	accepted, ok := <-ch
	require.True(t, ok)

	deadline := time.Now().Add(5 * time.Second)
	require.NoError(t, accepted.SetDeadline(deadline))
	require.NoError(t, dialed.SetDeadline(deadline))
	t.Cleanup(func() {
		accepted.Close()
		dialed.Close()
	})
	return accepted, dialed
}

func send(t *testing.T, c *mcnet.Conn, p pk.Packet) {
	t.Helper()
	require.NoError(t, c.WritePacket(p))
}

func recv(t *testing.T, c *mcnet.Conn) pk.Packet {
	t.Helper()
	var p pk.Packet
	require.NoError(t, c.ReadPacket(&p))
	return p
}

func TestCompressedJoinOverTCP(t *testing.T) {
	proxyClient, player := tcpPair(t)
	game, proxyServer := tcpPair(t)
	client := mcnet.WrapConn(player)
	server := mcnet.WrapConn(game)

	table := handler.NewTable()
	teleport.New(teleport.Vertical).Register(table)
	b := New(mcnet.WrapConn(proxyClient), mcnet.WrapConn(proxyServer), Config{
		SessionID:  "tcp",
		RemoteAddr: player.LocalAddr().String(),
		Table:      table,
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	done := make(chan error, 1)
	go func() { done <- b.Run(context.Background()) }()

	send(t, client, handshake(2))
	assert.Equal(t, int32(0x00), recv(t, server).ID)
	send(t, client, pk.Marshal(0x00, pk.String("Steve")))
	assert.Equal(t, int32(0x00), recv(t, server).ID)

	// Set compression travels uncompressed, everything after it compressed.
	send(t, server, pk.Marshal(0x03, pk.VarInt(256)))
	server.SetThreshold(256)
	var threshold pk.VarInt
	require.NoError(t, recv(t, client).Scan(&threshold))
	require.Equal(t, pk.VarInt(256), threshold)
	client.SetThreshold(256)

	send(t, server, pk.Marshal(0x02, pk.String("Steve")))
	assert.Equal(t, int32(0x02), recv(t, client).ID)

	send(t, client, pk.Marshal(0x03))
	assert.Equal(t, int32(0x03), recv(t, server).ID)

	// Finish configuration both ways.
	send(t, server, pk.Marshal(0x03))
	assert.Equal(t, int32(0x03), recv(t, client).ID)
	send(t, server, pk.Marshal(0x2b, pk.Long(1)))
	assert.Equal(t, int32(0x2b), recv(t, client).ID)
	send(t, client, pk.Marshal(0x03))
	assert.Equal(t, int32(0x03), recv(t, server).ID)

	// Above the threshold, so both hops deflate.
	large := bytes.Repeat([]byte("quarry"), 200)
	send(t, server, pk.Packet{ID: 0x77, Data: large})
	got := recv(t, client)
	assert.Equal(t, int32(0x77), got.ID)
	assert.Equal(t, large, []byte(got.Data))

	pos, err := packet.Position{X: 10, Y: 64, Z: -3.5, Flags: packet.FlagOnGround}.Encode()
	require.NoError(t, err)
	send(t, client, pk.Packet{ID: 0x1d, Data: pos})
	assert.Equal(t, pos, []byte(recv(t, server).Data))

	tp, err := packet.Teleport{ID: 7, X: 10, Y: 64, Z: -3.5}.Encode()
	require.NoError(t, err)
	send(t, server, pk.Packet{ID: 0x46, Data: tp})
	assert.Equal(t, tp, []byte(recv(t, client).Data))

	rot, err := packet.Rotation{Yaw: 30, Pitch: 5}.Encode()
	require.NoError(t, err)
	send(t, client, pk.Packet{ID: 0x1f, Data: rot})
	recv(t, server)

	cmd, err := packet.EncodeChatCommand("port 5")
	require.NoError(t, err)
	send(t, client, pk.Packet{ID: 0x06, Data: cmd})

	synth := recv(t, client)
	require.Equal(t, int32(0x46), synth.ID)
	moved, err := packet.ReadTeleport(codec.NewCursor(synth.Data))
	require.NoError(t, err)
	assert.Equal(t, uint8(8), moved.ID)
	assert.Equal(t, 69.0, moved.Y)

	forwarded := recv(t, server)
	assert.Equal(t, int32(0x06), forwarded.ID)
	assert.Equal(t, cmd, []byte(forwarded.Data))

	require.NoError(t, client.Close())
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(timeout):
		t.Fatal("bridge did not stop")
	}
}
