// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package teleport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/huynambka/quarry/pkg/codec"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/packet"
)

// Handlers intercepts the packets needed to answer port commands.
type Handlers struct {
	mode Mode
}

// New returns handlers that place the player according to mode.
func New(mode Mode) *Handlers {
	return &Handlers{mode: mode}
}

// Mode returns the configured mode.
func (h *Handlers) Mode() Mode {
	return h.mode
}

// Register installs the handlers in t.
func (h *Handlers) Register(t *handler.Table) {
	t.Register(packet.Upstream, packet.ChatCommand, h.ChatCommand)
	t.Register(packet.Upstream, packet.ChatCommandSigned, h.ChatCommand)
	t.Register(packet.Upstream, packet.MovePlayerPos, h.MovePlayerPos)
	t.Register(packet.Upstream, packet.MovePlayerRot, h.MovePlayerRot)
	t.Register(packet.Downstream, packet.PlayerPosition, h.PlayerPosition)
}

// ChatCommand reads the command text and, for a port command, sends the client
// a teleport to the target. The original command always reaches the server
// unchanged.
func (h *Handlers) ChatCommand(ctx context.Context, hctx *handler.Context, pkt packet.Packet) error {
	cur := codec.NewCursor(pkt.Payload)
	cur.Checkpoint()

	text, err := packet.ReadChatCommand(cur)
	if err != nil {
		return hctx.Recover(ctx, pkt, err)
	}
	hctx.Logger.Debug("chat command",
		slog.String("session", hctx.SessionID),
		slog.String("command", text))

	if distance, ok := ParseCommand(text); ok {
		if err := h.synthesize(ctx, hctx, distance); err != nil {
			return err
		}
	}

	if err := cur.Rewind(); err != nil {
		return err
	}
	return hctx.Forward(ctx, pkt, cur.Rest())
}

func (h *Handlers) synthesize(ctx context.Context, hctx *handler.Context, distance float64) error {
	snap := hctx.Session.Snapshot()
	if snap.Position == nil || snap.Look == nil || snap.TeleportID == nil {
		hctx.Logger.Debug("port command ignored, player state incomplete",
			slog.String("session", hctx.SessionID),
			slog.Bool("position", snap.Position != nil),
			slog.Bool("look", snap.Look != nil),
			slog.Bool("teleport_id", snap.TeleportID != nil))
		return nil
	}

	x, y, z := h.mode.Target(*snap.Position, *snap.Look, distance)
	tp := packet.Teleport{
		// Wraps at 255 like the one-byte id it mirrors.
		ID:    *snap.TeleportID + 1,
		X:     x,
		Y:     y,
		Z:     z,
		Yaw:   snap.Look.Yaw,
		Pitch: snap.Look.Pitch,
	}
	payload, err := tp.Encode()
	if err != nil {
		return err
	}

	err = hctx.Emit(ctx, packet.Downstream, packet.PlayerPosition, payload)
	if errors.Is(err, handler.ErrUnknownPacket) {
		hctx.Logger.Warn("port command ignored", slog.String("error", err.Error()))
		return nil
	}
	if err != nil {
		return err
	}

	hctx.Logger.Info("teleport synthesized",
		slog.String("session", hctx.SessionID),
		slog.String("mode", h.mode.String()),
		slog.Int("teleport_id", int(tp.ID)),
		slog.Float64("x", x),
		slog.Float64("y", y),
		slog.Float64("z", z))
	return nil
}

// MovePlayerPos records the reported position and forwards it re-encoded.
func (h *Handlers) MovePlayerPos(ctx context.Context, hctx *handler.Context, pkt packet.Packet) error {
	cur := codec.NewCursor(pkt.Payload)
	pos, err := packet.ReadPosition(cur)
	if err != nil {
		return hctx.Recover(ctx, pkt, err)
	}
	hctx.Session.SetPosition(pos)

	out, err := pos.Encode()
	if err != nil {
		return err
	}
	return hctx.Forward(ctx, pkt, append(out, cur.Rest()...))
}

// MovePlayerRot records the reported orientation and forwards it re-encoded.
func (h *Handlers) MovePlayerRot(ctx context.Context, hctx *handler.Context, pkt packet.Packet) error {
	cur := codec.NewCursor(pkt.Payload)
	rot, err := packet.ReadRotation(cur)
	if err != nil {
		return hctx.Recover(ctx, pkt, err)
	}
	hctx.Session.SetLook(rot)

	out, err := rot.Encode()
	if err != nil {
		return err
	}
	return hctx.Forward(ctx, pkt, append(out, cur.Rest()...))
}

// PlayerPosition records the teleport id the server expects to be
// acknowledged and forwards the packet untouched.
func (h *Handlers) PlayerPosition(ctx context.Context, hctx *handler.Context, pkt packet.Packet) error {
	tp, err := packet.ReadTeleport(codec.NewCursor(pkt.Payload))
	if err != nil {
		return hctx.Recover(ctx, pkt, err)
	}
	hctx.Session.SetTeleportID(tp.ID)

	return hctx.Forward(ctx, pkt, pkt.Payload)
}
