// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	pk "github.com/Tnze/go-mc/net/packet"
	qerrors "github.com/huynambka/quarry/pkg/errors"
	"github.com/huynambka/quarry/pkg/handler"
	"github.com/huynambka/quarry/pkg/metrics"
	"github.com/huynambka/quarry/pkg/packet"
	"github.com/huynambka/quarry/pkg/parser"
	"github.com/huynambka/quarry/pkg/session"
	"golang.org/x/sync/errgroup"
)

// Config holds the per-bridge settings.
type Config struct {
	// SessionID is a unique identifier for this bridge
	SessionID string

	// RemoteAddr is the client's network address
	RemoteAddr string

	// Table dispatches play-phase packets. A nil table forwards everything.
	Table *handler.Table

	Logger  *slog.Logger
	Metrics *metrics.Metrics
}

// Bridge relays packets between a client and a server, following the
// protocol phase and dispatching play packets through the handler table.
type Bridge struct {
	cfg     Config
	client  *peer
	server  *peer
	session *session.Session
	tracker *parser.Tracker
	hctx    handler.Context
	once    sync.Once
}

// New returns a bridge between an accepted client connection and a dialed
// server connection. The bridge owns both connections.
func New(client, server Conn, cfg Config) *Bridge {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Table == nil {
		cfg.Table = handler.NewTable()
	}
	logger := cfg.Logger.With(slog.String("session", cfg.SessionID))

	b := &Bridge{
		cfg:     cfg,
		client:  &peer{conn: client},
		server:  &peer{conn: server},
		session: session.New(),
	}
	b.tracker = parser.NewTracker(logger, func(tr parser.Transition) {
		cfg.Metrics.Phase(tr.Direction.String(), tr.To.String())
	})
	b.hctx = handler.Context{
		SessionID:  cfg.SessionID,
		RemoteAddr: cfg.RemoteAddr,
		Session:    b.session,
		Upstream:   b.server,
		Downstream: b.client,
		Logger:     logger,
		Metrics:    cfg.Metrics,
	}
	return b
}

// Session returns the player state of this bridge.
func (b *Bridge) Session() *session.Session {
	return b.session
}

// Phase returns the protocol phase of packets travelling in dir.
func (b *Bridge) Phase(dir packet.Direction) parser.Phase {
	return b.tracker.Phase(dir)
}

// SendUpstream writes a packet to the server.
func (b *Bridge) SendUpstream(ctx context.Context, id int32, payload []byte) error {
	return b.server.Send(ctx, id, payload)
}

// SendDownstream writes a packet to the client.
func (b *Bridge) SendDownstream(ctx context.Context, id int32, payload []byte) error {
	return b.client.Send(ctx, id, payload)
}

// Close closes both connections. It is safe to call more than once.
func (b *Bridge) Close() error {
	var err error
	b.once.Do(func() {
		err = errors.Join(b.client.conn.Close(), b.server.conn.Close())
	})
	return err
}

// Run relays the handshake and login, then pumps packets in both directions
// until either side fails, the context is cancelled or Close is called. Both
// connections are closed on return. A peer closing its end is a clean
// shutdown and returns nil.
func (b *Bridge) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Unblocks whichever side is still waiting on its peer.
		<-ctx.Done()
		b.Close()
		return nil
	})
	g.Go(func() error {
		if err := b.negotiate(ctx); err != nil {
			return err
		}
		g.Go(func() error {
			return b.pump(ctx, packet.Downstream)
		})
		return b.pump(ctx, packet.Upstream)
	})

	err := g.Wait()
	if err == nil || qerrors.IsClosed(err) || errors.Is(err, context.Canceled) {
		b.hctx.Logger.Debug("bridge closed")
		return nil
	}
	return err
}

// negotiate relays the handshake and, for a join, the whole login on the
// calling goroutine. go-mc fixes the compression threshold of a read when
// the read starts, so the threshold must change between reads; in login
// every client packet answers a server packet, which makes a single reader
// sufficient.
func (b *Bridge) negotiate(ctx context.Context) error {
	if _, err := b.step(ctx, packet.Upstream); err != nil {
		return err
	}
	if b.tracker.Phase(packet.Upstream) != parser.Login {
		return nil
	}

	// Login start.
	if _, err := b.step(ctx, packet.Upstream); err != nil {
		return err
	}

	for b.tracker.Phase(packet.Upstream) == parser.Login {
		if b.tracker.Phase(packet.Downstream) == parser.Login {
			eff, err := b.step(ctx, packet.Downstream)
			if err != nil {
				return err
			}
			if !eff.Reply {
				continue
			}
		}
		// A plugin or cookie response, or login acknowledged once the
		// server has sent login success.
		if _, err := b.step(ctx, packet.Upstream); err != nil {
			return err
		}
	}

	return nil
}

// pump reads from the peer sending in dir until an error occurs. It never
// returns nil.
func (b *Bridge) pump(ctx context.Context, dir packet.Direction) error {
	for {
		if _, err := b.step(ctx, dir); err != nil {
			return err
		}
	}
}

// step reads and processes one packet travelling in dir.
func (b *Bridge) step(ctx context.Context, dir packet.Direction) (parser.Effect, error) {
	src := b.client
	if dir == packet.Downstream {
		src = b.server
	}

	// Handlers keep the payload, so every read gets its own buffer.
	var p pk.Packet
	if err := src.conn.ReadPacket(&p); err != nil {
		return parser.Effect{}, qerrors.New("read", dir.String(), b.cfg.SessionID, b.cfg.RemoteAddr, err)
	}
	eff, err := b.process(ctx, dir, p)
	if err != nil {
		return parser.Effect{}, qerrors.New("process", dir.String(), b.cfg.SessionID, b.cfg.RemoteAddr, err)
	}
	return eff, nil
}

func (b *Bridge) process(ctx context.Context, dir packet.Direction, p pk.Packet) (parser.Effect, error) {
	if b.tracker.Playing() {
		if err := b.dispatch(ctx, dir, p); err != nil {
			return parser.Effect{}, err
		}
	} else {
		if err := b.hctx.Sender(dir).Send(ctx, p.ID, p.Data); err != nil {
			return parser.Effect{}, err
		}
		b.cfg.Metrics.Packet(dir.String(), "", metrics.RouteOpaque, len(p.Data))
	}

	eff, err := b.tracker.Observe(dir, p)
	if err != nil {
		return parser.Effect{}, err
	}
	if eff.Compress {
		// Only seen during login, which negotiate runs alone.
		b.client.setThreshold(eff.Threshold)
		b.server.setThreshold(eff.Threshold)
	}
	return eff, nil
}

func (b *Bridge) dispatch(ctx context.Context, dir packet.Direction, p pk.Packet) error {
	proto := b.tracker.Protocol()
	name, _ := proto.Name(dir, p.ID)
	pkt := packet.Packet{
		Direction: dir,
		ID:        p.ID,
		Name:      name,
		Payload:   p.Data,
	}

	fn, ok := b.cfg.Table.Lookup(dir, name)
	route := metrics.RouteHandled
	if !ok {
		fn = b.cfg.Table.Resolve(dir, name)
		route = metrics.RouteDefault
	}

	hctx := b.hctx
	hctx.Protocol = proto
	if err := fn(ctx, &hctx, pkt); err != nil {
		return err
	}

	b.cfg.Metrics.Packet(dir.String(), name, route, len(p.Data))
	return nil
}
