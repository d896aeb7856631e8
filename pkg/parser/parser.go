// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	pk "github.com/Tnze/go-mc/net/packet"
	"github.com/huynambka/quarry/pkg/packet"
)

var (
	// ErrEncryptionUnsupported is returned when the server asks for an
	// encrypted session. The bridge cannot read an encrypted stream.
	ErrEncryptionUnsupported = errors.New("encrypted sessions are not supported, run the server in offline mode")

	// ErrBadHandshake is returned when the first client packet is not a
	// handshake the tracker can read.
	ErrBadHandshake = errors.New("invalid handshake")
)

// Handshake and login ids are fixed across protocol versions.
const (
	handshakeID        = 0x00
	loginEncryptionID  = 0x01
	loginSuccessID     = 0x02
	loginCompressionID = 0x03
	loginPluginID      = 0x04
	loginCookieID      = 0x05
	loginAckID         = 0x03

	intentStatus   = 1
	intentLogin    = 2
	intentTransfer = 3
)

// Phase is the coarse protocol stage that decides how packet ids are read.
type Phase int

const (
	Handshake Phase = iota
	Status
	Login
	Configuration
	Play
)

// String returns a string representation of the phase.
func (p Phase) String() string {
	switch p {
	case Handshake:
		return "handshake"
	case Status:
		return "status"
	case Login:
		return "login"
	case Configuration:
		return "configuration"
	case Play:
		return "play"
	default:
		return "unknown"
	}
}

// Effect tells the bridge what to change on its connections after a packet
// was observed.
type Effect struct {
	// Compress is set when the server enabled compression; Threshold is the
	// new threshold for both connections.
	Compress  bool
	Threshold int

	// Reply is set when the server waits for the client to answer before it
	// continues the login.
	Reply bool
}

// Transition is a phase change of one direction.
type Transition struct {
	Direction packet.Direction
	From, To  Phase
}

// Tracker follows the phase of each direction of one bridge by watching the
// handshake, login and configuration packets as they pass.
type Tracker struct {
	mu       sync.RWMutex
	phase    [2]Phase
	version  int32
	protocol *packet.Protocol
	logger   *slog.Logger
	notify   func(Transition)
}

// NewTracker returns a tracker in the handshake phase. notify, if not nil, is
// called for every transition.
func NewTracker(logger *slog.Logger, notify func(Transition)) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{logger: logger, notify: notify}
}

// Phase returns the phase of packets travelling in dir.
func (t *Tracker) Phase(dir packet.Direction) Phase {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase[dir]
}

// Playing reports whether both directions are in the play phase.
func (t *Tracker) Playing() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.phase[packet.Upstream] == Play && t.phase[packet.Downstream] == Play
}

// Version returns the protocol version announced in the handshake, or 0.
func (t *Tracker) Version() int32 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.version
}

// Protocol returns the packet table for the negotiated version, or nil when
// the version is unknown.
func (t *Tracker) Protocol() *packet.Protocol {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.protocol
}

// Observe inspects a packet that has just been forwarded in direction dir and
// advances the phase it implies.
func (t *Tracker) Observe(dir packet.Direction, p pk.Packet) (Effect, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch t.phase[dir] {
	case Handshake:
		if dir == packet.Upstream {
			return Effect{}, t.handshake(p)
		}

	case Login:
		return t.login(dir, p)

	case Configuration:
		if t.protocol != nil && p.ID == t.protocol.FinishConfiguration {
			t.set(dir, Play)
		}

	case Play:
		if t.protocol == nil {
			break
		}
		name, _ := t.protocol.Name(dir, p.ID)
		if (dir == packet.Downstream && name == packet.StartConfiguration) ||
			(dir == packet.Upstream && name == packet.ConfigurationAcknowledged) {
			t.set(dir, Configuration)
		}
	}

	return Effect{}, nil
}

func (t *Tracker) handshake(p pk.Packet) error {
	if p.ID != handshakeID {
		return fmt.Errorf("%w: packet id 0x%02x", ErrBadHandshake, p.ID)
	}

	var (
		version pk.VarInt
		address pk.String
		port    pk.UnsignedShort
		intent  pk.VarInt
	)
	if err := p.Scan(&version, &address, &port, &intent); err != nil {
		return fmt.Errorf("%w: %v", ErrBadHandshake, err)
	}

	t.version = int32(version)
	if proto, ok := packet.Lookup(t.version); ok {
		t.protocol = proto
	}

	switch intent {
	case intentStatus:
		t.set(packet.Upstream, Status)
		t.set(packet.Downstream, Status)
	case intentLogin, intentTransfer:
		if t.protocol == nil {
			t.logger.Warn("no packet table for protocol version, bridge stays opaque",
				slog.Int("protocol", int(version)),
				slog.String("address", string(address)))
		}
		t.set(packet.Upstream, Login)
		t.set(packet.Downstream, Login)
	default:
		return fmt.Errorf("%w: intent %d", ErrBadHandshake, intent)
	}

	return nil
}

func (t *Tracker) login(dir packet.Direction, p pk.Packet) (Effect, error) {
	if dir == packet.Upstream {
		if p.ID == loginAckID {
			t.set(packet.Upstream, Configuration)
		}
		return Effect{}, nil
	}

	switch p.ID {
	case loginEncryptionID:
		return Effect{}, ErrEncryptionUnsupported

	case loginCompressionID:
		var threshold pk.VarInt
		if err := p.Scan(&threshold); err != nil {
			return Effect{}, fmt.Errorf("set compression: %w", err)
		}
		t.logger.Debug("compression enabled", slog.Int("threshold", int(threshold)))
		return Effect{Compress: true, Threshold: int(threshold)}, nil

	case loginPluginID, loginCookieID:
		return Effect{Reply: true}, nil

	case loginSuccessID:
		t.set(packet.Downstream, Configuration)
	}

	return Effect{}, nil
}

func (t *Tracker) set(dir packet.Direction, to Phase) {
	from := t.phase[dir]
	if from == to {
		return
	}
	t.phase[dir] = to
	t.logger.Debug("phase changed",
		slog.String("direction", dir.String()),
		slog.String("from", from.String()),
		slog.String("to", to.String()))
	if t.notify != nil {
		t.notify(Transition{Direction: dir, From: from, To: to})
	}
}
