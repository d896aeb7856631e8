// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

// Package session holds the per-bridge player state the interception
// handlers read and write.
package session

import (
	"sync"

	"github.com/huynambka/quarry/pkg/packet"
)

// Session is the mutable state of one bridged player. Every field starts
// absent and is only set once the matching packet has been observed.
//
// The two pumps of a bridge touch the Session from different goroutines, so
// all access goes through the methods below.
type Session struct {
	mu         sync.RWMutex
	position   *packet.Position
	look       *packet.Rotation
	teleportID *uint8
}

// Snapshot is a consistent copy of a Session. Nil fields have not been
// observed yet.
type Snapshot struct {
	Position   *packet.Position
	Look       *packet.Rotation
	TeleportID *uint8
}

// New returns an empty session.
func New() *Session {
	return &Session{}
}

// SetPosition records the last position the client reported.
func (s *Session) SetPosition(p packet.Position) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = &p
}

// Position returns the last reported position.
func (s *Session) Position() (packet.Position, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.position == nil {
		return packet.Position{}, false
	}
	return *s.position, true
}

// SetLook records the last orientation the client reported.
func (s *Session) SetLook(r packet.Rotation) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.look = &r
}

// Look returns the last reported orientation.
func (s *Session) Look() (packet.Rotation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.look == nil {
		return packet.Rotation{}, false
	}
	return *s.look, true
}

// SetTeleportID records the latest teleport id issued by the server.
func (s *Session) SetTeleportID(id uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teleportID = &id
}

// TeleportID returns the pending teleport id.
func (s *Session) TeleportID() (uint8, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.teleportID == nil {
		return 0, false
	}
	return *s.teleportID, true
}

// Snapshot copies all fields under one lock.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var snap Snapshot
	if s.position != nil {
		p := *s.position
		snap.Position = &p
	}
	if s.look != nil {
		l := *s.look
		snap.Look = &l
	}
	if s.teleportID != nil {
		id := *s.teleportID
		snap.TeleportID = &id
	}
	return snap
}
