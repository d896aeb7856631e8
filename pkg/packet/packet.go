// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packet

// Direction indicates the direction of packet flow.
type Direction int

const (
	// Upstream represents packets flowing from the client to the server.
	Upstream Direction = iota

	// Downstream represents packets flowing from the server to the client.
	Downstream
)

// String returns a string representation of the direction.
func (d Direction) String() string {
	switch d {
	case Upstream:
		return "upstream"
	case Downstream:
		return "downstream"
	default:
		return "unknown"
	}
}

// Opposite returns the other direction.
func (d Direction) Opposite() Direction {
	if d == Upstream {
		return Downstream
	}
	return Upstream
}

// Packet is one framed packet read from a peer.
type Packet struct {
	Direction Direction

	// ID is the numeric packet id for the current phase.
	ID int32

	// Name is resolved from ID through the play table. It is empty outside
	// the play phase and for ids the table does not know.
	Name string

	// Payload is the raw packet body without the id. Handlers decode it
	// lazily.
	Payload []byte
}
