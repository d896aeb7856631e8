// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package teleport

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/huynambka/quarry/pkg/packet"
)

// ErrUnknownMode is returned by ParseMode for names other than vertical and look.
var ErrUnknownMode = errors.New("unknown teleport mode")

const degToRad = math.Pi / 180

// Mode decides where a port command moves the player.
type Mode int

const (
	// Vertical moves the player straight up by the distance, or down when it
	// is negative.
	Vertical Mode = iota
	// Look moves the player along the direction they are facing.
	Look
)

// ParseMode returns the mode with the given name.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "vertical":
		return Vertical, nil
	case "look":
		return Look, nil
	default:
		return Vertical, fmt.Errorf("%w: %q", ErrUnknownMode, s)
	}
}

// String returns a string representation of the mode.
func (m Mode) String() string {
	switch m {
	case Vertical:
		return "vertical"
	case Look:
		return "look"
	default:
		return "unknown"
	}
}

// UnmarshalText lets Mode be read straight from configuration.
func (m *Mode) UnmarshalText(text []byte) error {
	mode, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = mode
	return nil
}

// Target returns the coordinates distance blocks away from pos.
func (m Mode) Target(pos packet.Position, look packet.Rotation, distance float64) (x, y, z float64) {
	if m != Look {
		return pos.X, pos.Y + distance, pos.Z
	}

	// Same vector the client derives from its rotation: yaw 0 faces +z,
	// positive pitch looks down.
	f := float64(look.Pitch) * degToRad
	g := -float64(look.Yaw) * degToRad
	dx := math.Sin(g) * math.Cos(f)
	dy := -math.Sin(f)
	dz := math.Cos(g) * math.Cos(f)

	return pos.X + dx*distance, pos.Y + dy*distance, pos.Z + dz*distance
}

// ParseCommand recognises "port <distance>" with an optional leading slash and
// returns the distance.
func ParseCommand(text string) (float64, bool) {
	fields := strings.Fields(strings.TrimPrefix(text, "/"))
	if len(fields) != 2 || fields[0] != "port" {
		return 0, false
	}
	distance, err := strconv.ParseFloat(fields[1], 64)
	if err != nil || math.IsNaN(distance) || math.IsInf(distance, 0) {
		return 0, false
	}
	return distance, true
}
