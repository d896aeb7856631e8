// Copyright (c) Abstract Machines
// SPDX-License-Identifier: Apache-2.0

package packet

// Play-phase packet names used by the dispatch table.
const (
	AcceptTeleportation       = "accept_teleportation"
	ChatCommand               = "chat_command"
	ChatCommandSigned         = "chat_command_signed"
	Chat                      = "chat"
	MovePlayerPos             = "move_player_pos"
	MovePlayerPosRot          = "move_player_pos_rot"
	MovePlayerRot             = "move_player_rot"
	KeepAlive                 = "keep_alive"
	ConfigurationAcknowledged = "configuration_acknowledged"

	PlayerPosition     = "player_position"
	SystemChat         = "system_chat"
	PlayerChat         = "player_chat"
	StartConfiguration = "start_configuration"
)

// Protocol holds the version-specific packet ids of one protocol release.
type Protocol struct {
	Version int32
	Release string

	// FinishConfiguration is the id of finish_configuration in the
	// configuration phase, identical in both directions.
	FinishConfiguration int32

	names [2]map[int32]string
	ids   [2]map[string]int32
}

func newProtocol(version int32, release string, finishConfig int32, serverbound, clientbound map[int32]string) *Protocol {
	p := &Protocol{
		Version:             version,
		Release:             release,
		FinishConfiguration: finishConfig,
	}
	p.names[Upstream] = serverbound
	p.names[Downstream] = clientbound
	for dir, names := range p.names {
		p.ids[dir] = make(map[string]int32, len(names))
		for id, name := range names {
			p.ids[dir][name] = id
		}
	}
	return p
}

// Name resolves a play-phase packet id travelling in dir.
func (p *Protocol) Name(dir Direction, id int32) (string, bool) {
	name, ok := p.names[dir][id]
	return name, ok
}

// ID resolves a play-phase packet name travelling in dir.
func (p *Protocol) ID(dir Direction, name string) (int32, bool) {
	id, ok := p.ids[dir][name]
	return id, ok
}

var protocols = map[int32]*Protocol{
	774: newProtocol(774, "1.21.11", 0x03,
		map[int32]string{
			0x00: AcceptTeleportation,
			0x06: ChatCommand,
			0x07: ChatCommandSigned,
			0x08: Chat,
			0x0a: "chunk_batch_received",
			0x0b: "client_command",
			0x0d: "client_information",
			0x0f: ConfigurationAcknowledged,
			0x1b: KeepAlive,
			0x1d: MovePlayerPos,
			0x1e: MovePlayerPosRot,
			0x1f: MovePlayerRot,
			0x28: "player_action",
			0x2b: "player_loaded",
		},
		map[int32]string{
			0x01: "add_entity",
			0x04: "block_changed_ack",
			0x06: "block_entity_data",
			0x07: "block_event",
			0x08: "block_update",
			0x0b: "chunk_batch_finished",
			0x0c: "chunk_batch_start",
			0x23: "entity_position_sync",
			0x25: "forget_level_chunk",
			0x2b: KeepAlive,
			0x2c: "level_chunk_with_light",
			0x30: "login",
			0x33: "move_entity_pos",
			0x34: "move_entity_pos_rot",
			0x3f: PlayerChat,
			0x43: "player_info_remove",
			0x44: "player_info_update",
			0x46: PlayerPosition,
			0x4b: "remove_entities",
			0x50: "respawn",
			0x52: "section_blocks_update",
			0x5c: "set_chunk_cache_center",
			0x61: "set_entity_data",
			0x65: "set_experience",
			0x66: "set_health",
			0x6f: "set_time",
			0x74: StartConfiguration,
			0x77: SystemChat,
			0x7b: "teleport_entity",
		},
	),
}

// Lookup returns the packet table for a protocol version.
func Lookup(version int32) (*Protocol, bool) {
	p, ok := protocols[version]
	return p, ok
}

// Versions returns the protocol versions with a known packet table.
func Versions() []int32 {
	v := make([]int32, 0, len(protocols))
	for k := range protocols {
		v = append(v, k)
	}
	return v
}
