package proto

import (
	"encoding"
	"fmt"

	"github.com/vheck/emberwire/internal/ptr"
	"github.com/vheck/emberwire/internal/wire"
)

// Typed messages over the generic record engine. Application code never sees
// offsets or bitmasks, only these structs; nil pointer/slice fields map to
// absent nullable fields on the wire.

type Join struct {
	PlayerID uint64
	Name     *string
	Token    []byte
}

var (
	_ encoding.BinaryMarshaler   = (*Join)(nil)
	_ encoding.BinaryUnmarshaler = (*Join)(nil)
)

func (m *Join) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(JoinSchema)
	r.SetUint(joinPlayerID, m.PlayerID)
	if m.Name != nil {
		r.SetString(joinName, *m.Name)
	}
	if m.Token != nil {
		r.SetBytes(joinToken, m.Token)
	}
	return wire.Encode(r)
}

func (m *Join) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(JoinSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode join: %w", err)
	}
	m.PlayerID = r.Uint(joinPlayerID)
	m.Name = nil
	if r.Present(joinName) {
		m.Name = ptr.To(r.String(joinName))
	}
	m.Token = nil
	if r.Present(joinToken) {
		m.Token = r.Bytes(joinToken)
	}
	return nil
}

type Welcome struct {
	Seed     int32
	PlayerID uint64
	MOTD     *string
}

var (
	_ encoding.BinaryMarshaler   = (*Welcome)(nil)
	_ encoding.BinaryUnmarshaler = (*Welcome)(nil)
)

func (m *Welcome) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(WelcomeSchema)
	r.SetInt(welcomeSeed, int64(m.Seed))
	r.SetUint(welcomePlayerID, m.PlayerID)
	if m.MOTD != nil {
		r.SetString(welcomeMOTD, *m.MOTD)
	}
	return wire.Encode(r)
}

func (m *Welcome) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(WelcomeSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode welcome: %w", err)
	}
	m.Seed = int32(r.Int(welcomeSeed))
	m.PlayerID = r.Uint(welcomePlayerID)
	m.MOTD = nil
	if r.Present(welcomeMOTD) {
		m.MOTD = ptr.To(r.String(welcomeMOTD))
	}
	return nil
}

// Move doubles as the client's movement report and the server's broadcast of
// it; both directions share one schema.
type Move struct {
	PlayerID uint64
	X, Y     int32
}

var (
	_ encoding.BinaryMarshaler   = (*Move)(nil)
	_ encoding.BinaryUnmarshaler = (*Move)(nil)
)

func (m *Move) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(MoveSchema)
	r.SetUint(movePlayerID, m.PlayerID)
	r.SetInt(moveX, int64(m.X))
	r.SetInt(moveY, int64(m.Y))
	return wire.Encode(r)
}

func (m *Move) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(MoveSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode move: %w", err)
	}
	m.PlayerID = r.Uint(movePlayerID)
	m.X = int32(r.Int(moveX))
	m.Y = int32(r.Int(moveY))
	return nil
}

type Chat struct {
	PlayerID uint64
	Text     string
	// Channel is nil for global chat.
	Channel *string
}

var (
	_ encoding.BinaryMarshaler   = (*Chat)(nil)
	_ encoding.BinaryUnmarshaler = (*Chat)(nil)
)

func (m *Chat) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(ChatSchema)
	r.SetUint(chatPlayerID, m.PlayerID)
	r.SetString(chatText, m.Text)
	if m.Channel != nil {
		r.SetString(chatChannel, *m.Channel)
	}
	return wire.Encode(r)
}

func (m *Chat) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(ChatSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode chat: %w", err)
	}
	m.PlayerID = r.Uint(chatPlayerID)
	m.Text = r.String(chatText)
	m.Channel = nil
	if r.Present(chatChannel) {
		m.Channel = ptr.To(r.String(chatChannel))
	}
	return nil
}

// BlockChange doubles as the client's set-block request and the server's
// world-change broadcast.
type BlockChange struct {
	X, Y, Z int32
	Block   uint8
	Flags   uint32
}

var (
	_ encoding.BinaryMarshaler   = (*BlockChange)(nil)
	_ encoding.BinaryUnmarshaler = (*BlockChange)(nil)
)

func (m *BlockChange) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(BlockChangeSchema)
	r.SetInt(blockChangeX, int64(m.X))
	r.SetInt(blockChangeY, int64(m.Y))
	r.SetInt(blockChangeZ, int64(m.Z))
	r.SetUint(blockChangeBlock, uint64(m.Block))
	r.SetUint(blockChangeFlags, uint64(m.Flags))
	return wire.Encode(r)
}

func (m *BlockChange) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(BlockChangeSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode block change: %w", err)
	}
	m.X = int32(r.Int(blockChangeX))
	m.Y = int32(r.Int(blockChangeY))
	m.Z = int32(r.Int(blockChangeZ))
	m.Block = uint8(r.Uint(blockChangeBlock))
	m.Flags = uint32(r.Uint(blockChangeFlags))
	return nil
}

type EntityStats struct {
	EntityID uint64
	Health   float32
	Mana     float32
	// Modifiers is nil when the entity carries none worth replicating.
	Modifiers []StaticModifier
}

var (
	_ encoding.BinaryMarshaler   = (*EntityStats)(nil)
	_ encoding.BinaryUnmarshaler = (*EntityStats)(nil)
)

func (m *EntityStats) MarshalBinary() ([]byte, error) {
	r := wire.NewRecord(EntityStatsSchema)
	r.SetUint(entityStatsEntityID, m.EntityID)
	r.SetFloat32(entityStatsHealth, m.Health)
	r.SetFloat32(entityStatsMana, m.Mana)
	if m.Modifiers != nil {
		elems := make([]*wire.Record, len(m.Modifiers))
		for i, mod := range m.Modifiers {
			elems[i] = mod.record()
		}
		r.SetArray(entityStatsModifiers, elems)
	}
	return wire.Encode(r)
}

func (m *EntityStats) UnmarshalBinary(data []byte) error {
	r, err := wire.Decode(EntityStatsSchema, data)
	if err != nil {
		return fmt.Errorf("could not decode entity stats: %w", err)
	}
	m.EntityID = r.Uint(entityStatsEntityID)
	m.Health = r.Float32(entityStatsHealth)
	m.Mana = r.Float32(entityStatsMana)
	m.Modifiers = nil
	if r.Present(entityStatsModifiers) {
		elems := r.Array(entityStatsModifiers)
		m.Modifiers = make([]StaticModifier, len(elems))
		for i, e := range elems {
			m.Modifiers[i] = staticModifierFromRecord(e)
		}
	}
	return nil
}
