// Package proto declares the concrete message surface of the relay protocol:
// the frame header the transport prepends to every record, the per-message
// schemas, and typed message structs that application code works with. This
// is the only layer that has to be extended when a new message type is added;
// the codec underneath is generic.
package proto

import (
	"encoding"
	"fmt"

	"github.com/vheck/emberwire/internal/byteorder"
	"github.com/vheck/emberwire/internal/debug"
)

const (
	CmdHeaderSize = 4 // uint16 cmd + uint16 size
	// CmdMaxSize bounds a whole frame; no schema in the registry permits
	// a record that would not fit.
	CmdMaxSize = 8 << 10
)

// client-originated commands
const (
	_ uint16 = iota
	CCmdPing
	CCmdJoin
	CCmdMove
	CCmdChat
	CCmdSetBlock
	CCmdKeepAlive

	CCmdMax
)

// server-originated commands
const (
	_ uint16 = iota + CCmdMax
	SCmdPong
	SCmdWelcome
	SCmdPlayerMoved
	SCmdChat
	SCmdBlockChanged
	SCmdEntityStats

	SCmdMax
)

var cmdNames = map[uint16]string{
	CCmdPing:      "c_ping",
	CCmdJoin:      "c_join",
	CCmdMove:      "c_move",
	CCmdChat:      "c_chat",
	CCmdSetBlock:  "c_set_block",
	CCmdKeepAlive: "c_keep_alive",

	SCmdPong:         "s_pong",
	SCmdWelcome:      "s_welcome",
	SCmdPlayerMoved:  "s_player_moved",
	SCmdChat:         "s_chat",
	SCmdBlockChanged: "s_block_changed",
	SCmdEntityStats:  "s_entity_stats",
}

// CmdName returns a stable diagnostic name for cmd, for logs and metric
// labels.
func CmdName(cmd uint16) string {
	if name, ok := cmdNames[cmd]; ok {
		return name
	}
	return fmt.Sprintf("cmd_%d", cmd)
}

// CmdHeader fronts every frame. Size is the body length in bytes, 0 for
// bodiless commands like ping and keep-alive.
type CmdHeader struct {
	Cmd  uint16
	Size uint16
}

var (
	_ encoding.BinaryMarshaler   = (*CmdHeader)(nil)
	_ encoding.BinaryUnmarshaler = (*CmdHeader)(nil)
)

func (h *CmdHeader) MarshalBinary() ([]byte, error) {
	data := make([]byte, CmdHeaderSize)
	byteorder.PutU16(data[0:2], h.Cmd)
	byteorder.PutU16(data[2:4], h.Size)
	return data, nil
}

func (h *CmdHeader) UnmarshalBinary(data []byte) error {
	if len(data) < CmdHeaderSize {
		return fmt.Errorf("header needs %d bytes, have %d", CmdHeaderSize, len(data))
	}
	h.Cmd = byteorder.U16(data[0:2])
	h.Size = byteorder.U16(data[2:4])
	return nil
}

// Body is implemented by every message that travels behind a CmdHeader.
type Body interface {
	encoding.BinaryMarshaler
	encoding.BinaryUnmarshaler
}

// NewBody returns a zero value of the message type carried by cmd, nil for
// bodiless and unknown commands.
func NewBody(cmd uint16) Body {
	switch cmd {
	case CCmdJoin:
		return &Join{}
	case CCmdMove, SCmdPlayerMoved:
		return &Move{}
	case CCmdChat, SCmdChat:
		return &Chat{}
	case CCmdSetBlock, SCmdBlockChanged:
		return &BlockChange{}
	case SCmdWelcome:
		return &Welcome{}
	case SCmdEntityStats:
		return &EntityStats{}
	}
	return nil
}

type Cmd struct {
	Header *CmdHeader
	Body   Body
}

var (
	_ encoding.BinaryMarshaler   = (*Cmd)(nil)
	_ encoding.BinaryUnmarshaler = (*Cmd)(nil)
)

// MarshalBinary writes the header with Size taken from the marshaled body,
// whatever Header.Size says.
func (cmd *Cmd) MarshalBinary() ([]byte, error) {
	var bodyBytes []byte
	if cmd.Body != nil {
		var err error
		bodyBytes, err = cmd.Body.MarshalBinary()
		if err != nil {
			return nil, fmt.Errorf("could not marshal body: %w", err)
		}
	}
	debug.Assert(CmdHeaderSize+len(bodyBytes) <= CmdMaxSize)

	header := CmdHeader{Cmd: cmd.Header.Cmd, Size: uint16(len(bodyBytes))}
	data, err := header.MarshalBinary()
	debug.Assert(err == nil)

	return append(data, bodyBytes...), nil
}

func (cmd *Cmd) UnmarshalBinary(data []byte) error {
	header := &CmdHeader{}
	if err := header.UnmarshalBinary(data); err != nil {
		return fmt.Errorf("could not unmarshal header: %w", err)
	}
	cmd.Header = header

	if int(header.Size) > len(data)-CmdHeaderSize {
		return fmt.Errorf("header declares %d body bytes, have %d", header.Size, len(data)-CmdHeaderSize)
	}

	cmd.Body = nil
	if body := NewBody(header.Cmd); body != nil {
		bodyBytes := data[CmdHeaderSize : CmdHeaderSize+int(header.Size)]
		if err := body.UnmarshalBinary(bodyBytes); err != nil {
			return fmt.Errorf("could not unmarshal body: %w", err)
		}
		cmd.Body = body
	}

	return nil
}
