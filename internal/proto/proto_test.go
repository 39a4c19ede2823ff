package proto_test

import (
	"errors"
	"testing"

	"github.com/matryer/is"
	"github.com/vheck/emberwire/internal/proto"
	"github.com/vheck/emberwire/internal/ptr"
	"github.com/vheck/emberwire/internal/schema"
	"github.com/vheck/emberwire/internal/wire"
)

func TestCmdHeaderEncoding(t *testing.T) {
	is := is.New(t)

	originalHeader := proto.CmdHeader{
		Cmd:  proto.CCmdPing,
		Size: 42,
	}

	encodedHeaderBytes, err := originalHeader.MarshalBinary()
	is.NoErr(err)
	is.Equal(len(encodedHeaderBytes), proto.CmdHeaderSize)

	decodedHeader := proto.CmdHeader{}
	err = decodedHeader.UnmarshalBinary(encodedHeaderBytes)
	is.NoErr(err)
	is.Equal(originalHeader, decodedHeader)
}

func TestCmdEncoding(t *testing.T) {
	is := is.New(t)

	t.Run("no body", func(t *testing.T) {
		is := is.New(t)

		originalCmd := proto.Cmd{
			Header: &proto.CmdHeader{Cmd: proto.CCmdPing},
		}

		encodedCmdBytes, err := originalCmd.MarshalBinary()
		is.NoErr(err)
		is.Equal(len(encodedCmdBytes), proto.CmdHeaderSize)

		decodedCmd := proto.Cmd{}
		err = decodedCmd.UnmarshalBinary(encodedCmdBytes)
		is.NoErr(err)
		is.Equal(decodedCmd.Header.Cmd, proto.CCmdPing)
		is.Equal(decodedCmd.Body, nil)
	})

	t.Run("with body", func(t *testing.T) {
		is := is.New(t)

		originalCmd := proto.Cmd{
			Header: &proto.CmdHeader{Cmd: proto.CCmdMove},
			Body:   &proto.Move{PlayerID: 7, X: -3, Y: 1200},
		}

		encodedCmdBytes, err := originalCmd.MarshalBinary()
		is.NoErr(err)

		decodedCmd := proto.Cmd{}
		err = decodedCmd.UnmarshalBinary(encodedCmdBytes)
		is.NoErr(err)
		is.Equal(decodedCmd.Header.Cmd, proto.CCmdMove)
		is.Equal(decodedCmd.Body, originalCmd.Body)
	})

	t.Run("lying size", func(t *testing.T) {
		is := is.New(t)

		originalCmd := proto.Cmd{
			Header: &proto.CmdHeader{Cmd: proto.CCmdMove},
			Body:   &proto.Move{PlayerID: 7},
		}
		encodedCmdBytes, err := originalCmd.MarshalBinary()
		is.NoErr(err)

		// inflate the declared body size past the actual bytes
		encodedCmdBytes[2] = 0xff
		decodedCmd := proto.Cmd{}
		err = decodedCmd.UnmarshalBinary(encodedCmdBytes)
		is.True(err != nil)
	})
}

func TestMessageRoundTrips(t *testing.T) {
	testCases := []struct {
		name     string
		original proto.Body
		decoded  proto.Body
	}{
		{"join full", &proto.Join{PlayerID: 1, Name: ptr.To("ember"), Token: []byte{9, 9}}, &proto.Join{}},
		{"join bare", &proto.Join{PlayerID: 2}, &proto.Join{}},
		{"welcome", &proto.Welcome{Seed: -77, PlayerID: 3, MOTD: ptr.To("hello")}, &proto.Welcome{}},
		{"move", &proto.Move{PlayerID: 4, X: -2048, Y: 512}, &proto.Move{}},
		{"chat global", &proto.Chat{PlayerID: 5, Text: "gg"}, &proto.Chat{}},
		{"chat channel", &proto.Chat{PlayerID: 5, Text: "psst", Channel: ptr.To("team")}, &proto.Chat{}},
		{"block change", &proto.BlockChange{X: 1, Y: -2, Z: 3, Block: 0x10, Flags: 0xff00}, &proto.BlockChange{}},
		{"stats bare", &proto.EntityStats{EntityID: 6, Health: 100, Mana: 50}, &proto.EntityStats{}},
		{"stats modified", &proto.EntityStats{
			EntityID: 6,
			Health:   100,
			Mana:     50,
			Modifiers: []proto.StaticModifier{
				{Kind: proto.StatHealth, Amount: 25, Duration: 12.5},
				{Kind: proto.StatSpeed, Amount: -10, Duration: 0},
			},
		}, &proto.EntityStats{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			is := is.New(t)

			data, err := tc.original.MarshalBinary()
			is.NoErr(err)

			err = tc.decoded.UnmarshalBinary(data)
			is.NoErr(err)
			is.Equal(tc.decoded, tc.original)
		})
	}
}

func TestRegistryCoversEveryBodyCarryingCmd(t *testing.T) {
	is := is.New(t)

	reg := proto.NewRegistry()

	for cmd := uint16(1); cmd < proto.SCmdMax; cmd++ {
		_, registered := reg.Lookup(cmd)
		hasBody := proto.NewBody(cmd) != nil
		is.Equal(registered, hasBody) // a schema iff the cmd carries a body
	}

	// every registered message fits inside a frame
	for cmd := uint16(1); cmd < proto.SCmdMax; cmd++ {
		if s, ok := reg.Lookup(cmd); ok {
			is.True(s.MaxSize() <= proto.CmdMaxSize-proto.CmdHeaderSize)
		}
	}
}

// Every typed message decodes through the same registry schema the dispatch
// layer validates against, so a payload that passes validation never fails
// typed decoding.
func TestValidateAgreesWithTypedDecode(t *testing.T) {
	is := is.New(t)

	reg := proto.NewRegistry()

	chat := &proto.Chat{PlayerID: 8, Text: "hi", Channel: ptr.To("dev")}
	payload, err := chat.MarshalBinary()
	is.NoErr(err)

	s, err := reg.Get(proto.CCmdChat)
	is.NoErr(err)
	is.NoErr(wire.Validate(s, payload))

	decoded := &proto.Chat{}
	is.NoErr(decoded.UnmarshalBinary(payload))
	is.Equal(decoded, chat)

	_, err = reg.Get(proto.SCmdMax + 100)
	is.True(errors.Is(err, schema.ErrUnknownPacket))
}

func TestModifierApplication(t *testing.T) {
	is := is.New(t)

	mods := []proto.Modifier{
		proto.StaticModifier{Kind: proto.StatHealth, Amount: 20},
		proto.ScalingModifier{Kind: proto.StatHealth, Factor: 1.5},
		proto.StaticModifier{Kind: proto.StatMana, Amount: 999},
	}

	// additive then multiplicative, mana modifiers don't interfere
	is.Equal(proto.ApplyModifiers(100, proto.StatHealth, mods), float32(180))
	is.Equal(proto.ApplyModifiers(50, proto.StatMana, mods), float32(1049))
	is.Equal(proto.ApplyModifiers(7, proto.StatSpeed, mods), float32(7))
}
