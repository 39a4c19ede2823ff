package proto

import "github.com/vheck/emberwire/internal/schema"

// One schema per message shape, declared once and shared by every
// encode/decode. Field index constants below follow declaration order; the
// two bytes of overhead a nullable or variable field costs are deliberate,
// most messages here are fixed-only and stay at their minimum size.

var (
	JoinSchema = schema.MustNew("join", 512,
		schema.Field{Name: "player_id", Kind: schema.KindUint64},
		schema.Field{Name: "name", Kind: schema.KindString, Nullable: true},
		schema.Field{Name: "token", Kind: schema.KindBytes, Nullable: true},
	)

	WelcomeSchema = schema.MustNew("welcome", 512,
		schema.Field{Name: "seed", Kind: schema.KindInt32},
		schema.Field{Name: "player_id", Kind: schema.KindUint64},
		schema.Field{Name: "motd", Kind: schema.KindString, Nullable: true},
	)

	MoveSchema = schema.MustNew("move", 64,
		schema.Field{Name: "player_id", Kind: schema.KindUint64},
		schema.Field{Name: "x", Kind: schema.KindInt32},
		schema.Field{Name: "y", Kind: schema.KindInt32},
	)

	ChatSchema = schema.MustNew("chat", 2048,
		schema.Field{Name: "player_id", Kind: schema.KindUint64},
		schema.Field{Name: "text", Kind: schema.KindString},
		schema.Field{Name: "channel", Kind: schema.KindString, Nullable: true},
	)

	// three coordinates, a block id and a flag word: 17 bytes, always
	BlockChangeSchema = schema.MustNew("block_change", 32,
		schema.Field{Name: "x", Kind: schema.KindInt32},
		schema.Field{Name: "y", Kind: schema.KindInt32},
		schema.Field{Name: "z", Kind: schema.KindInt32},
		schema.Field{Name: "block", Kind: schema.KindUint8},
		schema.Field{Name: "flags", Kind: schema.KindUint32},
	)

	ModifierSchema = schema.MustNew("modifier", 16,
		schema.Field{Name: "stat", Kind: schema.KindUint8},
		schema.Field{Name: "amount", Kind: schema.KindInt32},
		schema.Field{Name: "duration", Kind: schema.KindFloat32},
	)

	EntityStatsSchema = schema.MustNew("entity_stats", 4096,
		schema.Field{Name: "entity_id", Kind: schema.KindUint64},
		schema.Field{Name: "health", Kind: schema.KindFloat32},
		schema.Field{Name: "mana", Kind: schema.KindFloat32},
		schema.Field{Name: "modifiers", Kind: schema.KindArray, Sub: ModifierSchema, Nullable: true},
	)
)

const (
	joinPlayerID = iota
	joinName
	joinToken
)

const (
	welcomeSeed = iota
	welcomePlayerID
	welcomeMOTD
)

const (
	movePlayerID = iota
	moveX
	moveY
)

const (
	chatPlayerID = iota
	chatText
	chatChannel
)

const (
	blockChangeX = iota
	blockChangeY
	blockChangeZ
	blockChangeBlock
	blockChangeFlags
)

const (
	modifierStat = iota
	modifierAmount
	modifierDuration
)

const (
	entityStatsEntityID = iota
	entityStatsHealth
	entityStatsMana
	entityStatsModifiers
)

// NewRegistry builds the packet id to schema table consumed by dispatch.
// Bodiless commands (ping, pong, keep-alive) have no entry on purpose.
func NewRegistry() *schema.Registry {
	reg := schema.NewRegistry()

	reg.MustRegister(CCmdJoin, JoinSchema)
	reg.MustRegister(CCmdMove, MoveSchema)
	reg.MustRegister(CCmdChat, ChatSchema)
	reg.MustRegister(CCmdSetBlock, BlockChangeSchema)

	reg.MustRegister(SCmdWelcome, WelcomeSchema)
	reg.MustRegister(SCmdPlayerMoved, MoveSchema)
	reg.MustRegister(SCmdChat, ChatSchema)
	reg.MustRegister(SCmdBlockChanged, BlockChangeSchema)
	reg.MustRegister(SCmdEntityStats, EntityStatsSchema)

	return reg
}
