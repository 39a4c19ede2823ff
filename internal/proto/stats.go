package proto

import "github.com/vheck/emberwire/internal/wire"

// StatKind identifies which stat a modifier adjusts.
type StatKind uint8

const (
	StatHealth StatKind = iota
	StatMana
	StatSpeed
)

// Modifier adjusts a base stat value. The variant set is closed, and being
// networkable is a property of the variant: static modifiers replicate to
// clients, scaling modifiers are derived from server-side state and are
// recomputed wherever needed instead of crossing the wire. That is why the
// record conversion lives on StaticModifier alone and not on this interface.
type Modifier interface {
	Stat() StatKind
	Apply(base float32) float32
}

var (
	_ Modifier = StaticModifier{}
	_ Modifier = ScalingModifier{}
)

// StaticModifier is a flat additive bonus with a remaining duration in
// seconds (0 means permanent).
type StaticModifier struct {
	Kind     StatKind
	Amount   int32
	Duration float32
}

func (m StaticModifier) Stat() StatKind {
	return m.Kind
}

func (m StaticModifier) Apply(base float32) float32 {
	return base + float32(m.Amount)
}

func (m StaticModifier) record() *wire.Record {
	r := wire.NewRecord(ModifierSchema)
	r.SetUint(modifierStat, uint64(m.Kind))
	r.SetInt(modifierAmount, int64(m.Amount))
	r.SetFloat32(modifierDuration, m.Duration)
	return r
}

func staticModifierFromRecord(r *wire.Record) StaticModifier {
	return StaticModifier{
		Kind:     StatKind(r.Uint(modifierStat)),
		Amount:   int32(r.Int(modifierAmount)),
		Duration: r.Float32(modifierDuration),
	}
}

// ScalingModifier multiplies a stat by a factor.
type ScalingModifier struct {
	Kind   StatKind
	Factor float32
}

func (m ScalingModifier) Stat() StatKind {
	return m.Kind
}

func (m ScalingModifier) Apply(base float32) float32 {
	return base * m.Factor
}

// ApplyModifiers folds every modifier affecting stat over base, in order.
func ApplyModifiers(base float32, stat StatKind, mods []Modifier) float32 {
	for _, mod := range mods {
		if mod.Stat() == stat {
			base = mod.Apply(base)
		}
	}
	return base
}
