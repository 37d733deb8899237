// Package cards defines the card catalog: definitions, effects, and the
// registry consumed by the simulation.
//
// The catalog is configuration, not logic. Both peers must load an
// identical catalog; a card identifier that one peer can resolve and the
// other cannot is a desync, not a recoverable condition.
package cards

import (
	"fmt"

	"github.com/sensen-game/sensen-core/internal/fixed"
)

// ID identifies a card type. ID ranges follow the catalog layout:
// 1-99 attacks, 100-199 skills, 200-299 powers.
type ID uint32

// Type classifies a card.
type Type uint8

const (
	TypeAttack Type = iota
	TypeSkill
	TypePower
)

func (t Type) String() string {
	switch t {
	case TypeAttack:
		return "attack"
	case TypeSkill:
		return "skill"
	case TypePower:
		return "power"
	default:
		return fmt.Sprintf("type(%d)", uint8(t))
	}
}

// EffectKind discriminates what an effect does when applied.
type EffectKind uint8

const (
	// EffectDamage deals Amount damage to the opponent.
	EffectDamage EffectKind = iota
	// EffectMultiHit deals Amount damage Count times.
	EffectMultiHit
	// EffectHeal restores Amount health to the player, clamped at max.
	EffectHeal
	// EffectDraw draws Count cards at no cost.
	EffectDraw
	// EffectBlock grants Amount block.
	EffectBlock
	// EffectThorns grants Amount thorns.
	EffectThorns
	// EffectStrength permanently raises outgoing damage by Amount.
	EffectStrength
	// EffectVulnerable makes the opponent take 50% more damage for Duration.
	EffectVulnerable
	// EffectWeak makes the opponent deal 25% less damage for Duration.
	EffectWeak
	// EffectAccelerate raises the player's accrual rate by Amount for Duration.
	EffectAccelerate
	// EffectCombo applies Children in order.
	EffectCombo
)

// Effect describes one card effect. Amount and Duration are fixed-point;
// Duration is in seconds and converted to ticks by the simulation.
type Effect struct {
	Kind     EffectKind  `json:"kind"`
	Amount   fixed.Milli `json:"amount,omitempty"`
	Count    int         `json:"count,omitempty"`
	Duration fixed.Milli `json:"duration,omitempty"`
	Children []Effect    `json:"children,omitempty"`
}

// Def is the shared definition of a card type.
type Def struct {
	ID     ID
	Name   string
	Type   Type
	Cost   fixed.Milli
	Effect Effect
}

// Registry holds all card definitions for a match.
type Registry struct {
	byID  map[ID]Def
	order []ID
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byID: make(map[ID]Def)}
}

// Register adds a definition. Re-registering an ID is a catalog authoring
// bug and panics, matching how a duplicate would be caught at startup.
func (r *Registry) Register(def Def) {
	if _, dup := r.byID[def.ID]; dup {
		panic(fmt.Sprintf("cards: duplicate id %d (%s)", def.ID, def.Name))
	}
	r.byID[def.ID] = def
	r.order = append(r.order, def.ID)
}

// Get looks up a definition by ID.
func (r *Registry) Get(id ID) (Def, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// All returns every definition in registration order.
func (r *Registry) All() []Def {
	out := make([]Def, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// Len returns the number of registered cards.
func (r *Registry) Len() int { return len(r.byID) }
