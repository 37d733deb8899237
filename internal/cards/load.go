package cards

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sensen-game/sensen-core/internal/fixed"
)

// fileCard is the JSON authoring form of a card. Costs, amounts and
// durations are decimal strings converted exactly to fixed-point; a value
// the scale cannot represent is a load error.
type fileCard struct {
	ID     uint32     `json:"id"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Cost   string     `json:"cost"`
	Effect fileEffect `json:"effect"`
}

type fileEffect struct {
	Kind     string       `json:"kind"`
	Amount   string       `json:"amount,omitempty"`
	Count    int          `json:"count,omitempty"`
	Duration string       `json:"duration,omitempty"`
	Children []fileEffect `json:"children,omitempty"`
}

var effectKinds = map[string]EffectKind{
	"damage":     EffectDamage,
	"multi_hit":  EffectMultiHit,
	"heal":       EffectHeal,
	"draw":       EffectDraw,
	"block":      EffectBlock,
	"thorns":     EffectThorns,
	"strength":   EffectStrength,
	"vulnerable": EffectVulnerable,
	"weak":       EffectWeak,
	"accelerate": EffectAccelerate,
	"combo":      EffectCombo,
}

var cardTypes = map[string]Type{
	"attack": TypeAttack,
	"skill":  TypeSkill,
	"power":  TypePower,
}

// Load reads a JSON card catalog. The result must be byte-identical
// configuration on both peers; Load itself only validates local shape.
func Load(r io.Reader) (*Registry, error) {
	var file []fileCard
	if err := json.NewDecoder(r).Decode(&file); err != nil {
		return nil, fmt.Errorf("cards: decode catalog: %w", err)
	}
	if len(file) == 0 {
		return nil, fmt.Errorf("cards: empty catalog")
	}

	reg := NewRegistry()
	for _, fc := range file {
		if fc.ID == 0 {
			return nil, fmt.Errorf("cards: %q: id 0 is reserved", fc.Name)
		}
		typ, ok := cardTypes[fc.Type]
		if !ok {
			return nil, fmt.Errorf("cards: %q: unknown type %q", fc.Name, fc.Type)
		}
		cost, err := fixed.Parse(fc.Cost)
		if err != nil {
			return nil, fmt.Errorf("cards: %q: cost: %w", fc.Name, err)
		}
		if cost < 0 {
			return nil, fmt.Errorf("cards: %q: negative cost", fc.Name)
		}
		eff, err := parseEffect(fc.Effect)
		if err != nil {
			return nil, fmt.Errorf("cards: %q: %w", fc.Name, err)
		}
		if _, dup := reg.Get(ID(fc.ID)); dup {
			return nil, fmt.Errorf("cards: duplicate id %d", fc.ID)
		}
		reg.Register(Def{ID: ID(fc.ID), Name: fc.Name, Type: typ, Cost: cost, Effect: eff})
	}
	return reg, nil
}

func parseEffect(fe fileEffect) (Effect, error) {
	kind, ok := effectKinds[fe.Kind]
	if !ok {
		return Effect{}, fmt.Errorf("unknown effect kind %q", fe.Kind)
	}
	eff := Effect{Kind: kind, Count: fe.Count}

	var err error
	if fe.Amount != "" {
		if eff.Amount, err = fixed.Parse(fe.Amount); err != nil {
			return Effect{}, err
		}
	}
	if fe.Duration != "" {
		if eff.Duration, err = fixed.Parse(fe.Duration); err != nil {
			return Effect{}, err
		}
	}
	if kind == EffectCombo && len(fe.Children) == 0 {
		return Effect{}, fmt.Errorf("combo with no children")
	}
	for _, child := range fe.Children {
		ce, err := parseEffect(child)
		if err != nil {
			return Effect{}, err
		}
		eff.Children = append(eff.Children, ce)
	}
	return eff, nil
}
