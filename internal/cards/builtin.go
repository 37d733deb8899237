package cards

import "github.com/sensen-game/sensen-core/internal/fixed"

// Card IDs of the built-in set.
const (
	Strike         ID = 1
	Bash           ID = 2
	Clothesline    ID = 5
	IronWave       ID = 7
	PommelStrike   ID = 8
	SwordBoomerang ID = 9
	Feed           ID = 24
	Defend         ID = 100
	Flex           ID = 102
	ShrugItOff     ID = 104
	FlameBarrier   ID = 112
	SeeingRed      ID = 119
	Inflame        ID = 205
)

// Builtin returns the built-in catalog. Costs and magnitudes are authored
// as decimal strings to make the fixed-point values obvious at a glance.
func Builtin() *Registry {
	r := NewRegistry()

	// Attacks (1-99)

	r.Register(Def{
		ID: Strike, Name: "Strike", Type: TypeAttack,
		Cost:   fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectDamage, Amount: fixed.MustParse("60")},
	})
	r.Register(Def{
		ID: Bash, Name: "Bash", Type: TypeAttack,
		Cost: fixed.MustParse("2.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectDamage, Amount: fixed.MustParse("80")},
			{Kind: EffectVulnerable, Duration: fixed.MustParse("2.0")},
		}},
	})
	r.Register(Def{
		ID: Clothesline, Name: "Clothesline", Type: TypeAttack,
		Cost: fixed.MustParse("2.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectDamage, Amount: fixed.MustParse("120")},
			{Kind: EffectWeak, Duration: fixed.MustParse("2.0")},
		}},
	})
	r.Register(Def{
		ID: IronWave, Name: "Iron Wave", Type: TypeAttack,
		Cost: fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectDamage, Amount: fixed.MustParse("50")},
			{Kind: EffectBlock, Amount: fixed.MustParse("50")},
		}},
	})
	r.Register(Def{
		ID: PommelStrike, Name: "Pommel Strike", Type: TypeAttack,
		Cost: fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectDamage, Amount: fixed.MustParse("90")},
			{Kind: EffectDraw, Count: 1},
		}},
	})
	r.Register(Def{
		ID: SwordBoomerang, Name: "Sword Boomerang", Type: TypeAttack,
		Cost:   fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectMultiHit, Amount: fixed.MustParse("30"), Count: 3},
	})
	r.Register(Def{
		ID: Feed, Name: "Feed", Type: TypeAttack,
		Cost: fixed.MustParse("2.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectDamage, Amount: fixed.MustParse("100")},
			{Kind: EffectHeal, Amount: fixed.MustParse("40")},
		}},
	})

	// Skills (100-199)

	r.Register(Def{
		ID: Defend, Name: "Defend", Type: TypeSkill,
		Cost:   fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectBlock, Amount: fixed.MustParse("50")},
	})
	r.Register(Def{
		ID: Flex, Name: "Flex", Type: TypeSkill,
		Cost:   fixed.MustParse("0.5"),
		Effect: Effect{Kind: EffectStrength, Amount: fixed.MustParse("20")},
	})
	r.Register(Def{
		ID: ShrugItOff, Name: "Shrug It Off", Type: TypeSkill,
		Cost: fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectBlock, Amount: fixed.MustParse("80")},
			{Kind: EffectDraw, Count: 1},
		}},
	})
	r.Register(Def{
		ID: FlameBarrier, Name: "Flame Barrier", Type: TypeSkill,
		Cost: fixed.MustParse("2.0"),
		Effect: Effect{Kind: EffectCombo, Children: []Effect{
			{Kind: EffectBlock, Amount: fixed.MustParse("120")},
			{Kind: EffectThorns, Amount: fixed.MustParse("4")},
		}},
	})
	r.Register(Def{
		ID: SeeingRed, Name: "Seeing Red", Type: TypeSkill,
		Cost:   fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectAccelerate, Amount: fixed.MustParse("1.0"), Duration: fixed.MustParse("5.0")},
	})

	// Powers (200-299): permanent once played.

	r.Register(Def{
		ID: Inflame, Name: "Inflame", Type: TypePower,
		Cost:   fixed.MustParse("1.0"),
		Effect: Effect{Kind: EffectStrength, Amount: fixed.MustParse("20")},
	})

	return r
}

// StarterDeck returns the fixed symmetric initial deck dealt to both
// participants at match start.
func StarterDeck() []ID {
	return []ID{
		Strike, Strike, Strike, Strike,
		Bash,
		Defend, Defend, Defend, Defend,
		IronWave, PommelStrike, Clothesline,
		ShrugItOff, Flex,
		FlameBarrier, SeeingRed,
		Inflame,
	}
}
