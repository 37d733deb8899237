package sim

import (
	"fmt"

	"github.com/sensen-game/sensen-core/internal/fixed"
	"github.com/sensen-game/sensen-core/internal/input"
)

// Rules are the match parameters agreed by both peers before tick 0.
// They are configuration: the simulation never hardcodes them.
type Rules struct {
	// TickRate is the number of simulation ticks per second.
	TickRate int

	// DrawCost is spent when a draw intent is honored.
	DrawCost fixed.Milli
	// DrawCount is the number of cards moved per honored draw.
	DrawCount int
	// MaxHandSize caps the hand; overdraw leaves cards on the deck.
	MaxHandSize int

	InitialHealth fixed.Milli
	// BaseRate is the accrual rate per second, excluding timed bonuses.
	BaseRate fixed.Milli
	// BlockDecay is block lost per second during the status phase.
	BlockDecay fixed.Milli
}

// DefaultRules mirrors the original tuning: 2.0 to draw 3 cards, hand of
// 10, 20 ticks per second.
func DefaultRules() Rules {
	return Rules{
		TickRate:      20,
		DrawCost:      fixed.MustParse("2.0"),
		DrawCount:     3,
		MaxHandSize:   10,
		InitialHealth: fixed.MustParse("1000"),
		BaseRate:      fixed.MustParse("1.0"),
		BlockDecay:    fixed.MustParse("10.0"),
	}
}

// Validate rejects parameter sets the simulation cannot run with.
func (r Rules) Validate() error {
	if r.TickRate <= 0 {
		return fmt.Errorf("rules: tick rate %d", r.TickRate)
	}
	if r.DrawCost < 0 || r.DrawCount <= 0 {
		return fmt.Errorf("rules: draw cost %v count %d", r.DrawCost, r.DrawCount)
	}
	if r.MaxHandSize < 1 || r.MaxHandSize > input.MaxSlots {
		return fmt.Errorf("rules: hand size %d outside 1..%d", r.MaxHandSize, input.MaxSlots)
	}
	if r.InitialHealth <= 0 {
		return fmt.Errorf("rules: initial health %v", r.InitialHealth)
	}
	if r.BaseRate < 0 || r.BlockDecay < 0 {
		return fmt.Errorf("rules: negative rate")
	}
	return nil
}

// TicksFor converts a duration in seconds to whole ticks, rounding down.
func (r Rules) TicksFor(seconds fixed.Milli) Tick {
	if seconds <= 0 {
		return 0
	}
	return Tick(int64(seconds) * int64(r.TickRate) / fixed.Scale)
}

// perTick converts a per-second rate to its per-tick slice, rounding down.
// Rates that are whole multiples of TickRate milliunits divide exactly.
func (r Rules) perTick(rate fixed.Milli) fixed.Milli {
	if rate <= 0 {
		return 0
	}
	return rate / fixed.Milli(r.TickRate)
}
