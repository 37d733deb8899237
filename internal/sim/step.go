package sim

import (
	"fmt"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/fixed"
	"github.com/sensen-game/sensen-core/internal/input"
)

// Simulation binds the rules and card registry into a step function.
// It holds no mutable state and is safe to share.
type Simulation struct {
	rules    Rules
	registry *cards.Registry
}

// New validates the rules and returns a Simulation over the registry.
func New(rules Rules, registry *cards.Registry) (*Simulation, error) {
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	if registry == nil || registry.Len() == 0 {
		return nil, fmt.Errorf("sim: empty card registry")
	}
	return &Simulation{rules: rules, registry: registry}, nil
}

// Rules returns the match rules.
func (s *Simulation) Rules() Rules { return s.rules }

// Registry returns the card registry.
func (s *Simulation) Registry() *cards.Registry { return s.registry }

// stepState carries one in-flight step. Events accumulate here so the
// effect helpers don't thread a slice through every call.
type stepState struct {
	sim    *Simulation
	next   *GameState
	events []Event
}

// Step advances the state by one tick. The input state is never mutated.
//
// Resolution order is fixed and identical on every peer: accrual, draws,
// plays (participant A's full effect chain before B's), then the status
// phase. A returned error is a desync-class fatal condition; recoverable
// conditions (insufficient cost) surface as events instead.
func (s *Simulation) Step(st *GameState, inA, inB input.Intent) (*GameState, []Event, error) {
	run := &stepState{sim: s, next: st.Clone()}
	run.next.Tick = st.Tick + 1

	for id := ParticipantA; id <= ParticipantB; id++ {
		run.accrue(id)
	}

	intents := [2]input.Intent{inA, inB}
	for id := ParticipantA; id <= ParticipantB; id++ {
		if intents[id].Kind == input.KindDraw {
			run.draw(id)
		}
	}

	for id := ParticipantA; id <= ParticipantB; id++ {
		if intents[id].Kind == input.KindPlay {
			if err := run.play(id, intents[id].Slot); err != nil {
				return nil, nil, err
			}
		}
	}

	for id := ParticipantA; id <= ParticipantB; id++ {
		run.statusPhase(id)
	}

	return run.next, run.events, nil
}

// accrue applies the tick's resource accrual. A rate bonus contributes
// through its expiry tick exactly; the status phase of that tick removes
// it, so it can never feed a later accrual.
func (run *stepState) accrue(id ParticipantID) {
	p := run.next.Participant(id)
	tick := run.next.Tick

	rate := p.Rate
	for _, st := range p.Statuses {
		if st.Kind == StatusAccelerate && st.Expiry >= tick {
			rate += st.Magnitude
		}
	}
	p.Cost += run.sim.rules.perTick(rate)
}

// draw pays the draw cost and moves cards from deck to hand. Too little
// cost is a visible no-op, not an error.
func (run *stepState) draw(id ParticipantID) {
	p := run.next.Participant(id)
	rules := run.sim.rules

	if p.Cost < rules.DrawCost {
		run.emit(Event{Participant: id, Kind: EventInsufficientCost, Amount: rules.DrawCost})
		return
	}
	p.Cost -= rules.DrawCost
	run.drawCards(id, rules.DrawCount)
}

// drawCards moves up to n cards from the deck top to the hand, recycling
// and shuffling the discard pile when the deck runs dry. Cards beyond the
// hand cap stay on the deck.
func (run *stepState) drawCards(id ParticipantID, n int) {
	p := run.next.Participant(id)
	drawn := 0
	for i := 0; i < n; i++ {
		if len(p.Hand) >= run.sim.rules.MaxHandSize {
			break
		}
		if len(p.Deck) == 0 && len(p.Discard) > 0 {
			p.Deck = append(p.Deck, p.Discard...)
			p.Discard = p.Discard[:0]
			shuffleCards(p.Deck, &p.Shuffle)
			run.emit(Event{Participant: id, Kind: EventReshuffled, Count: len(p.Deck)})
		}
		if len(p.Deck) == 0 {
			break
		}
		top := p.Deck[len(p.Deck)-1]
		p.Deck = p.Deck[:len(p.Deck)-1]
		p.Hand = append(p.Hand, top)
		drawn++
	}
	if drawn > 0 {
		run.emit(Event{Participant: id, Kind: EventDrew, Count: drawn})
	}
}

// play resolves a play intent. Slot addressing that does not match the
// hand, or a card the registry cannot resolve, means the peers have
// diverged: fatal, not recoverable.
func (run *stepState) play(id ParticipantID, slot int) error {
	p := run.next.Participant(id)
	tick := run.next.Tick

	idx := slot - 1
	if idx < 0 || idx >= len(p.Hand) {
		return fmt.Errorf("sim: tick %d: participant %d plays slot %d with hand of %d: %w",
			tick, id, slot, len(p.Hand), ErrDesync)
	}
	cardID := p.Hand[idx]
	def, ok := run.sim.registry.Get(cardID)
	if !ok {
		return fmt.Errorf("sim: tick %d: card id %d not in registry: %w", tick, cardID, ErrDesync)
	}

	if p.Cost < def.Cost {
		run.emit(Event{Participant: id, Kind: EventInsufficientCost, Card: cardID, Amount: def.Cost})
		return nil
	}
	p.Cost -= def.Cost

	// Hand order is significant; removal must preserve it. The played
	// card lands on the deck top so it is immediately replayable.
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	p.Deck = append(p.Deck, cardID)

	run.emit(Event{Participant: id, Kind: EventPlayed, Card: cardID, Amount: def.Cost})
	run.applyEffect(id, def.Effect)
	return nil
}

func (run *stepState) applyEffect(id ParticipantID, eff cards.Effect) {
	p := run.next.Participant(id)
	rules := run.sim.rules

	switch eff.Kind {
	case cards.EffectDamage:
		run.dealDamage(id, id.Opponent(), eff.Amount, true)
	case cards.EffectMultiHit:
		for i := 0; i < eff.Count; i++ {
			run.dealDamage(id, id.Opponent(), eff.Amount, true)
		}
	case cards.EffectHeal:
		p.Health += eff.Amount
		if p.Health > rules.InitialHealth {
			p.Health = rules.InitialHealth
		}
	case cards.EffectDraw:
		run.drawCards(id, eff.Count)
	case cards.EffectBlock:
		p.Block += eff.Amount
	case cards.EffectThorns:
		p.Thorns += eff.Amount
	case cards.EffectStrength:
		p.Strength += eff.Amount
	case cards.EffectVulnerable:
		run.addTimed(id.Opponent(), StatusVulnerable, 0, eff.Duration)
	case cards.EffectWeak:
		run.addTimed(id.Opponent(), StatusWeak, 0, eff.Duration)
	case cards.EffectAccelerate:
		run.addTimed(id, StatusAccelerate, eff.Amount, eff.Duration)
	case cards.EffectCombo:
		for _, child := range eff.Children {
			run.applyEffect(id, child)
		}
	}
}

// addTimed applies a timed status. Vulnerable and weak extend an existing
// instance; accelerate bonuses stack as separate entries because each
// carries its own magnitude and expiry.
func (run *stepState) addTimed(id ParticipantID, kind StatusKind, magnitude fixed.Milli, duration fixed.Milli) {
	p := run.next.Participant(id)
	ticks := run.sim.rules.TicksFor(duration)
	if ticks == 0 {
		return
	}
	if kind != StatusAccelerate {
		for i := range p.Statuses {
			if p.Statuses[i].Kind == kind {
				p.Statuses[i].Expiry += ticks
				return
			}
		}
	}
	p.Statuses = append(p.Statuses, Status{Kind: kind, Magnitude: magnitude, Expiry: run.next.Tick + ticks})
}

// dealDamage applies one hit from attacker to defender: strength, then the
// attacker's weak, then the defender's vulnerable, then block before
// health. Thorns reflects the defender's thorns value back through the
// attacker's own block-then-health path; the reflection never triggers
// thorns again.
func (run *stepState) dealDamage(attacker, defender ParticipantID, base fixed.Milli, allowReflect bool) {
	atk := run.next.Participant(attacker)
	def := run.next.Participant(defender)

	dmg := base + atk.Strength
	if run.hasActive(attacker, StatusWeak) {
		dmg = dmg * 75 / 100
	}
	if run.hasActive(defender, StatusVulnerable) {
		dmg = dmg * 150 / 100
	}
	if dmg < 0 {
		dmg = 0
	}

	run.applyRaw(defender, dmg)

	if allowReflect && def.Thorns > 0 {
		run.applyRaw(attacker, def.Thorns)
	}
}

// applyRaw pushes damage through block into health, clamping health at 0.
func (run *stepState) applyRaw(id ParticipantID, dmg fixed.Milli) {
	p := run.next.Participant(id)
	absorbed := dmg
	if p.Block < absorbed {
		absorbed = p.Block
	}
	p.Block -= absorbed
	rest := dmg - absorbed
	p.Health -= rest
	if p.Health < 0 {
		p.Health = 0
	}
	run.emit(Event{Participant: id, Kind: EventDamage, Amount: dmg})
}

// statusPhase decays block and removes timed statuses whose expiry tick
// has arrived.
func (run *stepState) statusPhase(id ParticipantID) {
	p := run.next.Participant(id)
	tick := run.next.Tick

	decay := run.sim.rules.perTick(run.sim.rules.BlockDecay)
	if p.Block > 0 {
		p.Block -= decay
		if p.Block < 0 {
			p.Block = 0
		}
	}

	kept := p.Statuses[:0]
	for _, st := range p.Statuses {
		if st.Expiry <= tick {
			continue
		}
		kept = append(kept, st)
	}
	p.Statuses = kept
}

func (run *stepState) hasActive(id ParticipantID, kind StatusKind) bool {
	p := run.next.Participant(id)
	for _, st := range p.Statuses {
		if st.Kind == kind && st.Expiry >= run.next.Tick {
			return true
		}
	}
	return false
}

func (run *stepState) emit(ev Event) {
	ev.Tick = run.next.Tick
	run.events = append(run.events, ev)
}
