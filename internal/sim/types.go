// Package sim implements the deterministic state-transition simulation.
//
// Step is a pure function of (state, two inputs): integer-only arithmetic,
// no wall-clock, no local entropy, identical resolution order on every
// peer. Anything that breaks that contract breaks rollback.
package sim

import (
	"slices"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/fixed"
	"github.com/sensen-game/sensen-core/internal/rng"
)

// Tick identifies one fixed-duration simulation step.
type Tick uint64

// ParticipantID selects one of the two match participants. The index also
// fixes the simultaneous-play tie-break: A's effects resolve before B's.
type ParticipantID uint8

const (
	ParticipantA ParticipantID = 0
	ParticipantB ParticipantID = 1
)

// Opponent returns the other participant.
func (id ParticipantID) Opponent() ParticipantID {
	return 1 - id
}

// StatusKind discriminates timed status effects.
type StatusKind uint8

const (
	// StatusVulnerable raises incoming damage by 50%.
	StatusVulnerable StatusKind = iota + 1
	// StatusWeak lowers outgoing damage by 25%.
	StatusWeak
	// StatusAccelerate adds Magnitude to the accrual rate until Expiry.
	StatusAccelerate
)

// Status is one active timed effect. Expiry is the last tick the effect
// is in force; the status phase of that tick removes it.
type Status struct {
	Kind      StatusKind  `json:"kind"`
	Magnitude fixed.Milli `json:"magnitude"`
	Expiry    Tick        `json:"expiry"`
}

// ParticipantState is the full replicated state of one participant.
// Hand order is significant: slot N of a play input addresses Hand[N-1].
// The deck top is the last element of Deck.
type ParticipantState struct {
	Health   fixed.Milli
	Cost     fixed.Milli
	Rate     fixed.Milli // base accrual per second, excluding timed bonuses
	Block    fixed.Milli
	Thorns   fixed.Milli
	Strength fixed.Milli

	Hand    []cards.ID
	Deck    []cards.ID
	Discard []cards.ID

	Statuses []Status

	// Shuffle is the replicated PRNG state for deck reshuffles. It
	// advances with every shuffle and rolls back with the snapshot.
	Shuffle rng.State
}

// CardCount returns |hand|+|deck|+|discard|. It is invariant over the
// whole match: cards move between piles, they are never created or lost.
func (p *ParticipantState) CardCount() int {
	return len(p.Hand) + len(p.Deck) + len(p.Discard)
}

func (p *ParticipantState) clone() ParticipantState {
	out := *p
	out.Hand = slices.Clone(p.Hand)
	out.Deck = slices.Clone(p.Deck)
	out.Discard = slices.Clone(p.Discard)
	out.Statuses = slices.Clone(p.Statuses)
	return out
}

// GameState is the authoritative state after some tick. It is fully
// determined by the previous state and that tick's two inputs.
type GameState struct {
	Tick         Tick
	Participants [2]ParticipantState
}

// Clone returns an independent deep copy sharing no memory with the
// receiver. Snapshots depend on this.
func (g *GameState) Clone() *GameState {
	out := &GameState{Tick: g.Tick}
	out.Participants[0] = g.Participants[0].clone()
	out.Participants[1] = g.Participants[1].clone()
	return out
}

// Participant returns the state of the given participant.
func (g *GameState) Participant(id ParticipantID) *ParticipantState {
	return &g.Participants[id]
}

// NewMatch builds the tick-0 state: both participants receive the same
// deck list, shuffled with their handle-derived PRNG state, full health,
// empty hand, and the base accrual rate.
func NewMatch(rules Rules, matchSeed uint64, deck []cards.ID) *GameState {
	g := &GameState{}
	for i := range g.Participants {
		p := &g.Participants[i]
		p.Health = rules.InitialHealth
		p.Rate = rules.BaseRate
		p.Deck = slices.Clone(deck)
		p.Shuffle = rng.Seed(matchSeed, i)
		shuffleCards(p.Deck, &p.Shuffle)
	}
	return g
}

func shuffleCards(ids []cards.ID, state *rng.State) {
	state.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})
}
