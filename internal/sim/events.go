package sim

import (
	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/fixed"
)

// EventKind classifies per-tick observations surfaced to the UI layer.
type EventKind uint8

const (
	// EventDrew reports Count cards moved from deck to hand.
	EventDrew EventKind = iota + 1
	// EventReshuffled reports the discard pile recycled into the deck.
	EventReshuffled
	// EventPlayed reports Card leaving the hand for the deck top.
	EventPlayed
	// EventDamage reports Amount applied to the participant (after block).
	EventDamage
	// EventInsufficientCost reports a draw or play that could not be paid
	// for. It is an affordance signal, never an error.
	EventInsufficientCost
)

// Event is a read-only observation of something that happened during a
// step. Events exist for presentation; the simulation never reads them.
type Event struct {
	Tick        Tick          `json:"tick"`
	Participant ParticipantID `json:"participant"`
	Kind        EventKind     `json:"kind"`
	Card        cards.ID      `json:"card,omitempty"`
	Amount      fixed.Milli   `json:"amount,omitempty"`
	Count       int           `json:"count,omitempty"`
}
