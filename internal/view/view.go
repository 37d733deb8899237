// Package view projects the single authoritative game state into what one
// participant is allowed to see.
//
// Both peers hold the same GameState; the projection is why playing a card
// locally damages "the opponent" on this machine while the remote machine
// sees "its own" health drop. Projection never mutates: rendering, debug
// tooling and the HTTP API read these views and nothing else.
package view

import (
	"slices"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/fixed"
	"github.com/sensen-game/sensen-core/internal/sim"
)

// Self is the full view of the projecting participant's own state.
type Self struct {
	Health   fixed.Milli  `json:"health"`
	Cost     fixed.Milli  `json:"cost"`
	Rate     fixed.Milli  `json:"rate"`
	Block    fixed.Milli  `json:"block"`
	Thorns   fixed.Milli  `json:"thorns"`
	Strength fixed.Milli  `json:"strength"`
	Hand     []cards.ID   `json:"hand"`
	DeckSize int          `json:"deck_size"`
	Discards int          `json:"discards"`
	Statuses []sim.Status `json:"statuses"`
}

// Opponent exposes only the publicly observable fields of the other
// participant. Hand and deck contents are never projected.
type Opponent struct {
	Health   fixed.Milli  `json:"health"`
	Block    fixed.Milli  `json:"block"`
	HandSize int          `json:"hand_size"`
	Statuses []sim.Status `json:"statuses"`
}

// Perspective is one participant's read-only projection of a tick.
type Perspective struct {
	Tick        sim.Tick          `json:"tick"`
	Participant sim.ParticipantID `json:"participant"`
	Self        Self              `json:"self"`
	Opponent    Opponent          `json:"opponent"`
}

// Project builds the perspective of the given participant. The result
// shares no memory with the state.
func Project(st *sim.GameState, id sim.ParticipantID) Perspective {
	me := st.Participant(id)
	them := st.Participant(id.Opponent())

	return Perspective{
		Tick:        st.Tick,
		Participant: id,
		Self: Self{
			Health:   me.Health,
			Cost:     me.Cost,
			Rate:     me.Rate,
			Block:    me.Block,
			Thorns:   me.Thorns,
			Strength: me.Strength,
			Hand:     slices.Clone(me.Hand),
			DeckSize: len(me.Deck),
			Discards: len(me.Discard),
			Statuses: slices.Clone(me.Statuses),
		},
		Opponent: Opponent{
			Health:   them.Health,
			Block:    them.Block,
			HandSize: len(them.Hand),
			Statuses: slices.Clone(them.Statuses),
		},
	}
}
