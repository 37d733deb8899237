package input

import "github.com/google/uuid"

// Message is the unit exchanged between peers: one participant's wire value
// for one tick. Delivery may duplicate or reorder messages; receivers treat
// them as idempotent by tick number.
type Message struct {
	MatchID     uuid.UUID `json:"match_id"`
	Participant uint8     `json:"participant"`
	Tick        uint64    `json:"tick"`
	Value       Value     `json:"value"`
}
