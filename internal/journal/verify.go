package journal

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/sim"
)

// ErrVerifyFailed reports a replay that ended on a different state hash
// than the one journaled at finalization.
var ErrVerifyFailed = errors.New("replay hash mismatch")

// VerifyResult is the outcome of re-deriving a match from its journal.
type VerifyResult struct {
	MatchID      uuid.UUID `json:"match_id"`
	FinalTick    sim.Tick  `json:"final_tick"`
	ComputedHash string    `json:"computed_hash"`
	JournalHash  string    `json:"journal_hash,omitempty"`
	Verified     bool      `json:"verified"`
}

// Replay re-runs a journaled match from its seed and recorded inputs and
// returns the resulting terminal state. Every tick up to the final tick
// must have both participants' inputs on record.
func (s *Store) Replay(ctx context.Context, simulation *sim.Simulation, matchID uuid.UUID) (*sim.GameState, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	rows, err := s.Inputs(ctx, matchID)
	if err != nil {
		return nil, err
	}

	byTick := make(map[sim.Tick][2]*input.Intent, len(rows)/2)
	for _, row := range rows {
		if row.Participant > uint8(sim.ParticipantB) {
			return nil, fmt.Errorf("journal: tick %d: bad participant %d", row.Tick, row.Participant)
		}
		it, err := input.Decode(row.Value)
		if err != nil {
			return nil, fmt.Errorf("journal: tick %d participant %d: %w", row.Tick, row.Participant, err)
		}
		pair := byTick[row.Tick]
		pair[row.Participant] = &it
		byTick[row.Tick] = pair
	}

	st := sim.NewMatch(simulation.Rules(), m.Seed, m.Deck)
	for tick := sim.Tick(1); tick <= m.FinalTick; tick++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		pair, ok := byTick[tick]
		if !ok || pair[0] == nil || pair[1] == nil {
			return nil, fmt.Errorf("journal: tick %d has incomplete inputs", tick)
		}
		next, _, err := simulation.Step(st, *pair[0], *pair[1])
		if err != nil {
			return nil, fmt.Errorf("journal: replay tick %d: %w", tick, err)
		}
		st = next
	}
	return st, nil
}

// Verify replays a finalized match and compares the terminal hash with
// the journaled one.
func (s *Store) Verify(ctx context.Context, simulation *sim.Simulation, matchID uuid.UUID) (VerifyResult, error) {
	m, err := s.GetMatch(ctx, matchID)
	if err != nil {
		return VerifyResult{}, err
	}
	if m.FinalHash == "" {
		return VerifyResult{}, fmt.Errorf("journal: match %s is not finalized", matchID)
	}

	st, err := s.Replay(ctx, simulation, matchID)
	if err != nil {
		return VerifyResult{}, err
	}

	res := VerifyResult{
		MatchID:      matchID,
		FinalTick:    st.Tick,
		ComputedHash: st.Hash(),
		JournalHash:  m.FinalHash,
		Verified:     st.Hash() == m.FinalHash,
	}
	if !res.Verified {
		return res, fmt.Errorf("journal: match %s: %w", matchID, ErrVerifyFailed)
	}
	return res, nil
}
