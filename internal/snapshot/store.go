// Package snapshot keeps a bounded history of past game states keyed by
// tick. Its depth is the maximum tolerated rollback window: the coordinator
// can restore any state still inside it, and authoritative input older than
// it is unrecoverable.
package snapshot

import (
	"errors"
	"fmt"

	"github.com/sensen-game/sensen-core/internal/sim"
)

// ErrWindowExceeded reports a tick that has aged out of the ring (or was
// never pushed). The coordinator escalates it to a fatal desync.
var ErrWindowExceeded = errors.New("snapshot: tick outside retained window")

type entry struct {
	tick  sim.Tick
	state *sim.GameState
	valid bool
}

// Store is a ring buffer of snapshots. Ticks are monotonic, so tick modulo
// capacity addresses the slot directly; pushing a tick that already holds a
// slot overwrites it, which is exactly what a rollback replay needs.
//
// Store is not safe for concurrent use; the coordinator owns it.
type Store struct {
	slots []entry
}

// NewStore returns a store retaining the last capacity ticks.
func NewStore(capacity int) *Store {
	if capacity < 1 {
		panic(fmt.Sprintf("snapshot: capacity %d", capacity))
	}
	return &Store{slots: make([]entry, capacity)}
}

// Capacity returns the rollback window depth.
func (s *Store) Capacity() int { return len(s.slots) }

// Push retains an independent copy of the state keyed by its tick,
// evicting whatever previously occupied the slot.
func (s *Store) Push(st *sim.GameState) {
	s.slots[int(st.Tick)%len(s.slots)] = entry{
		tick:  st.Tick,
		state: st.Clone(),
		valid: true,
	}
}

// Retrieve returns a copy of the snapshot at the exact tick, or
// ErrWindowExceeded if it was evicted or never stored. The caller owns the
// returned state; the retained snapshot stays immutable.
func (s *Store) Retrieve(tick sim.Tick) (*sim.GameState, error) {
	e := s.slots[int(tick)%len(s.slots)]
	if !e.valid || e.tick != tick {
		return nil, fmt.Errorf("%w: tick %d", ErrWindowExceeded, tick)
	}
	return e.state.Clone(), nil
}
