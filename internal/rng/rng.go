// Package rng implements the deterministic shuffle generator.
//
// The generator state is part of the replicated game state: both peers seed
// it from the agreed match seed, every shuffle advances it identically, and
// rollback restores it together with the rest of the snapshot. Wall-clock
// time and local entropy never feed it.
package rng

const (
	defaultSeed = 0x23d344d36f2a7c15

	// 64-bit LCG multiplier (Knuth MMIX).
	lcgMul = 6364136223846793005
	lcgInc = 1
)

// State is a replicated LCG state. The zero value is unseeded; use Seed.
type State uint64

// Seed derives a participant's shuffle state from the match seed and the
// participant handle. Both peers compute the same states for both handles.
func Seed(matchSeed uint64, handle int) State {
	if matchSeed == 0 {
		matchSeed = defaultSeed
	}
	return State(matchSeed ^ uint64(handle)*0x9e3779b97f4a7c15)
}

// Next advances the state and returns the next raw value.
func (s *State) Next() uint64 {
	*s = State(uint64(*s)*lcgMul + lcgInc)
	return uint64(*s)
}

// Shuffle performs a Fisher-Yates shuffle over n elements, advancing the
// state once per swap. The visit order is fixed so that identical states
// always produce identical permutations.
func (s *State) Shuffle(n int, swap func(i, j int)) {
	if n < 2 {
		return
	}
	for i := n - 1; i >= 1; i-- {
		j := int(s.Next() % uint64(i+1))
		swap(i, j)
	}
}
