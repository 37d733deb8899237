package sim

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// Hash returns a hex digest over a canonical binary encoding of the state.
// Two peers holding byte-identical state produce the same digest, which is
// what the journal records and what desync forensics compare.
func (g *GameState) Hash() string {
	h := sha256.New()
	buf := make([]byte, 8)

	word := func(v uint64) {
		binary.BigEndian.PutUint64(buf, v)
		h.Write(buf)
	}

	word(uint64(g.Tick))
	for i := range g.Participants {
		p := &g.Participants[i]
		word(uint64(p.Health))
		word(uint64(p.Cost))
		word(uint64(p.Rate))
		word(uint64(p.Block))
		word(uint64(p.Thorns))
		word(uint64(p.Strength))
		word(uint64(p.Shuffle))

		for _, pile := range [][]uint32{toU32(p.Hand), toU32(p.Deck), toU32(p.Discard)} {
			word(uint64(len(pile)))
			for _, id := range pile {
				word(uint64(id))
			}
		}

		word(uint64(len(p.Statuses)))
		for _, st := range p.Statuses {
			word(uint64(st.Kind))
			word(uint64(st.Magnitude))
			word(uint64(st.Expiry))
		}
	}
	return hex.EncodeToString(h.Sum(nil))
}

func toU32[T ~uint32](ids []T) []uint32 {
	out := make([]uint32, len(ids))
	for i, id := range ids {
		out[i] = uint32(id)
	}
	return out
}
