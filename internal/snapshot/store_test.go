package snapshot

import (
	"errors"
	"testing"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/sim"
)

func stateAt(tick sim.Tick) *sim.GameState {
	st := sim.NewMatch(sim.DefaultRules(), 7, cards.StarterDeck())
	st.Tick = tick
	return st
}

func TestPushRetrieve(t *testing.T) {
	s := NewStore(8)
	for tick := sim.Tick(0); tick < 5; tick++ {
		s.Push(stateAt(tick))
	}

	got, err := s.Retrieve(3)
	if err != nil {
		t.Fatalf("Retrieve(3): %v", err)
	}
	if got.Tick != 3 {
		t.Errorf("retrieved tick = %d, want 3", got.Tick)
	}
}

func TestEvictionBeyondWindow(t *testing.T) {
	s := NewStore(4)
	for tick := sim.Tick(0); tick < 10; tick++ {
		s.Push(stateAt(tick))
	}

	if _, err := s.Retrieve(5); !errors.Is(err, ErrWindowExceeded) {
		t.Errorf("Retrieve(evicted): got %v, want ErrWindowExceeded", err)
	}
	for tick := sim.Tick(6); tick < 10; tick++ {
		if _, err := s.Retrieve(tick); err != nil {
			t.Errorf("Retrieve(%d) inside window: %v", tick, err)
		}
	}
}

func TestRetrieveNeverPushed(t *testing.T) {
	s := NewStore(4)
	if _, err := s.Retrieve(0); !errors.Is(err, ErrWindowExceeded) {
		t.Errorf("Retrieve on empty store: got %v, want ErrWindowExceeded", err)
	}
}

func TestOverwriteSameTick(t *testing.T) {
	s := NewStore(4)
	first := stateAt(2)
	s.Push(first)

	second := stateAt(2)
	second.Participant(sim.ParticipantA).Cost = 1234
	s.Push(second)

	got, err := s.Retrieve(2)
	if err != nil {
		t.Fatalf("Retrieve(2): %v", err)
	}
	if got.Participant(sim.ParticipantA).Cost != 1234 {
		t.Error("replayed push did not overwrite the old snapshot")
	}
}

func TestSnapshotsDoNotAlias(t *testing.T) {
	s := NewStore(4)
	live := stateAt(1)
	s.Push(live)

	// Mutating the live state must not reach the snapshot.
	live.Participant(sim.ParticipantA).Hand = append(live.Participant(sim.ParticipantA).Hand, cards.Strike)
	live.Participant(sim.ParticipantA).Health = 1

	snap, err := s.Retrieve(1)
	if err != nil {
		t.Fatalf("Retrieve(1): %v", err)
	}
	if len(snap.Participant(sim.ParticipantA).Hand) != 0 {
		t.Error("snapshot aliases the live hand slice")
	}
	if snap.Participant(sim.ParticipantA).Health == 1 {
		t.Error("snapshot aliases the live state")
	}

	// Mutating a retrieved copy must not reach the retained snapshot.
	snap.Participant(sim.ParticipantB).Health = 2
	again, _ := s.Retrieve(1)
	if again.Participant(sim.ParticipantB).Health == 2 {
		t.Error("retrieved copies share memory with the retained snapshot")
	}
}
