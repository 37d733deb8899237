// Package rollback drives the speculative tick loop: it advances the
// simulation ahead of confirmed network data, predicts missing remote
// input, and restores-and-replays when an authoritative value contradicts
// a prediction.
//
// The coordinator exclusively owns the live state and the snapshot store.
// Remote input only ever enqueues through Receive; every state mutation
// happens inside Advance or the replay it triggers, so network arrival and
// simulation advance never race.
package rollback

import (
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/sim"
	"github.com/sensen-game/sensen-core/internal/snapshot"
	"github.com/sensen-game/sensen-core/internal/view"
)

// Phase is the coordinator's observable state.
type Phase uint8

const (
	// PhaseIdle means no unconfirmed ticks are outstanding.
	PhaseIdle Phase = iota
	// PhasePredicting means at least one speculated tick awaits its
	// authoritative remote input.
	PhasePredicting
	// PhaseConfirming means the last received input matched its
	// prediction and the confirmed frontier moved.
	PhaseConfirming
	// PhaseRollingBack means the last received input contradicted a
	// prediction and a restore-and-replay ran.
	PhaseRollingBack
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePredicting:
		return "predicting"
	case PhaseConfirming:
		return "confirming"
	case PhaseRollingBack:
		return "rolling_back"
	default:
		return fmt.Sprintf("phase(%d)", uint8(p))
	}
}

// Sender delivers local input messages to the remote peer. Send must not
// block on the network; the tick loop calls it inline.
type Sender interface {
	Send(input.Message) error
}

// tickSlot tracks both intents used for one speculated tick.
type tickSlot struct {
	local      input.Intent
	remote     input.Intent
	remoteAuth bool
}

// Config assembles a coordinator. Local identity is explicit: nothing in
// this package assumes which side of the match it is running on.
type Config struct {
	MatchID    uuid.UUID
	Local      sim.ParticipantID
	Simulation *sim.Simulation
	// Window is the snapshot depth and therefore the maximum rollback.
	Window int
	// MatchSeed feeds the replicated shuffle states on both peers.
	MatchSeed uint64
	Deck      []cards.ID
	Sender    Sender
	Logger    *log.Logger
}

// Coordinator owns the live state and snapshot store for one participant.
// Methods are serialized by a mutex: Advance runs on the tick loop,
// Receive on the transport's reader, and the view accessors anywhere.
type Coordinator struct {
	mu sync.Mutex

	matchID    uuid.UUID
	local      sim.ParticipantID
	simulation *sim.Simulation
	store      *snapshot.Store
	sender     Sender
	logger     *log.Logger

	state     *sim.GameState // speculative head
	confirmed sim.Tick       // last tick with both inputs authoritative
	frozen    *sim.GameState // state at the confirmed tick

	// slots holds ticks in (confirmed, state.Tick]; future holds
	// authoritative remote intents for ticks not yet simulated.
	slots  map[sim.Tick]*tickSlot
	future map[sim.Tick]input.Intent

	// lastConfirmedRemote is the prediction policy's basis: the remote
	// intent at the confirmed frontier is repeated until corrected.
	lastConfirmedRemote input.Intent

	phase  Phase
	failed error
}

// New builds the tick-0 match state and snapshots it.
func New(cfg Config) (*Coordinator, error) {
	if cfg.Simulation == nil {
		return nil, fmt.Errorf("rollback: nil simulation")
	}
	if cfg.Window < 2 {
		return nil, fmt.Errorf("rollback: window %d too small", cfg.Window)
	}
	if len(cfg.Deck) == 0 {
		return nil, fmt.Errorf("rollback: empty deck")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[ROLLBACK] ", log.LstdFlags)
	}

	state := sim.NewMatch(cfg.Simulation.Rules(), cfg.MatchSeed, cfg.Deck)
	c := &Coordinator{
		matchID:    cfg.MatchID,
		local:      cfg.Local,
		simulation: cfg.Simulation,
		store:      snapshot.NewStore(cfg.Window),
		sender:     cfg.Sender,
		logger:     logger,
		state:      state,
		frozen:     state.Clone(),
		slots:      make(map[sim.Tick]*tickSlot),
		future:     make(map[sim.Tick]input.Intent),
	}
	c.store.Push(state)
	return c, nil
}

// Advance runs exactly one tick: it emits the local input, obtains the
// remote input (authoritative if already delivered, predicted otherwise),
// steps the simulation and snapshots the result. It never blocks on the
// network.
func (c *Coordinator) Advance(local input.Intent) ([]sim.Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed != nil {
		return nil, c.failed
	}

	tick := c.state.Tick + 1

	// A local intent the current hand cannot honor is degraded before it
	// is emitted, so both peers evaluate the same legal value.
	local = sanitize(local, c.state.Participant(c.local))
	value, err := input.Encode(local)
	if err != nil {
		return nil, err
	}

	remote, auth := c.future[tick]
	if auth {
		delete(c.future, tick)
	} else {
		remote = sanitize(c.lastConfirmedRemote, c.state.Participant(c.local.Opponent()))
	}

	inA, inB := c.orient(local, remote)
	next, events, err := c.simulation.Step(c.state, inA, inB)
	if err != nil {
		return nil, c.fatal(err)
	}

	c.state = next
	c.slots[tick] = &tickSlot{local: local, remote: remote, remoteAuth: auth}
	c.store.Push(next)
	c.advanceConfirmed()

	if c.sender != nil {
		msg := input.Message{
			MatchID:     c.matchID,
			Participant: uint8(c.local),
			Tick:        uint64(tick),
			Value:       value,
		}
		if err := c.sender.Send(msg); err != nil {
			// The channel may duplicate and reorder; it may also drop.
			// A drop only becomes fatal if the peer ages us out of its
			// window, which surfaces as a desync there, not here.
			c.logger.Printf("send tick %d: %v", tick, err)
		}
	}

	if c.confirmed == c.state.Tick {
		c.phase = PhaseIdle
	} else {
		c.phase = PhasePredicting
	}
	return events, nil
}

// Receive ingests one authoritative remote input. Duplicates and
// out-of-order deliveries are harmless; a value for a tick already aged
// out of the snapshot window is a fatal desync.
func (c *Coordinator) Receive(msg input.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.failed != nil {
		return c.failed
	}
	if msg.MatchID != c.matchID {
		c.logger.Printf("drop input for foreign match %s", msg.MatchID)
		return nil
	}
	if msg.Participant != uint8(c.local.Opponent()) {
		// Reflected copy of our own input; the channel may duplicate.
		return nil
	}

	intent, err := input.Decode(msg.Value)
	if err != nil {
		return err
	}
	tick := sim.Tick(msg.Tick)

	if tick <= c.confirmed {
		return nil // duplicate of an already confirmed tick
	}
	if head := c.state.Tick; tick+sim.Tick(c.store.Capacity()) <= head {
		return c.fatal(fmt.Errorf("rollback: %v for tick %d, head %d: %w",
			snapshot.ErrWindowExceeded, tick, head, sim.ErrDesync))
	}

	if tick > c.state.Tick {
		c.future[tick] = intent
		return nil
	}

	slot := c.slots[tick]
	if slot == nil || slot.remoteAuth {
		return nil // duplicate delivery
	}

	if slot.remote == intent {
		slot.remoteAuth = true
		c.advanceConfirmed()
		c.phase = PhaseConfirming
		return nil
	}

	// Misprediction: restore the last confirmed state and replay forward
	// with the corrected value.
	c.phase = PhaseRollingBack
	slot.remote = intent
	slot.remoteAuth = true
	if err := c.replay(); err != nil {
		return err
	}
	c.advanceConfirmed()
	return nil
}

// replay restores the snapshot at the confirmed frontier and re-runs every
// speculated tick, using authoritative input where known and the current
// best prediction elsewhere. Intermediate snapshots are overwritten.
func (c *Coordinator) replay() error {
	restored, err := c.store.Retrieve(c.confirmed)
	if err != nil {
		return c.fatal(fmt.Errorf("rollback: restore tick %d: %v: %w", c.confirmed, err, sim.ErrDesync))
	}

	head := c.state.Tick
	c.logger.Printf("rollback: replaying ticks %d..%d", c.confirmed+1, head)

	cur := restored
	basis := c.lastConfirmedRemote
	for t := c.confirmed + 1; t <= head; t++ {
		slot := c.slots[t]
		if slot.remoteAuth {
			basis = slot.remote
		} else {
			slot.remote = sanitize(basis, cur.Participant(c.local.Opponent()))
		}

		inA, inB := c.orient(slot.local, slot.remote)
		next, _, err := c.simulation.Step(cur, inA, inB)
		if err != nil {
			return c.fatal(err)
		}
		cur = next
		c.store.Push(next)
	}

	c.state = cur
	return nil
}

// advanceConfirmed moves the confirmed frontier over every contiguous
// tick whose remote input is authoritative. Local inputs are authoritative
// by construction.
func (c *Coordinator) advanceConfirmed() {
	for {
		slot := c.slots[c.confirmed+1]
		if slot == nil || !slot.remoteAuth {
			return
		}
		c.confirmed++
		c.lastConfirmedRemote = slot.remote
		delete(c.slots, c.confirmed)

		if snap, err := c.store.Retrieve(c.confirmed); err == nil {
			c.frozen = snap
		}
	}
}

// sanitize keeps speculative intents inside the legal space: a play whose
// slot the hand no longer covers degrades to a no-op. Authoritative values
// that address a missing slot are real divergence and stay fatal.
func sanitize(it input.Intent, p *sim.ParticipantState) input.Intent {
	if it.Kind == input.KindPlay && (it.Slot < 1 || it.Slot > len(p.Hand)) {
		return input.NoOp()
	}
	return it
}

func (c *Coordinator) orient(local, remote input.Intent) (inA, inB input.Intent) {
	if c.local == sim.ParticipantA {
		return local, remote
	}
	return remote, local
}

// fatal records a desync, freezes the last confirmed state for inspection
// and refuses all further work.
func (c *Coordinator) fatal(err error) error {
	if !errors.Is(err, sim.ErrDesync) {
		err = fmt.Errorf("rollback: %v: %w", err, sim.ErrDesync)
	}
	c.failed = err
	c.logger.Printf("fatal: %v (frozen at tick %d)", err, c.confirmed)
	return err
}

// Err returns the fatal error, if any.
func (c *Coordinator) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed
}

// Phase returns the coordinator's observable phase.
func (c *Coordinator) Phase() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.phase
}

// Tick returns the speculative head tick.
func (c *Coordinator) Tick() sim.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Tick
}

// ConfirmedTick returns the last tick with both inputs authoritative.
func (c *Coordinator) ConfirmedTick() sim.Tick {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.confirmed
}

// View projects the speculative head for the given participant identity.
func (c *Coordinator) View(id sim.ParticipantID) view.Perspective {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view.Project(c.state, id)
}

// ConfirmedView projects the last confirmed state. After a fatal desync
// this is the frozen state exposed for external resynchronization.
func (c *Coordinator) ConfirmedView(id sim.ParticipantID) view.Perspective {
	c.mu.Lock()
	defer c.mu.Unlock()
	return view.Project(c.frozen, id)
}

// ConfirmedHash returns the confirmed frontier tick and the state hash at
// that tick, the pair a match journal records at finalization.
func (c *Coordinator) ConfirmedHash() (sim.Tick, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frozen.Tick, c.frozen.Hash()
}

// Local returns the local participant identity.
func (c *Coordinator) Local() sim.ParticipantID { return c.local }

// MatchID returns the match identifier.
func (c *Coordinator) MatchID() uuid.UUID { return c.matchID }
