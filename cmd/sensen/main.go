// Command sensen hosts one participant of a two-player match: it runs the
// speculative tick loop, exchanges inputs with the remote peer over a
// websocket, journals the confirmed match and serves the local HTTP API.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sensen-game/sensen-core/internal/api"
	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/config"
	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/journal"
	"github.com/sensen-game/sensen-core/internal/rollback"
	"github.com/sensen-game/sensen-core/internal/scripting"
	"github.com/sensen-game/sensen-core/internal/sim"
	"github.com/sensen-game/sensen-core/internal/transport"
)

func main() {
	logger := log.New(os.Stdout, "[SENSEN] ", log.LstdFlags)

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Fatalf("%v", err)
	}
}

func run(cfg config.Config, logger *log.Logger) error {
	registry, err := loadRegistry(cfg)
	if err != nil {
		return fmt.Errorf("cards: %w", err)
	}

	rules := sim.DefaultRules()
	simulation, err := sim.New(rules, registry)
	if err != nil {
		return fmt.Errorf("sim: %w", err)
	}

	local := sim.ParticipantA
	if cfg.Participant == "b" {
		local = sim.ParticipantB
	}
	deck := cards.StarterDeck()

	// Both peers derive the same match id from the shared seed, so journal
	// rows line up without a handshake.
	matchID := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("sensen-match-%016x", cfg.MatchSeed)))

	var store *journal.Store
	if cfg.JournalPath != "" {
		store, err = journal.New(cfg.JournalPath)
		if err != nil {
			return fmt.Errorf("journal: %w", err)
		}
		defer store.Close()
		if err := store.CreateMatch(context.Background(), matchID, cfg.MatchSeed, deck); err != nil {
			// A rehosted seed reuses its journal rows.
			logger.Printf("journal: match %s already recorded: %v", matchID, err)
		}
	}

	relay := &peerRelay{}
	sender := newJournalingSender(relay, store, matchID, logger)

	coordinator, err := rollback.New(rollback.Config{
		MatchID:    matchID,
		Local:      local,
		Simulation: simulation,
		Window:     cfg.Window,
		MatchSeed:  cfg.MatchSeed,
		Deck:       deck,
		Sender:     sender,
		Logger:     log.New(os.Stdout, "[ROLLBACK] ", log.LstdFlags),
	})
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}

	var driver *scripting.Driver
	if cfg.ScriptPath != "" {
		source, err := os.ReadFile(cfg.ScriptPath)
		if err != nil {
			return fmt.Errorf("script: %w", err)
		}
		driver = scripting.NewDriver()
		if err := driver.Load(string(source)); err != nil {
			return fmt.Errorf("script: %w", err)
		}
		if !driver.HasOnTick() {
			return fmt.Errorf("script %s defines no onTick()", cfg.ScriptPath)
		}
		logger.Printf("bot script %s attached", cfg.ScriptPath)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	receive := func(msg input.Message) error {
		if store != nil && msg.Participant == uint8(local.Opponent()) {
			rec := journal.Input{Tick: sim.Tick(msg.Tick), Participant: msg.Participant, Value: msg.Value}
			if err := store.RecordInput(ctx, matchID, rec); err != nil {
				logger.Printf("journal remote tick %d: %v", msg.Tick, err)
			}
		}
		return coordinator.Receive(msg)
	}

	connected := make(chan struct{})
	if cfg.PeerURL != "" {
		go func() {
			dialCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			defer cancel()
			peer, err := transport.Dial(dialCtx, cfg.PeerURL, logger)
			if err != nil {
				logger.Printf("dial peer %s: %v", cfg.PeerURL, err)
				stop()
				return
			}
			if !relay.set(peer) {
				peer.Close()
				return
			}
			close(connected)
			if err := peer.Pump(ctx, receive); err != nil && !errors.Is(err, context.Canceled) {
				logger.Printf("peer channel closed: %v", err)
			}
		}()
	}

	router := chi.NewRouter()
	router.Mount("/", api.NewServer(coordinator, simulation, store, driver, logger).Routes())
	router.Get("/peer", func(w http.ResponseWriter, r *http.Request) {
		peer, err := transport.Accept(w, r, logger)
		if err != nil {
			logger.Printf("accept peer: %v", err)
			return
		}
		if !relay.set(peer) {
			peer.Close()
			return
		}
		logger.Printf("peer connected from %s", r.RemoteAddr)
		close(connected)
		if err := peer.Pump(ctx, receive); err != nil && !errors.Is(err, context.Canceled) {
			logger.Printf("peer channel closed: %v", err)
		}
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	ln, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
	}
	go func() {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("http: %v", err)
		}
	}()
	logger.Printf("listening on %s (participant %s, match %s)", cfg.ListenAddr, cfg.Participant, matchID)

	// The tick loop starts once the peer channel is up and stops on the
	// first fatal error or on shutdown.
	go func() {
		select {
		case <-ctx.Done():
			return
		case <-connected:
		}
		logger.Printf("match loop started at %d ticks/s", rules.TickRate)
		runMatchLoop(ctx, coordinator, driver, rules, logger)
	}()

	<-ctx.Done()
	logger.Printf("shutting down")

	if store != nil {
		tick, hash := coordinator.ConfirmedHash()
		if err := store.Finalize(context.Background(), matchID, tick, hash); err != nil {
			logger.Printf("finalize: %v", err)
		} else {
			logger.Printf("journal finalized at tick %d", tick)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}

func runMatchLoop(ctx context.Context, c *rollback.Coordinator, driver *scripting.Driver, rules sim.Rules, logger *log.Logger) {
	ticker := time.NewTicker(time.Second / time.Duration(rules.TickRate))
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		it := input.NoOp()
		if driver != nil {
			decided, err := driver.OnTick(c.View(c.Local()))
			if err != nil {
				logger.Printf("script tick %d: %v", c.Tick()+1, err)
			} else {
				it = decided
			}
			if driver.IsConcedeRequested() {
				logger.Printf("script conceded at tick %d", c.Tick())
				return
			}
		}

		if _, err := c.Advance(it); err != nil {
			logger.Printf("match over: %v", err)
			return
		}
	}
}

func loadRegistry(cfg config.Config) (*cards.Registry, error) {
	if cfg.CardsPath == "" {
		return cards.Builtin(), nil
	}
	f, err := os.Open(cfg.CardsPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return cards.Load(f)
}

// peerRelay lets the coordinator hold a Sender before the peer connection
// exists. Sends while disconnected are dropped like any other lost frame.
type peerRelay struct {
	peer atomic.Pointer[transport.Peer]
}

func (r *peerRelay) set(p *transport.Peer) bool {
	return r.peer.CompareAndSwap(nil, p)
}

func (r *peerRelay) Send(msg input.Message) error {
	p := r.peer.Load()
	if p == nil {
		return nil
	}
	return p.Send(msg)
}

// journalingSender records every emitted local input before relaying it.
type journalingSender struct {
	next    rollback.Sender
	store   *journal.Store
	matchID uuid.UUID
	logger  *log.Logger
}

func newJournalingSender(next rollback.Sender, store *journal.Store, matchID uuid.UUID, logger *log.Logger) rollback.Sender {
	if store == nil {
		return next
	}
	return &journalingSender{next: next, store: store, matchID: matchID, logger: logger}
}

func (s *journalingSender) Send(msg input.Message) error {
	rec := journal.Input{Tick: sim.Tick(msg.Tick), Participant: msg.Participant, Value: msg.Value}
	if err := s.store.RecordInput(context.Background(), s.matchID, rec); err != nil {
		s.logger.Printf("journal local tick %d: %v", msg.Tick, err)
	}
	return s.next.Send(msg)
}
