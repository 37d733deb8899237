package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/fixed"
	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/journal"
	"github.com/sensen-game/sensen-core/internal/rollback"
	"github.com/sensen-game/sensen-core/internal/scripting"
	"github.com/sensen-game/sensen-core/internal/sim"
	"github.com/sensen-game/sensen-core/internal/view"
)

const (
	jab   cards.ID = 1
	guard cards.ID = 2
)

func testRegistry() *cards.Registry {
	r := cards.NewRegistry()
	r.Register(cards.Def{ID: jab, Name: "Jab", Type: cards.TypeAttack,
		Cost: fixed.MustParse("1.0"), Effect: cards.Effect{Kind: cards.EffectDamage, Amount: fixed.MustParse("5")}})
	r.Register(cards.Def{ID: guard, Name: "Guard", Type: cards.TypeSkill,
		Cost: fixed.MustParse("1.0"), Effect: cards.Effect{Kind: cards.EffectBlock, Amount: fixed.MustParse("3")}})
	return r
}

func testSim(t *testing.T) *sim.Simulation {
	t.Helper()
	rules := sim.DefaultRules()
	rules.BaseRate = fixed.MustParse("40")
	s, err := sim.New(rules, testRegistry())
	if err != nil {
		t.Fatalf("sim.New: %v", err)
	}
	return s
}

func testDeck() []cards.ID {
	return []cards.ID{jab, guard, jab, guard}
}

type testEnv struct {
	server      *httptest.Server
	coordinator *rollback.Coordinator
	simulation  *sim.Simulation
	journal     *journal.Store
}

func newTestEnv(t *testing.T, driver *scripting.Driver) *testEnv {
	t.Helper()
	simulation := testSim(t)
	c, err := rollback.New(rollback.Config{
		MatchID:    uuid.New(),
		Local:      sim.ParticipantA,
		Simulation: simulation,
		Window:     16,
		MatchSeed:  42,
		Deck:       testDeck(),
		Logger:     log.New(io.Discard, "", 0),
	})
	if err != nil {
		t.Fatalf("rollback.New: %v", err)
	}
	j, err := journal.New(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("journal.New: %v", err)
	}
	t.Cleanup(func() { j.Close() })

	api := NewServer(c, simulation, j, driver, log.New(io.Discard, "", 0))
	ts := httptest.NewServer(api.Routes())
	t.Cleanup(ts.Close)
	return &testEnv{server: ts, coordinator: c, simulation: simulation, journal: j}
}

func getJSON(t *testing.T, ts *httptest.Server, path string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(ts.URL + path)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("GET %s: status %d, want %d (body %s)", path, resp.StatusCode, wantStatus, body)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("GET %s: decode: %v", path, err)
		}
	}
}

func postJSON(t *testing.T, ts *httptest.Server, path string, body interface{}, wantStatus int, out interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	resp, err := http.Post(ts.URL+path, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != wantStatus {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("POST %s: status %d, want %d (body %s)", path, resp.StatusCode, wantStatus, raw)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("POST %s: decode: %v", path, err)
		}
	}
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestMatchStatusAndInput(t *testing.T) {
	env := newTestEnv(t, nil)

	var status MatchStatus
	getJSON(t, env.server, "/match", http.StatusOK, &status)
	if status.Tick != 0 || status.ConfirmedTick != 0 {
		t.Errorf("fresh match at tick %d/%d, want 0/0", status.Tick, status.ConfirmedTick)
	}
	if status.Desynced {
		t.Error("fresh match reports desync")
	}

	var res InputResponse
	postJSON(t, env.server, "/match/input", InputRequest{Action: "draw"}, http.StatusOK, &res)
	if res.Tick != 1 {
		t.Errorf("input applied at tick %d, want 1", res.Tick)
	}
	if len(res.Events) == 0 {
		t.Error("draw tick produced no events")
	}

	getJSON(t, env.server, "/match", http.StatusOK, &status)
	if status.Tick != 1 {
		t.Errorf("tick after input = %d, want 1", status.Tick)
	}
	if status.Phase != "predicting" {
		t.Errorf("phase = %q, want predicting", status.Phase)
	}
}

func TestInputValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name string
		body InputRequest
	}{
		{"unknown action", InputRequest{Action: "win"}},
		{"slot too high", InputRequest{Action: "play", Slot: 99}},
		{"slot zero", InputRequest{Action: "play"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			postJSON(t, env.server, "/match/input", tc.body, http.StatusBadRequest, nil)
		})
	}

	if got := env.coordinator.Tick(); got != 0 {
		t.Errorf("rejected inputs advanced the match to tick %d", got)
	}
}

func TestViewPerParticipant(t *testing.T) {
	env := newTestEnv(t, nil)
	postJSON(t, env.server, "/match/input", InputRequest{Action: "draw"}, http.StatusOK, nil)

	var a view.Perspective
	getJSON(t, env.server, "/match/view/a", http.StatusOK, &a)
	if a.Participant != sim.ParticipantA {
		t.Errorf("participant = %v, want A", a.Participant)
	}
	if len(a.Self.Hand) == 0 {
		t.Error("local draw not visible in own view")
	}

	var b view.Perspective
	getJSON(t, env.server, "/match/view/1", http.StatusOK, &b)
	if b.Participant != sim.ParticipantB {
		t.Errorf("participant = %v, want B", b.Participant)
	}
	if b.Opponent.HandSize != len(a.Self.Hand) {
		t.Errorf("opponent hand size %d, want %d", b.Opponent.HandSize, len(a.Self.Hand))
	}

	getJSON(t, env.server, "/match/view/x", http.StatusBadRequest, nil)
}

func TestVerifyEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	// Journal a two-tick match directly and verify it over HTTP.
	id := uuid.New()
	if err := env.journal.CreateMatch(ctx, id, 42, testDeck()); err != nil {
		t.Fatalf("CreateMatch: %v", err)
	}
	st := sim.NewMatch(env.simulation.Rules(), 42, testDeck())
	for tick := sim.Tick(1); tick <= 2; tick++ {
		next, _, err := env.simulation.Step(st, input.Draw(), input.NoOp())
		if err != nil {
			t.Fatalf("Step: %v", err)
		}
		st = next
		drawVal, _ := input.Encode(input.Draw())
		if err := env.journal.RecordInput(ctx, id, journal.Input{Tick: tick, Participant: 0, Value: drawVal}); err != nil {
			t.Fatalf("RecordInput: %v", err)
		}
		if err := env.journal.RecordInput(ctx, id, journal.Input{Tick: tick, Participant: 1, Value: 0}); err != nil {
			t.Fatalf("RecordInput: %v", err)
		}
	}
	if err := env.journal.Finalize(ctx, id, st.Tick, st.Hash()); err != nil {
		t.Fatalf("Finalize: %v", err)
	}

	var res journal.VerifyResult
	getJSON(t, env.server, "/matches/"+id.String()+"/verify", http.StatusOK, &res)
	if !res.Verified {
		t.Error("verified = false for intact journal")
	}

	getJSON(t, env.server, "/matches/"+uuid.NewString()+"/verify", http.StatusNotFound, nil)
	getJSON(t, env.server, "/matches/not-a-uuid/verify", http.StatusBadRequest, nil)

	var matches []journal.Match
	getJSON(t, env.server, "/matches", http.StatusOK, &matches)
	if len(matches) != 1 {
		t.Errorf("got %d journaled matches, want 1", len(matches))
	}
}

func TestScriptLogsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	getJSON(t, env.server, "/script/logs", http.StatusNotFound, nil)

	d := scripting.NewDriver()
	if err := d.Load(`function onTick(v) { log("hello"); return null; }`); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := d.OnTick(view.Perspective{}); err != nil {
		t.Fatalf("OnTick: %v", err)
	}

	env = newTestEnv(t, d)
	var logs []scripting.LogEntry
	getJSON(t, env.server, "/script/logs", http.StatusOK, &logs)
	if len(logs) != 1 || logs[0].Message != "hello" {
		t.Errorf("logs = %+v, want one entry %q", logs, "hello")
	}
}
