package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/journal"
	"github.com/sensen-game/sensen-core/internal/sim"
)

// MatchStatus is the GET /match response body.
type MatchStatus struct {
	MatchID       uuid.UUID         `json:"match_id"`
	Local         sim.ParticipantID `json:"local"`
	Tick          sim.Tick          `json:"tick"`
	ConfirmedTick sim.Tick          `json:"confirmed_tick"`
	Phase         string            `json:"phase"`
	Desynced      bool              `json:"desynced"`
	Error         string            `json:"error,omitempty"`
}

// InputRequest is the POST /match/input body. It drives one local tick
// through the same ingress a UI or bot would use.
type InputRequest struct {
	Action string `json:"action"`
	Slot   int    `json:"slot,omitempty"`
}

// InputResponse reports the tick the injected input was applied to.
type InputResponse struct {
	Tick   sim.Tick    `json:"tick"`
	Events []sim.Event `json:"events"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	status := MatchStatus{
		MatchID:       s.coordinator.MatchID(),
		Local:         s.coordinator.Local(),
		Tick:          s.coordinator.Tick(),
		ConfirmedTick: s.coordinator.ConfirmedTick(),
		Phase:         s.coordinator.Phase().String(),
	}
	if err := s.coordinator.Err(); err != nil {
		status.Desynced = true
		status.Error = err.Error()
	}
	s.writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	id, ok := parseParticipant(chi.URLParam(r, "participant"))
	if !ok {
		s.writeError(w, http.StatusBadRequest, "participant must be a, b, 0 or 1")
		return
	}
	// After a desync the speculative head is meaningless; serve the
	// frozen confirmed state instead.
	if s.coordinator.Err() != nil {
		s.writeJSON(w, http.StatusOK, s.coordinator.ConfirmedView(id))
		return
	}
	s.writeJSON(w, http.StatusOK, s.coordinator.View(id))
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req InputRequest
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	var it input.Intent
	switch req.Action {
	case "draw":
		it = input.Draw()
	case "play":
		it = input.Play(req.Slot)
		if _, err := input.Encode(it); err != nil {
			s.writeError(w, http.StatusBadRequest, "slot must be between 1 and 10")
			return
		}
	case "noop", "":
		it = input.NoOp()
	default:
		s.writeError(w, http.StatusBadRequest, "action must be draw, play or noop")
		return
	}

	events, err := s.coordinator.Advance(it)
	if err != nil {
		if errors.Is(err, sim.ErrDesync) {
			s.writeError(w, http.StatusConflict, err.Error())
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if events == nil {
		events = []sim.Event{}
	}
	s.writeJSON(w, http.StatusOK, InputResponse{Tick: s.coordinator.Tick(), Events: events})
}

func (s *Server) handleListMatches(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))

	matches, err := s.journal.ListMatches(r.Context(), limit, offset)
	if err != nil {
		s.logger.Printf("list matches: %v", err)
		s.writeError(w, http.StatusInternalServerError, "journal query failed")
		return
	}
	if matches == nil {
		matches = []journal.Match{}
	}
	s.writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.writeError(w, http.StatusNotFound, "journal disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid match id")
		return
	}

	res, err := s.journal.Verify(r.Context(), s.simulation, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.writeError(w, http.StatusNotFound, "match not found")
		return
	case errors.Is(err, journal.ErrVerifyFailed):
		// The mismatch itself is the result, not a server failure.
		s.writeJSON(w, http.StatusOK, res)
		return
	case err != nil:
		s.logger.Printf("verify %s: %v", id, err)
		s.writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleScriptLogs(w http.ResponseWriter, r *http.Request) {
	if s.driver == nil {
		s.writeError(w, http.StatusNotFound, "no script attached")
		return
	}
	s.writeJSON(w, http.StatusOK, s.driver.Logs())
}

func parseParticipant(raw string) (sim.ParticipantID, bool) {
	switch raw {
	case "a", "A", "0":
		return sim.ParticipantA, true
	case "b", "B", "1":
		return sim.ParticipantB, true
	default:
		return 0, false
	}
}
