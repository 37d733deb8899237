// Package journal persists the authoritative record of a match: its seed,
// its deck and every confirmed input, tick by tick. Because the simulation
// is deterministic, that record is sufficient to re-derive the entire
// match after the fact and check it against the recorded final hash.
package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // pure-Go SQLite driver

	"github.com/sensen-game/sensen-core/internal/cards"
	"github.com/sensen-game/sensen-core/internal/input"
	"github.com/sensen-game/sensen-core/internal/sim"
)

// Match is one journaled match. FinalTick and FinalHash stay zero-valued
// until the match is finalized.
type Match struct {
	ID        uuid.UUID  `json:"id"`
	Seed      uint64     `json:"seed"`
	Deck      []cards.ID `json:"deck"`
	CreatedAt time.Time  `json:"created_at"`
	FinalTick sim.Tick   `json:"final_tick"`
	FinalHash string     `json:"final_hash,omitempty"`
}

// Input is one confirmed input row.
type Input struct {
	Tick        sim.Tick    `json:"tick"`
	Participant uint8       `json:"participant"`
	Value       input.Value `json:"value"`
}

type Store struct {
	db *sql.DB
}

// New opens/creates a SQLite database at dbPath and runs migrations.
func New(dbPath string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&cache=shared", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1) // SQLite is not concurrent for writes
	s := &Store{db: db}
	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate(ctx context.Context) error {
	stmts := []string{
		// Seed is stored as hex text: SQLite INTEGER is signed 64-bit.
		`CREATE TABLE IF NOT EXISTS matches (
			id TEXT PRIMARY KEY,
			seed TEXT NOT NULL,
			deck TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			final_tick INTEGER NOT NULL DEFAULT 0,
			final_hash TEXT NOT NULL DEFAULT ''
		);`,
		`CREATE INDEX IF NOT EXISTS idx_matches_created ON matches(created_at DESC);`,

		`CREATE TABLE IF NOT EXISTS match_inputs (
			match_id TEXT NOT NULL,
			tick INTEGER NOT NULL,
			participant INTEGER NOT NULL,
			value INTEGER NOT NULL,
			recorded_at TIMESTAMP NOT NULL,
			UNIQUE(match_id, tick, participant),
			FOREIGN KEY(match_id) REFERENCES matches(id) ON DELETE CASCADE
		);`,
		`CREATE INDEX IF NOT EXISTS idx_match_inputs_tick ON match_inputs(match_id, tick);`,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	for _, q := range stmts {
		if _, err := tx.ExecContext(ctx, q); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// CreateMatch registers a match before its first tick. Creating the same
// match id twice is an error.
func (s *Store) CreateMatch(ctx context.Context, id uuid.UUID, seed uint64, deck []cards.ID) error {
	deckJSON, err := json.Marshal(deck)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO matches(id, seed, deck, created_at) VALUES(?, ?, ?, ?)`,
		id.String(), fmt.Sprintf("%016x", seed), string(deckJSON), time.Now().UTC())
	return err
}

// RecordInput stores one confirmed input. Idempotent on
// (match_id, tick, participant): the rollback transport may deliver
// duplicates, and both peers may journal the same value.
func (s *Store) RecordInput(ctx context.Context, matchID uuid.UUID, in Input) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO match_inputs(match_id, tick, participant, value, recorded_at)
		VALUES(?, ?, ?, ?, ?)`,
		matchID.String(), int64(in.Tick), in.Participant, in.Value, time.Now().UTC())
	if err != nil && isConstraintErr(err) {
		return nil
	}
	return err
}

// Finalize records the terminal tick and state hash of a finished match.
func (s *Store) Finalize(ctx context.Context, matchID uuid.UUID, finalTick sim.Tick, hash string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE matches SET final_tick=?, final_hash=? WHERE id=?`,
		int64(finalTick), hash, matchID.String())
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetMatch returns one journaled match.
func (s *Store) GetMatch(ctx context.Context, id uuid.UUID) (Match, error) {
	var (
		m        Match
		idStr    string
		seedHex  string
		deckJSON string
		tick     int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, seed, deck, created_at, final_tick, final_hash
		FROM matches WHERE id=?`, id.String()).
		Scan(&idStr, &seedHex, &deckJSON, &m.CreatedAt, &tick, &m.FinalHash)
	if err != nil {
		return Match{}, err
	}
	m.ID = uuid.MustParse(idStr)
	m.FinalTick = sim.Tick(tick)
	if m.Seed, err = strconv.ParseUint(seedHex, 16, 64); err != nil {
		return Match{}, fmt.Errorf("journal: corrupt seed %q: %w", seedHex, err)
	}
	if err := json.Unmarshal([]byte(deckJSON), &m.Deck); err != nil {
		return Match{}, fmt.Errorf("journal: corrupt deck: %w", err)
	}
	return m, nil
}

// ListMatches returns journaled matches, newest first.
func (s *Store) ListMatches(ctx context.Context, limit, offset int) ([]Match, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM matches ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var idStr string
		if err := rows.Scan(&idStr); err != nil {
			return nil, err
		}
		ids = append(ids, uuid.MustParse(idStr))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.GetMatch(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Inputs returns every recorded input of a match ordered by tick, then
// participant.
func (s *Store) Inputs(ctx context.Context, matchID uuid.UUID) ([]Input, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, participant, value
		FROM match_inputs WHERE match_id=?
		ORDER BY tick ASC, participant ASC`, matchID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Input
	for rows.Next() {
		var (
			in   Input
			tick int64
			val  int64
		)
		if err := rows.Scan(&tick, &in.Participant, &val); err != nil {
			return nil, err
		}
		in.Tick = sim.Tick(tick)
		in.Value = input.Value(val)
		out = append(out, in)
	}
	return out, rows.Err()
}

// DeleteMatch removes a match and all recorded inputs.
func (s *Store) DeleteMatch(ctx context.Context, matchID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM matches WHERE id=?`, matchID.String())
	return err
}

func isConstraintErr(err error) bool {
	// modernc sqlite reports duplicates with messages containing
	// "UNIQUE constraint failed". Use substring match.
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "constraint")
}
