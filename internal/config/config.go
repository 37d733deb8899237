// Package config loads process configuration from environment variables.
package config

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config controls the match host process. Both peers of a match must agree
// on seed, window and deck; everything else is local.
type Config struct {
	// ListenAddr serves the HTTP API and, for the hosting peer, the
	// websocket endpoint the remote peer dials.
	ListenAddr string `env:"SENSEN_LISTEN_ADDR" envDefault:"127.0.0.1:8077"`
	// PeerURL is the host's websocket URL. Empty means this process hosts
	// and waits for the remote to connect.
	PeerURL string `env:"SENSEN_PEER_URL"`
	// Participant is the local seat, "a" or "b".
	Participant string `env:"SENSEN_PARTICIPANT" envDefault:"a"`
	// MatchSeed feeds both replicated shuffle states. Zero selects the
	// built-in default seed.
	MatchSeed uint64 `env:"SENSEN_MATCH_SEED"`
	// Window is the snapshot depth in ticks and therefore the maximum
	// rollback. 120 covers three seconds at the default tick rate.
	Window int `env:"SENSEN_ROLLBACK_WINDOW" envDefault:"120"`
	// JournalPath is the SQLite file for the match journal. Empty
	// disables journaling.
	JournalPath string `env:"SENSEN_JOURNAL_PATH" envDefault:"sensen.db"`
	// CardsPath points to a JSON card catalog. Empty uses the builtin
	// catalog.
	CardsPath string `env:"SENSEN_CARDS_PATH"`
	// ScriptPath points to a JavaScript bot driving the local seat.
	// Empty leaves input to the HTTP API.
	ScriptPath string `env:"SENSEN_SCRIPT_PATH"`
}

// Load reads and validates configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if cfg.Participant != "a" && cfg.Participant != "b" {
		return Config{}, fmt.Errorf("SENSEN_PARTICIPANT must be a or b, got %q", cfg.Participant)
	}
	if cfg.Window < 2 {
		return Config{}, fmt.Errorf("SENSEN_ROLLBACK_WINDOW must be at least 2, got %d", cfg.Window)
	}
	return cfg, nil
}
