package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/vthunder/mneme/internal/state"
)

// SaveOrganismState upserts the singleton organism_state row and appends a
// history row (spec.md §6 `organism_state` / `organism_state_history`).
// This is the persistence half of the State Store (L2): the in-memory
// model and its Normalize() invariant live in internal/state; Memory is
// the only component allowed to put it on disk (spec.md §5).
func (s *Store) SaveOrganismState(st *state.OrganismState) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal organism state: %w", err)
	}
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`INSERT INTO organism_state (id, state_json, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET state_json = excluded.state_json, updated_at = excluded.updated_at`,
		string(data), now); err != nil {
		return fmt.Errorf("upsert organism state: %w", err)
	}
	if _, err := tx.Exec(`INSERT INTO organism_state_history (state_json, recorded_at) VALUES (?, ?)`,
		string(data), now); err != nil {
		return fmt.Errorf("append organism state history: %w", err)
	}
	return tx.Commit()
}

// LoadOrganismState returns the singleton state row, or a fresh default
// state if none has been saved yet (cold start, spec.md §8 scenario 1).
func (s *Store) LoadOrganismState() (*state.OrganismState, error) {
	var data string
	err := s.db.QueryRow(`SELECT state_json FROM organism_state WHERE id = 1`).Scan(&data)
	if err == sql.ErrNoRows {
		return state.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load organism state: %w", err)
	}
	var st state.OrganismState
	if err := json.Unmarshal([]byte(data), &st); err != nil {
		return nil, fmt.Errorf("unmarshal organism state: %w", err)
	}
	return &st, nil
}
