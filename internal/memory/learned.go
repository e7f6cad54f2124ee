package memory

import (
	"database/sql"
	"fmt"
)

// SaveLearnedCurves persists the modulation_curves JSON blob (slow-tier
// variable, spec.md §3/§4.3). The `learned_curves` table is a singleton;
// this is an upsert on the fixed id=1 row.
func (s *Store) SaveLearnedCurves(curvesJSON string) error {
	_, err := s.db.Exec(`INSERT INTO learned_curves (id, curves_json) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET curves_json = excluded.curves_json`, curvesJSON)
	if err != nil {
		return fmt.Errorf("save learned curves: %w", err)
	}
	return nil
}

// LoadLearnedCurves returns the persisted curves JSON, or "" if never saved.
func (s *Store) LoadLearnedCurves() (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT curves_json FROM learned_curves WHERE id = 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SaveLearnedThresholds persists BehaviorThresholds JSON (the learnable
// "magic numbers" — attention/silence thresholds — kept out of code per
// SPEC_FULL.md's modulation package notes).
func (s *Store) SaveLearnedThresholds(thresholdsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO learned_thresholds (id, thresholds_json) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET thresholds_json = excluded.thresholds_json`, thresholdsJSON)
	if err != nil {
		return fmt.Errorf("save learned thresholds: %w", err)
	}
	return nil
}

// LoadLearnedThresholds returns the persisted thresholds JSON, or "" if never saved.
func (s *Store) LoadLearnedThresholds() (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT thresholds_json FROM learned_thresholds WHERE id = 1`).Scan(&v)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return v, err
}

// SaveLearnedNeural persists the `learned_neural` singleton — reserved for
// the neural modulation-curve projection spec.md §9 defers to a later
// evolution phase. No component writes to this yet; it exists so the
// schema and the downstream-unchanged contract (§9) are already in place.
func (s *Store) SaveLearnedNeural(weightsJSON string) error {
	_, err := s.db.Exec(`INSERT INTO learned_neural (id, weights_json) VALUES (1, ?)
		ON CONFLICT(id) DO UPDATE SET weights_json = excluded.weights_json`, weightsJSON)
	return err
}

// SaveBehaviorRule upserts one named learnable constant (spec.md §6
// `behavior_rules`).
func (s *Store) SaveBehaviorRule(rule BehaviorRule) error {
	_, err := s.db.Exec(`INSERT INTO behavior_rules (name, value) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET value = excluded.value`, rule.Name, rule.Value)
	return err
}

// BehaviorRules returns every learnable constant as a name->value map.
func (s *Store) BehaviorRules() (map[string]float64, error) {
	rows, err := s.db.Query(`SELECT name, value FROM behavior_rules`)
	if err != nil {
		return nil, fmt.Errorf("query behavior rules: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var name string
		var value float64
		if err := rows.Scan(&name, &value); err != nil {
			return nil, err
		}
		out[name] = value
	}
	return out, rows.Err()
}
