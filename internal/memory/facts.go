package memory

import (
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// betaConflictDecay is the factor β (spec.md §4.2 "Fact conflict") by which
// both sides of a contradicting pair decay: the more-reinforced side wins
// over time rather than by last write.
const betaConflictDecay = 0.85

// StoreFact inserts a new fact, or blends confidence into an existing one
// with the identical triple. A contradicting fact — same subject+predicate,
// different object — decays both the incoming and the existing fact's
// confidence by betaConflictDecay rather than overwriting.
func (s *Store) StoreFact(fact SemanticFact) error {
	now := time.Now()
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = now
	}
	fact.UpdatedAt = now

	existing, err := s.getFact(fact.Key())
	if err == nil {
		// Identical triple: merge by confidence blend, never last-write.
		blended := blendConfidence(existing.Confidence, fact.Confidence)
		return s.upsertFactRow(SemanticFact{
			Subject: fact.Subject, Predicate: fact.Predicate, Object: fact.Object,
			Confidence: blended, CreatedAt: existing.CreatedAt, UpdatedAt: now,
		})
	} else if err != ErrNotFound {
		return err
	}

	contradicting, err := s.getContradicting(fact.Subject, fact.Predicate, fact.Object)
	if err == nil {
		decayedNew := fact.Confidence * betaConflictDecay
		decayedExisting := contradicting.Confidence * betaConflictDecay
		if err := s.upsertFactRow(SemanticFact{
			Subject: contradicting.Subject, Predicate: contradicting.Predicate, Object: contradicting.Object,
			Confidence: decayedExisting, CreatedAt: contradicting.CreatedAt, UpdatedAt: now,
		}); err != nil {
			return err
		}
		return s.upsertFactRow(SemanticFact{
			Subject: fact.Subject, Predicate: fact.Predicate, Object: fact.Object,
			Confidence: decayedNew, CreatedAt: fact.CreatedAt, UpdatedAt: now,
		})
	}

	return s.upsertFactRow(fact)
}

// blendConfidence merges two confidences for the same triple. A simple
// weighted average biased slightly toward reinforcement (repeated
// ingestion of the same fact should raise confidence, not just average it).
func blendConfidence(existing, incoming float64) float64 {
	blended := (existing + incoming) / 2
	if incoming > existing*0.8 {
		// Reinforcing ingestion: nudge up rather than average down.
		blended = existing + (1-existing)*0.15
	}
	if blended > 1 {
		blended = 1
	}
	return blended
}

func (s *Store) upsertFactRow(f SemanticFact) error {
	_, err := s.db.Exec(`INSERT INTO facts (subject, predicate, object, confidence, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject, predicate, object) DO UPDATE SET confidence = excluded.confidence, updated_at = excluded.updated_at`,
		f.Subject, f.Predicate, f.Object, f.Confidence, f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert fact: %w", err)
	}
	return nil
}

func (s *Store) getFact(key FactKey) (SemanticFact, error) {
	row := s.db.QueryRow(`SELECT subject, predicate, object, confidence, created_at, updated_at
		FROM facts WHERE subject = ? AND predicate = ? AND object = ?`, key.Subject, key.Predicate, key.Object)
	return scanFact(row)
}

func (s *Store) getContradicting(subject, predicate, object string) (SemanticFact, error) {
	row := s.db.QueryRow(`SELECT subject, predicate, object, confidence, created_at, updated_at
		FROM facts WHERE subject = ? AND predicate = ? AND object != ? ORDER BY confidence DESC LIMIT 1`,
		subject, predicate, object)
	return scanFact(row)
}

func scanFact(row *sql.Row) (SemanticFact, error) {
	var f SemanticFact
	err := row.Scan(&f.Subject, &f.Predicate, &f.Object, &f.Confidence, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return SemanticFact{}, ErrNotFound
	}
	if err != nil {
		return SemanticFact{}, err
	}
	return f, nil
}

// UpdateFact directly sets a fact's confidence, used by consolidation when
// promoting a reinforced hypothesis.
func (s *Store) UpdateFact(key FactKey, confidence float64) error {
	res, err := s.db.Exec(`UPDATE facts SET confidence = ?, updated_at = ? WHERE subject = ? AND predicate = ? AND object = ?`,
		confidence, time.Now(), key.Subject, key.Predicate, key.Object)
	if err != nil {
		return fmt.Errorf("update fact: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DecayFact reduces one fact's confidence by factor, used for facts that
// go unreinforced across a consolidation cycle.
func (s *Store) DecayFact(key FactKey, factor float64) error {
	_, err := s.db.Exec(`UPDATE facts SET confidence = confidence * ? WHERE subject = ? AND predicate = ? AND object = ?`,
		factor, key.Subject, key.Predicate, key.Object)
	return err
}

// GetFactsAbout returns every fact whose subject matches, ordered by
// descending confidence.
func (s *Store) GetFactsAbout(subject string) ([]SemanticFact, error) {
	rows, err := s.db.Query(`SELECT subject, predicate, object, confidence, created_at, updated_at
		FROM facts WHERE subject = ? ORDER BY confidence DESC`, subject)
	if err != nil {
		return nil, fmt.Errorf("query facts about %s: %w", subject, err)
	}
	defer rows.Close()

	var out []SemanticFact
	for rows.Next() {
		var f SemanticFact
		if err := rows.Scan(&f.Subject, &f.Predicate, &f.Object, &f.Confidence, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// FormatFactsForPrompt renders facts as a compact bullet list for context
// assembly, dropping anything below minConfidence.
func FormatFactsForPrompt(facts []SemanticFact, minConfidence float64) string {
	sort.Slice(facts, func(i, j int) bool { return facts[i].Confidence > facts[j].Confidence })
	var lines []string
	for _, f := range facts {
		if f.Confidence < minConfidence {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s %s %s (%.0f%% confidence)", f.Subject, f.Predicate, f.Object, f.Confidence*100))
	}
	return strings.Join(lines, "\n")
}
