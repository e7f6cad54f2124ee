package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertPerson inserts or updates a person's display name.
func (s *Store) UpsertPerson(p Person) (string, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := s.db.Exec(`INSERT INTO people (id, display_name) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name`, p.ID, p.DisplayName)
	if err != nil {
		return "", fmt.Errorf("upsert person: %w", err)
	}
	return p.ID, nil
}

// LinkAlias maps a (platform, platform_id) pair to a person id. Alias keys
// are unique, per spec.md §3 SocialGraph.
func (s *Store) LinkAlias(alias Alias) error {
	_, err := s.db.Exec(`INSERT INTO aliases (platform, platform_id, person_id) VALUES (?, ?, ?)
		ON CONFLICT(platform, platform_id) DO UPDATE SET person_id = excluded.person_id`,
		alias.Platform, alias.PlatformID, alias.PersonID)
	if err != nil {
		return fmt.Errorf("link alias: %w", err)
	}
	return nil
}

// PersonByAlias resolves a (platform, platform_id) pair to a Person.
func (s *Store) PersonByAlias(platform, platformID string) (Person, error) {
	var personID string
	err := s.db.QueryRow(`SELECT person_id FROM aliases WHERE platform = ? AND platform_id = ?`,
		platform, platformID).Scan(&personID)
	if err == sql.ErrNoRows {
		return Person{}, ErrNotFound
	}
	if err != nil {
		return Person{}, err
	}
	return s.GetPerson(personID)
}

// GetPerson fetches a person by id.
func (s *Store) GetPerson(id string) (Person, error) {
	var p Person
	err := s.db.QueryRow(`SELECT id, display_name FROM people WHERE id = ?`, id).Scan(&p.ID, &p.DisplayName)
	if err == sql.ErrNoRows {
		return Person{}, ErrNotFound
	}
	return p, err
}

// RecordInteraction appends a directed, timestamped interaction edge.
func (s *Store) RecordInteraction(in Interaction) error {
	if in.Timestamp.IsZero() {
		in.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO relationships (person_id, context, positive, timestamp) VALUES (?, ?, ?, ?)`,
		in.PersonID, in.Context, in.Positive, in.Timestamp)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

// InteractionsWith returns the most recent interactions with a person,
// most recent first.
func (s *Store) InteractionsWith(personID string, limit int) ([]Interaction, error) {
	rows, err := s.db.Query(`SELECT person_id, context, positive, timestamp FROM relationships
		WHERE person_id = ? ORDER BY timestamp DESC LIMIT ?`, personID, limit)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var in Interaction
		if err := rows.Scan(&in.PersonID, &in.Context, &in.Positive, &in.Timestamp); err != nil {
			return nil, err
		}
		out = append(out, in)
	}
	return out, rows.Err()
}

// TimeSinceLastPositiveInteraction returns how long it has been since the
// most recent positive interaction with personID, used by the Dynamics
// Engine's medium-tier attachment_anxiety update (spec.md §4.1). A person
// with no positive interaction on record returns ok=false.
func (s *Store) TimeSinceLastPositiveInteraction(personID string, now time.Time) (time.Duration, bool) {
	var ts time.Time
	err := s.db.QueryRow(`SELECT timestamp FROM relationships WHERE person_id = ? AND positive = 1
		ORDER BY timestamp DESC LIMIT 1`, personID).Scan(&ts)
	if err != nil {
		return 0, false
	}
	return now.Sub(ts), true
}

// FactsAboutPerson returns facts keyed by the person's display name — the
// convention fact extraction uses for social-subject triples.
func (s *Store) FactsAboutPerson(personID string) ([]SemanticFact, error) {
	p, err := s.GetPerson(personID)
	if err != nil {
		return nil, err
	}
	return s.GetFactsAbout(p.DisplayName)
}

// SocialContextFor assembles the blended social context for a person,
// used by Recall when a person is referenced in a query (spec.md §4.2).
func (s *Store) SocialContextFor(personID string) (SocialContext, error) {
	p, err := s.GetPerson(personID)
	if err != nil {
		return SocialContext{}, err
	}
	facts, err := s.FactsAboutPerson(personID)
	if err != nil {
		return SocialContext{}, err
	}
	interactions, err := s.InteractionsWith(personID, 10)
	if err != nil {
		return SocialContext{}, err
	}
	return SocialContext{Person: p, Facts: facts, Interactions: interactions}, nil
}
