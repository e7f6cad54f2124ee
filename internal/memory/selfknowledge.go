package memory

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// UpsertSelfKnowledge inserts a self-knowledge row, or replaces an existing
// one with the same id. Per spec.md §3, rows are seeded from bootstrap
// persona text and subsequently authored only by consolidation — the
// reasoning loop itself never calls this.
func (s *Store) UpsertSelfKnowledge(sk SelfKnowledge) (string, error) {
	if sk.ID == "" {
		sk.ID = uuid.NewString()
	}
	if sk.CreatedAt.IsZero() {
		sk.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO self_knowledge (id, domain, content, confidence, source, source_episode, private, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET domain=excluded.domain, content=excluded.content,
			confidence=excluded.confidence, source=excluded.source, source_episode=excluded.source_episode,
			private=excluded.private`,
		sk.ID, sk.Domain, sk.Content, sk.Confidence, sk.Source, nullString(sk.SourceEpisode), sk.Private, sk.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("upsert self knowledge: %w", err)
	}
	return sk.ID, nil
}

// SelfKnowledgeByDomain returns every row for a domain, most confident first.
func (s *Store) SelfKnowledgeByDomain(domain string) ([]SelfKnowledge, error) {
	rows, err := s.db.Query(`SELECT id, domain, content, confidence, COALESCE(source,''),
		COALESCE(source_episode,''), private, created_at FROM self_knowledge
		WHERE domain = ? ORDER BY confidence DESC`, domain)
	if err != nil {
		return nil, fmt.Errorf("query self knowledge: %w", err)
	}
	defer rows.Close()
	return scanSelfKnowledgeRows(rows)
}

// AllSelfKnowledge returns every non-private row, used to seed the
// Persona layer of the Context Assembler (never dropped, spec.md §4.4).
func (s *Store) AllSelfKnowledge(includePrivate bool) ([]SelfKnowledge, error) {
	q := `SELECT id, domain, content, confidence, COALESCE(source,''), COALESCE(source_episode,''), private, created_at FROM self_knowledge`
	if !includePrivate {
		q += ` WHERE private = 0`
	}
	q += ` ORDER BY confidence DESC`
	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("query all self knowledge: %w", err)
	}
	defer rows.Close()
	return scanSelfKnowledgeRows(rows)
}

func scanSelfKnowledgeRows(rows *sql.Rows) ([]SelfKnowledge, error) {
	var out []SelfKnowledge
	for rows.Next() {
		var sk SelfKnowledge
		if err := rows.Scan(&sk.ID, &sk.Domain, &sk.Content, &sk.Confidence, &sk.Source, &sk.SourceEpisode, &sk.Private, &sk.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sk)
	}
	return out, rows.Err()
}
