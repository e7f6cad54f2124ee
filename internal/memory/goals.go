package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveGoal inserts or updates a goal row (spec.md §6 `goals`).
func (s *Store) SaveGoal(g Goal) (string, error) {
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	if g.Status == "" {
		g.Status = "open"
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO goals (id, description, status, priority, created_at, due_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET description=excluded.description, status=excluded.status,
			priority=excluded.priority, due_at=excluded.due_at`,
		g.ID, g.Description, g.Status, g.Priority, g.CreatedAt, g.DueAt)
	if err != nil {
		return "", fmt.Errorf("save goal: %w", err)
	}
	return g.ID, nil
}

// OpenGoals returns goals with status "open", highest priority first.
func (s *Store) OpenGoals() ([]Goal, error) {
	rows, err := s.db.Query(`SELECT id, description, status, priority, created_at, due_at
		FROM goals WHERE status = 'open' ORDER BY priority DESC`)
	if err != nil {
		return nil, fmt.Errorf("query open goals: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var g Goal
		if err := rows.Scan(&g.ID, &g.Description, &g.Status, &g.Priority, &g.CreatedAt, &g.DueAt); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}
