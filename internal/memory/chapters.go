package memory

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// SaveNarrativeChapter persists a chapter woven by consolidation (spec.md
// §4.10 sub-phase 4).
func (s *Store) SaveNarrativeChapter(c NarrativeChapter) (string, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	themes, _ := json.Marshal(c.Themes)
	people, _ := json.Marshal(c.People)
	turningPoints, _ := json.Marshal(c.TurningPoints)
	_, err := s.db.Exec(`INSERT INTO narrative_chapters
		(id, title, content, period_start, period_end, emotional_tone, themes, people, turning_points)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Title, c.Content, c.PeriodStart, c.PeriodEnd, c.EmotionalTone, themes, people, turningPoints)
	if err != nil {
		return "", fmt.Errorf("save narrative chapter: %w", err)
	}
	return c.ID, nil
}

// RecentNarrativeChapters returns the most recent chapters, newest first.
func (s *Store) RecentNarrativeChapters(limit int) ([]NarrativeChapter, error) {
	rows, err := s.db.Query(`SELECT id, title, content, period_start, period_end, emotional_tone,
		themes, people, turning_points FROM narrative_chapters ORDER BY period_end DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query narrative chapters: %w", err)
	}
	defer rows.Close()

	var out []NarrativeChapter
	for rows.Next() {
		c, err := scanChapter(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanChapter(rows *sql.Rows) (NarrativeChapter, error) {
	var c NarrativeChapter
	var themes, people, turningPoints string
	if err := rows.Scan(&c.ID, &c.Title, &c.Content, &c.PeriodStart, &c.PeriodEnd, &c.EmotionalTone,
		&themes, &people, &turningPoints); err != nil {
		return NarrativeChapter{}, err
	}
	_ = json.Unmarshal([]byte(themes), &c.Themes)
	_ = json.Unmarshal([]byte(people), &c.People)
	_ = json.Unmarshal([]byte(turningPoints), &c.TurningPoints)
	return c, nil
}
