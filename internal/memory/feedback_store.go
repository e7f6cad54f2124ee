package memory

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SaveFeedbackSignal persists one staged signal so the Feedback Buffer
// survives restarts (spec.md §4.6 "Offline consolidation"). The buffer
// itself (internal/feedback) holds the uncertainty/temporal-smoothing
// logic in memory and calls through to this method for durability — Memory
// remains the only component doing disk I/O (spec.md §5).
func (s *Store) SaveFeedbackSignal(f FeedbackRecord) (string, error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	if f.Timestamp.IsZero() {
		f.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO feedback_signals
		(id, signal_type, content, confidence, emotional_context, timestamp, consolidated)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.SignalType, f.Content, f.Confidence, f.EmotionalContext, f.Timestamp, f.Consolidated)
	if err != nil {
		return "", fmt.Errorf("save feedback signal: %w", err)
	}
	return f.ID, nil
}

// UnconsolidatedFeedback returns every signal not yet drained by
// consolidation, oldest first.
func (s *Store) UnconsolidatedFeedback() ([]FeedbackRecord, error) {
	rows, err := s.db.Query(`SELECT id, signal_type, content, confidence, emotional_context, timestamp, consolidated
		FROM feedback_signals WHERE consolidated = 0 ORDER BY timestamp ASC`)
	if err != nil {
		return nil, fmt.Errorf("query unconsolidated feedback: %w", err)
	}
	defer rows.Close()

	var out []FeedbackRecord
	for rows.Next() {
		var f FeedbackRecord
		if err := rows.Scan(&f.ID, &f.SignalType, &f.Content, &f.Confidence, &f.EmotionalContext, &f.Timestamp, &f.Consolidated); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// MarkFeedbackConsolidated flags signals as drained, making sub-phase 1 of
// consolidation independently restartable: a crash after the medium/slow
// update but before this call simply redrains the same signals next run.
func (s *Store) MarkFeedbackConsolidated(ids []string) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, id := range ids {
		if _, err := tx.Exec(`UPDATE feedback_signals SET consolidated = 1 WHERE id = ?`, id); err != nil {
			return fmt.Errorf("mark feedback consolidated: %w", err)
		}
	}
	return tx.Commit()
}

// SaveTokenUsage accounts one LLM call against the token budget (spec.md §5).
func (s *Store) SaveTokenUsage(rec TokenUsageRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO token_usage (timestamp, prompt_tokens, output_tokens, provider, model)
		VALUES (?, ?, ?, ?, ?)`, rec.Timestamp, rec.PromptTokens, rec.OutputTokens, rec.Provider, rec.Model)
	if err != nil {
		return fmt.Errorf("save token usage: %w", err)
	}
	return nil
}

// TokenUsageSince sums prompt+output tokens spent since cutoff.
func (s *Store) TokenUsageSince(cutoff time.Time) (int, error) {
	var total int
	err := s.db.QueryRow(`SELECT COALESCE(SUM(prompt_tokens + output_tokens), 0) FROM token_usage WHERE timestamp >= ?`, cutoff).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum token usage: %w", err)
	}
	return total, nil
}

// SaveModulationSample records an observed (state, vector) pair as training
// data for a future learned modulation mapper (spec.md §9).
func (s *Store) SaveModulationSample(sample ModulationSample) error {
	if sample.Timestamp.IsZero() {
		sample.Timestamp = time.Now()
	}
	_, err := s.db.Exec(`INSERT INTO modulation_samples (timestamp, state_json, vector_json) VALUES (?, ?, ?)`,
		sample.Timestamp, sample.StateJSON, sample.VectorJSON)
	return err
}
