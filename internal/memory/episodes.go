package memory

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"

	"github.com/vthunder/mneme/internal/logging"
)

// Memorize persists an episode, inserting its embedding into the vector
// index synchronously (spec.md §4.2 "Ordering"), and returns its id.
// Strength defaults to 0.5 when unset.
func (s *Store) Memorize(episode Episode) (string, error) {
	if episode.ID == "" {
		episode.ID = uuid.NewString()
	}
	if episode.Strength == 0 {
		episode.Strength = 0.5
	}
	if episode.Timestamp.IsZero() {
		episode.Timestamp = time.Now()
	}
	if episode.Modality == "" {
		episode.Modality = "text"
	}
	if len(episode.Embedding) == 0 && s.embedder != nil {
		emb, err := s.embedder.Embed(episode.Body)
		if err != nil {
			logging.Warn("memory", "embed episode %s: %v", episode.ID, err)
		} else {
			episode.Embedding = emb
		}
	}

	embBytes, err := json.Marshal(episode.Embedding)
	if err != nil {
		return "", fmt.Errorf("marshal embedding: %w", err)
	}
	mediaBytes, _ := json.Marshal(episode.MediaRefs)

	seq := s.nextInsertSeq()

	tx, err := s.db.Begin()
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO episodes
		(id, source, author, author_id, body, media_refs, timestamp, modality, embedding, strength, reply_to, insert_seq)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		episode.ID, episode.Source, episode.Author, episode.AuthorID, episode.Body,
		string(mediaBytes), episode.Timestamp, episode.Modality, embBytes, episode.Strength,
		nullString(episode.ReplyTo), seq)
	if err != nil {
		return "", fmt.Errorf("insert episode: %w", err)
	}

	if s.vecAvailable && len(episode.Embedding) == episodeVecDim {
		if err := s.insertEpisodeVec(tx, episode.ID, episode.Embedding); err != nil {
			// Vector index write failure must not silently diverge from the
			// episode row — surface it so startup Reindex can repair it.
			logging.Warn("memory", "vec insert for %s failed: %v (will be repaired by Reindex)", episode.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return episode.ID, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func (s *Store) insertEpisodeVec(tx *sql.Tx, id string, embedding []float64) error {
	emb32 := make([]float32, len(embedding))
	for i, v := range embedding {
		emb32[i] = float32(v)
	}
	serialized, err := sqlite_vec.SerializeFloat32(emb32)
	if err != nil {
		return err
	}
	_, err = tx.Exec(`INSERT INTO episode_vec(episode_id, embedding) VALUES (?, ?)`, id, serialized)
	return err
}

// GetEpisode fetches one episode by id, including forgotten ones.
func (s *Store) GetEpisode(id string) (Episode, error) {
	row := s.db.QueryRow(`SELECT id, source, author, author_id, body, media_refs, timestamp,
		modality, embedding, strength, COALESCE(reply_to, ''), insert_seq FROM episodes WHERE id = ?`, id)
	return scanEpisode(row)
}

func scanEpisode(row *sql.Row) (Episode, error) {
	var e Episode
	var mediaJSON, embJSON string
	if err := row.Scan(&e.ID, &e.Source, &e.Author, &e.AuthorID, &e.Body, &mediaJSON,
		&e.Timestamp, &e.Modality, &embJSON, &e.Strength, &e.ReplyTo, &e.insertSeq); err != nil {
		return Episode{}, err
	}
	_ = json.Unmarshal([]byte(mediaJSON), &e.MediaRefs)
	_ = json.Unmarshal([]byte(embJSON), &e.Embedding)
	return e, nil
}

// RecentEpisodes returns episodes within the short-term window, most recent
// first, excluding forgotten ones (strength below floor) unless includeForgotten.
func (s *Store) RecentEpisodes(since time.Time, limit int, includeForgotten bool) ([]Episode, error) {
	q := `SELECT id, source, author, author_id, body, media_refs, timestamp, modality,
		embedding, strength, COALESCE(reply_to, ''), insert_seq
		FROM episodes WHERE timestamp >= ?`
	args := []any{since}
	if !includeForgotten {
		q += ` AND strength >= ?`
		args = append(args, s.strengthFloor)
	}
	q += ` ORDER BY timestamp DESC, insert_seq DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent episodes: %w", err)
	}
	defer rows.Close()
	return scanEpisodeRows(rows)
}

func scanEpisodeRows(rows *sql.Rows) ([]Episode, error) {
	var out []Episode
	for rows.Next() {
		var e Episode
		var mediaJSON, embJSON string
		if err := rows.Scan(&e.ID, &e.Source, &e.Author, &e.AuthorID, &e.Body, &mediaJSON,
			&e.Timestamp, &e.Modality, &embJSON, &e.Strength, &e.ReplyTo, &e.insertSeq); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(mediaJSON), &e.MediaRefs)
		_ = json.Unmarshal([]byte(embJSON), &e.Embedding)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ReinforceEpisode raises strength (capped at 1.0), called when an episode
// surfaces in a recall or is referenced by positive feedback.
func (s *Store) ReinforceEpisode(id string, amount float64) error {
	_, err := s.db.Exec(`UPDATE episodes SET strength = MIN(1.0, strength + ?) WHERE id = ?`, amount, id)
	return err
}

// DecayEpisodeStrengths multiplies the strength of every episode whose
// timestamp is before cutoff by factor, per the consolidation decay curve
// (spec.md §4.10 sub-phase 3). Episodes whose IDs are in skipIDs are
// skipped so recall reinforcement isn't immediately undone.
func (s *Store) DecayEpisodeStrengths(cutoff time.Time, factor float64, skipIDs []string) (int, error) {
	placeholders := make([]string, len(skipIDs))
	args := []any{factor, cutoff}
	for i, id := range skipIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	q := `UPDATE episodes SET strength = strength * ? WHERE timestamp < ?`
	if len(placeholders) > 0 {
		q += ` AND id NOT IN (` + strings.Join(placeholders, ",") + `)`
	}
	res, err := s.db.Exec(q, args...)
	if err != nil {
		return 0, fmt.Errorf("decay episode strengths: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// ErrNotFound is returned by lookups that find no matching row.
var ErrNotFound = errors.New("memory: not found")

// Reindex repairs the vector index after a crash between an episode insert
// and its vec write (spec.md §4.2 "Ordering"): every episode with an
// embedding but no corresponding episode_vec row is reinserted.
func (s *Store) Reindex() (int, error) {
	if !s.vecAvailable {
		return 0, nil
	}
	rows, err := s.db.Query(`
		SELECT e.id, e.embedding FROM episodes e
		LEFT JOIN episode_vec v ON v.episode_id = e.id
		WHERE v.episode_id IS NULL AND e.embedding IS NOT NULL AND LENGTH(e.embedding) > 2`)
	if err != nil {
		return 0, fmt.Errorf("query missing vec rows: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id  string
		emb []float64
	}
	var missing []pending
	for rows.Next() {
		var id, embJSON string
		if err := rows.Scan(&id, &embJSON); err != nil {
			continue
		}
		var emb []float64
		if err := json.Unmarshal([]byte(embJSON), &emb); err != nil || len(emb) != episodeVecDim {
			continue
		}
		missing = append(missing, pending{id: id, emb: emb})
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	count := 0
	for _, p := range missing {
		if err := s.insertEpisodeVec(tx, p.id, p.emb); err != nil {
			continue
		}
		count++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if count > 0 {
		logging.Info("memory", "reindexed %d episodes missing from vector index", count)
	}
	return count, nil
}
