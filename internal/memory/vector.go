package memory

import (
	"fmt"
	"sort"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
)

// scoredEpisode pairs an episode with its similarity to a query embedding.
type scoredEpisode struct {
	episode    Episode
	similarity float64
}

// searchEpisodesByVector returns the k nearest episodes to query by cosine
// similarity, using the sqlite-vec ANN index when available and falling
// back to a bounded linear scan over the most recent recallWindow episodes
// otherwise (spec.md §4.2). Forgotten episodes (strength below floor) are
// excluded unless includeForgotten is set.
func (s *Store) searchEpisodesByVector(query []float64, k int, includeForgotten bool) ([]scoredEpisode, error) {
	if len(query) == 0 {
		return nil, nil
	}
	if s.vecAvailable && len(query) == episodeVecDim {
		return s.searchEpisodesANN(query, k, includeForgotten)
	}
	return s.searchEpisodesLinearScan(query, k, includeForgotten)
}

func (s *Store) searchEpisodesANN(query []float64, k int, includeForgotten bool) ([]scoredEpisode, error) {
	emb32 := make([]float32, len(query))
	for i, v := range query {
		emb32[i] = float32(v)
	}
	serialized, err := sqlite_vec.SerializeFloat32(emb32)
	if err != nil {
		return nil, fmt.Errorf("serialize query vector: %w", err)
	}

	// Over-fetch so post-filtering by strength still leaves k candidates.
	fetch := k * 4
	if fetch < 32 {
		fetch = 32
	}

	rows, err := s.db.Query(`
		SELECT v.episode_id, v.distance
		FROM episode_vec v
		WHERE v.embedding MATCH ? AND k = ?
		ORDER BY v.distance`, serialized, fetch)
	if err != nil {
		return nil, fmt.Errorf("ann query: %w", err)
	}
	defer rows.Close()

	var out []scoredEpisode
	for rows.Next() {
		var id string
		var dist float64
		if err := rows.Scan(&id, &dist); err != nil {
			continue
		}
		ep, err := s.GetEpisode(id)
		if err != nil {
			continue
		}
		if !includeForgotten && ep.Strength < s.strengthFloor {
			continue
		}
		// embeddings are stored unnormalized; dist here is raw L2. Convert
		// to a similarity proxy via cosine on the stored vectors directly
		// for correctness instead of trusting L2-on-unnormalized distance.
		sim := cosineSim(query, ep.Embedding)
		out = append(out, scoredEpisode{episode: ep, similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].similarity > out[j].similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out, rows.Err()
}

func (s *Store) searchEpisodesLinearScan(query []float64, k int, includeForgotten bool) ([]scoredEpisode, error) {
	q := `SELECT id, source, author, author_id, body, media_refs, timestamp, modality,
		embedding, strength, COALESCE(reply_to, ''), insert_seq
		FROM episodes WHERE embedding IS NOT NULL AND LENGTH(embedding) > 2`
	if !includeForgotten {
		q += fmt.Sprintf(" AND strength >= %f", s.strengthFloor)
	}
	q += fmt.Sprintf(" ORDER BY timestamp DESC, insert_seq DESC LIMIT %d", s.recallWindow)

	rows, err := s.db.Query(q)
	if err != nil {
		return nil, fmt.Errorf("linear scan query: %w", err)
	}
	defer rows.Close()

	episodes, err := scanEpisodeRows(rows)
	if err != nil {
		return nil, err
	}

	out := make([]scoredEpisode, 0, len(episodes))
	for _, ep := range episodes {
		sim := cosineSim(query, ep.Embedding)
		out = append(out, scoredEpisode{episode: ep, similarity: sim})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].similarity > out[j].similarity })
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}
