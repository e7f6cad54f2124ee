package memory

import (
	"regexp"
	"strings"
	"time"
)

// recallShortTermWindow bounds the "recent episodes" slice of a Recall
// result (spec.md §4.2 "recent episodes within a short-term window").
const recallShortTermWindow = 30 * time.Minute

// toneMatchAlpha weights how strongly mood_bias re-ranks recall toward
// tonally congruent episodes (spec.md §4.2 recall scoring formula).
const toneMatchAlpha = 0.5

// recallReinforcement is the strength bump a recalled episode receives
// (spec.md §4.8 sub-phase 3: "reinforcing episodes referenced in recent
// recall" so decay doesn't immediately undo a fresh retrieval).
const recallReinforcement = 0.02

// Recall runs the blended query spec.md §4.2 describes: the caller supplies
// query text, k, and a mood bias, and gets back episodes, relevant facts,
// recent episodes, and social context in one call — it does not choose
// which subsystem is queried.
func (s *Store) Recall(query string, k int, moodBias float64) (RecallResult, error) {
	var result RecallResult

	if s.embedder != nil && query != "" {
		queryEmb, err := s.embedder.Embed(query)
		if err == nil {
			scored, err := s.searchEpisodesByVector(queryEmb, k*3, false)
			if err == nil {
				result.Episodes = rerankByToneAndStrength(scored, moodBias, k)
				for _, ep := range result.Episodes {
					_ = s.ReinforceEpisode(ep.ID, recallReinforcement)
				}
			}
		}
	}

	subjects := extractCandidateSubjects(query)
	seen := make(map[string]bool)
	for _, subj := range subjects {
		facts, err := s.GetFactsAbout(subj)
		if err != nil {
			continue
		}
		for _, f := range facts {
			key := f.Subject + "|" + f.Predicate + "|" + f.Object
			if seen[key] {
				continue
			}
			seen[key] = true
			result.RelevantFacts = append(result.RelevantFacts, f)
		}
	}

	recent, err := s.RecentEpisodes(time.Now().Add(-recallShortTermWindow), 20, false)
	if err == nil {
		result.RecentEpisodes = recent
	}

	for _, name := range subjects {
		p, err := s.personByDisplayName(name)
		if err != nil {
			continue
		}
		ctx, err := s.SocialContextFor(p.ID)
		if err != nil {
			continue
		}
		result.SocialContext = append(result.SocialContext, ctx)
	}

	return result, nil
}

// rerankByToneAndStrength applies the §4.2 scoring formula:
// similarity · strength · (1 + α·tone_match(mood_bias)), returning the
// top-k episodes.
func rerankByToneAndStrength(scored []scoredEpisode, moodBias float64, k int) []Episode {
	type ranked struct {
		ep    Episode
		score float64
	}
	out := make([]ranked, 0, len(scored))
	for _, se := range scored {
		tone := toneMatch(se.episode.Body, moodBias)
		score := se.similarity * se.episode.Strength * (1 + toneMatchAlpha*tone)
		out = append(out, ranked{ep: se.episode, score: score})
	}
	// Simple insertion sort; result sets are small (k*3).
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].score > out[j-1].score; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	episodes := make([]Episode, len(out))
	for i, r := range out {
		episodes[i] = r.ep
	}
	return episodes
}

// negativeWords/positiveWords give a cheap lexical valence proxy for
// tone_match; a production instance would reuse the stored episode
// sentiment computed at ingest time, but the contract only needs a
// monotone signal in [-1,1] that agrees with mood_bias sign.
var negativeWords = []string{"sad", "angry", "hate", "worried", "anxious", "hurt", "bad", "terrible", "awful", "upset"}
var positiveWords = []string{"happy", "glad", "love", "great", "excited", "good", "wonderful", "fun", "nice"}

func toneMatch(body string, moodBias float64) float64 {
	lower := strings.ToLower(body)
	var valence float64
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			valence -= 0.3
		}
	}
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			valence += 0.3
		}
	}
	if valence > 1 {
		valence = 1
	}
	if valence < -1 {
		valence = -1
	}
	// Agreement between episode valence and mood bias, in [-1,1].
	return valence * moodBias
}

var wordPattern = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_'-]{2,}`)

// extractCandidateSubjects pulls capitalized-looking or simply long-enough
// tokens out of a query as candidate fact/person subjects. Fact extraction
// (reasoning.Extractor) does the real NLP work at ingest time; Recall only
// needs a cheap lookup key.
func extractCandidateSubjects(query string) []string {
	words := wordPattern.FindAllString(query, -1)
	seen := make(map[string]bool)
	var out []string
	for _, w := range words {
		key := strings.ToLower(w)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, w)
	}
	return out
}

func (s *Store) personByDisplayName(name string) (Person, error) {
	var p Person
	err := s.db.QueryRow(`SELECT id, display_name FROM people WHERE display_name = ? COLLATE NOCASE`, name).Scan(&p.ID, &p.DisplayName)
	if err != nil {
		return Person{}, ErrNotFound
	}
	return p, nil
}
