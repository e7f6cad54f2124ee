package memory

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/vthunder/mneme/internal/state"
)

// fakeEmbedder produces deterministic 384-d embeddings from a seed derived
// from the input text, letting tests exercise the vector path without an
// LLM provider.
type fakeEmbedder struct{}

func (fakeEmbedder) Embed(text string) ([]float64, error) {
	vec := make([]float64, episodeVecDim)
	var seed float64
	for _, r := range text {
		seed += float64(r)
	}
	for i := range vec {
		vec[i] = seed + float64(i)
	}
	return vec, nil
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mneme.db")
	s, err := Open(dbPath, fakeEmbedder{}, 0.05)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestMemorizeAndGetEpisodeRoundTrip(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Memorize(Episode{
		Source: "discord",
		Author: "sam",
		Body:   "had a good day at the lake",
	})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}

	got, err := s.GetEpisode(id)
	if err != nil {
		t.Fatalf("get episode: %v", err)
	}
	if got.Body != "had a good day at the lake" {
		t.Errorf("body = %q", got.Body)
	}
	if got.Strength != 0.5 {
		t.Errorf("default strength = %v, want 0.5", got.Strength)
	}
	if len(got.Embedding) != episodeVecDim {
		t.Errorf("embedding dim = %d, want %d", len(got.Embedding), episodeVecDim)
	}
}

func TestStoreFactIdenticalTripleBlends(t *testing.T) {
	s := openTestStore(t)

	fact := SemanticFact{Subject: "Sam", Predicate: "likes", Object: "hiking", Confidence: 0.6}
	if err := s.StoreFact(fact); err != nil {
		t.Fatalf("store fact: %v", err)
	}
	if err := s.StoreFact(SemanticFact{Subject: "Sam", Predicate: "likes", Object: "hiking", Confidence: 0.7}); err != nil {
		t.Fatalf("store fact again: %v", err)
	}

	facts, err := s.GetFactsAbout("Sam")
	if err != nil {
		t.Fatalf("get facts: %v", err)
	}
	if len(facts) != 1 {
		t.Fatalf("len(facts) = %d, want 1", len(facts))
	}
	if facts[0].Confidence <= 0.6 {
		t.Errorf("reinforcing ingestion should raise confidence above initial 0.6, got %v", facts[0].Confidence)
	}
}

func TestStoreFactContradictionDecaysBothSides(t *testing.T) {
	s := openTestStore(t)

	if err := s.StoreFact(SemanticFact{Subject: "Sam", Predicate: "livesIn", Object: "Denver", Confidence: 0.8}); err != nil {
		t.Fatalf("store first fact: %v", err)
	}
	if err := s.StoreFact(SemanticFact{Subject: "Sam", Predicate: "livesIn", Object: "Austin", Confidence: 0.7}); err != nil {
		t.Fatalf("store contradicting fact: %v", err)
	}

	facts, err := s.GetFactsAbout("Sam")
	if err != nil {
		t.Fatalf("get facts: %v", err)
	}
	if len(facts) != 2 {
		t.Fatalf("len(facts) = %d, want 2 (both contradicting facts retained)", len(facts))
	}
	for _, f := range facts {
		switch f.Object {
		case "Denver":
			if f.Confidence >= 0.8 {
				t.Errorf("Denver confidence %v did not decay below pre-merge 0.8", f.Confidence)
			}
		case "Austin":
			if f.Confidence >= 0.7 {
				t.Errorf("Austin confidence %v did not decay below pre-merge 0.7", f.Confidence)
			}
		}
	}
}

func TestEpisodeForgettingExcludesLowStrength(t *testing.T) {
	s := openTestStore(t)

	id, err := s.Memorize(Episode{Source: "discord", Body: "forgettable aside"})
	if err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if err := s.db.QueryRow(`SELECT strength FROM episodes WHERE id = ?`, id).Err(); err != nil {
		t.Fatalf("sanity query: %v", err)
	}
	if _, err := s.db.Exec(`UPDATE episodes SET strength = 0.01 WHERE id = ?`, id); err != nil {
		t.Fatalf("force-decay episode: %v", err)
	}

	since := time.Now().Add(-time.Hour)
	visible, err := s.RecentEpisodes(since, 10, false)
	if err != nil {
		t.Fatalf("recent episodes: %v", err)
	}
	for _, e := range visible {
		if e.ID == id {
			t.Errorf("forgotten episode %s should be excluded when includeForgotten=false", id)
		}
	}

	all, err := s.RecentEpisodes(since, 10, true)
	if err != nil {
		t.Fatalf("recent episodes (include forgotten): %v", err)
	}
	found := false
	for _, e := range all {
		if e.ID == id {
			found = true
		}
	}
	if !found {
		t.Errorf("forgotten episode %s should still be retrievable with includeForgotten=true", id)
	}
}

func TestRecallBlendsEpisodesFactsAndSocialContext(t *testing.T) {
	s := openTestStore(t)

	if _, err := s.Memorize(Episode{Source: "discord", Body: "Jordan and I talked about climbing today"}); err != nil {
		t.Fatalf("memorize: %v", err)
	}
	if err := s.StoreFact(SemanticFact{Subject: "Jordan", Predicate: "likes", Object: "climbing", Confidence: 0.9}); err != nil {
		t.Fatalf("store fact: %v", err)
	}
	personID, err := s.UpsertPerson(Person{DisplayName: "Jordan"})
	if err != nil {
		t.Fatalf("upsert person: %v", err)
	}
	if err := s.RecordInteraction(Interaction{PersonID: personID, Context: "chat", Positive: true, Timestamp: time.Now()}); err != nil {
		t.Fatalf("record interaction: %v", err)
	}

	result, err := s.Recall("What does Jordan think about climbing", 5, 0.2)
	if err != nil {
		t.Fatalf("recall: %v", err)
	}
	if len(result.Episodes) == 0 {
		t.Errorf("expected at least one recalled episode")
	}
	if len(result.RelevantFacts) == 0 {
		t.Errorf("expected at least one relevant fact about Jordan")
	}
	if len(result.SocialContext) == 0 {
		t.Errorf("expected social context for Jordan")
	} else if result.SocialContext[0].Person.DisplayName != "Jordan" {
		t.Errorf("social context person = %q, want Jordan", result.SocialContext[0].Person.DisplayName)
	}
}

func TestOrganismStatePersistsAcrossLoad(t *testing.T) {
	s := openTestStore(t)

	fresh, err := s.LoadOrganismState()
	if err != nil {
		t.Fatalf("load cold-start state: %v", err)
	}
	if fresh == nil {
		t.Fatal("cold-start load returned nil state")
	}

	fresh.Fast.Energy = 0.77
	if err := s.SaveOrganismState(fresh); err != nil {
		t.Fatalf("save state: %v", err)
	}

	reloaded, err := s.LoadOrganismState()
	if err != nil {
		t.Fatalf("reload state: %v", err)
	}
	if reloaded.Fast.Energy != 0.77 {
		t.Errorf("reloaded energy = %v, want 0.77", reloaded.Fast.Energy)
	}
}

func TestOrganismStateColdStartReturnsDefault(t *testing.T) {
	s := openTestStore(t)
	got, err := s.LoadOrganismState()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	want := state.New()
	if got.Fast.Energy != want.Fast.Energy {
		t.Errorf("cold-start energy = %v, want default %v", got.Fast.Energy, want.Fast.Energy)
	}
}

func TestFeedbackSignalDrainIsIdempotent(t *testing.T) {
	s := openTestStore(t)

	id, err := s.SaveFeedbackSignal(FeedbackRecord{SignalType: "reaction", Content: "+1", Confidence: 0.5})
	if err != nil {
		t.Fatalf("save feedback: %v", err)
	}

	pending, err := s.UnconsolidatedFeedback()
	if err != nil {
		t.Fatalf("unconsolidated feedback: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("len(pending) = %d, want 1", len(pending))
	}

	if err := s.MarkFeedbackConsolidated([]string{id}); err != nil {
		t.Fatalf("mark consolidated: %v", err)
	}

	pending, err = s.UnconsolidatedFeedback()
	if err != nil {
		t.Fatalf("unconsolidated feedback after drain: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("len(pending) after drain = %d, want 0", len(pending))
	}
}
