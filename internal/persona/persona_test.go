package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/state"
)

type zeroEmbedder struct{}

func (zeroEmbedder) Embed(string) ([]float64, error) { return make([]float64, 4), nil }

func openTestStore(t *testing.T) *memory.Store {
	t.Helper()
	s, err := memory.Open(filepath.Join(t.TempDir(), "mneme.db"), zeroEmbedder{}, 0.05)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestBootstrapSeedsFromPersonaFiles(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hippocampus.md"), []byte("remembers conversations vividly"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "limbic.md"), []byte("warms up slowly, stays loyal"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := Bootstrap(store, dir); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}

	identity, err := store.SelfKnowledgeByDomain("identity")
	if err != nil {
		t.Fatalf("query identity: %v", err)
	}
	if len(identity) != 1 || identity[0].Source != "seed" {
		t.Fatalf("expected one seeded identity row, got %+v", identity)
	}

	emotion, err := store.SelfKnowledgeByDomain("emotion_pattern")
	if err != nil {
		t.Fatalf("query emotion_pattern: %v", err)
	}
	if len(emotion) != 1 {
		t.Fatalf("expected one seeded emotion_pattern row, got %+v", emotion)
	}

	cognition, err := store.SelfKnowledgeByDomain("cognition")
	if err != nil {
		t.Fatalf("query cognition: %v", err)
	}
	if len(cognition) != 0 {
		t.Error("expected no cognition row when cortex.md is absent")
	}
}

func TestBootstrapIsIdempotent(t *testing.T) {
	store := openTestStore(t)
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "hippocampus.md"), []byte("first seed"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Bootstrap(store, dir); err != nil {
		t.Fatalf("first bootstrap: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "hippocampus.md"), []byte("a different seed entirely"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := Bootstrap(store, dir); err != nil {
		t.Fatalf("second bootstrap: %v", err)
	}

	rows, err := store.SelfKnowledgeByDomain("identity")
	if err != nil {
		t.Fatalf("query identity: %v", err)
	}
	if len(rows) != 1 || rows[0].Content != "first seed" {
		t.Fatalf("expected bootstrap to leave the existing row untouched, got %+v", rows)
	}
}

func TestBootstrapWithMissingDirectory(t *testing.T) {
	store := openTestStore(t)
	if err := Bootstrap(store, filepath.Join(t.TempDir(), "does-not-exist")); err != nil {
		t.Fatalf("expected missing persona files to degrade gracefully, got: %v", err)
	}
}

func TestRenderIncludesSpeciesIdentityAndState(t *testing.T) {
	store := openTestStore(t)
	if _, err := store.UpsertSelfKnowledge(memory.SelfKnowledge{
		Domain:     "identity",
		Content:    "loves long walks through old memories",
		Confidence: 0.9,
		Source:     "consolidation",
	}); err != nil {
		t.Fatalf("upsert self knowledge: %v", err)
	}

	p := NewProvider(store)
	s := state.New()
	s.Fast.Affect.Valence = 0.6
	s.Fast.Affect.Arousal = 0.6
	proj := s.Project()

	out := p.Render(proj)
	for _, want := range []string{"Mneme", "self-model", "loves long walks", "current state", "excited"} {
		if !strings.Contains(out, want) {
			t.Errorf("rendered persona missing %q:\n%s", want, out)
		}
	}
}
