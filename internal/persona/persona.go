// Package persona builds the Persona layer of the Context Assembler
// (spec.md §4.4, layer 1: "never dropped regardless of budget"). Grounded
// on original_source/crates/mneme_core/src/persona.rs's Psyche/SeedPersona:
// a fixed species identity plus a dynamic self-model, where the self-model
// is seeded once from persona files on first run and afterwards emerges
// entirely from memory.SelfKnowledge rows written by consolidation —
// the seed files are never read again after bootstrap.
package persona

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/state"
)

// speciesIdentity is the immutable anchor every rendered persona carries,
// independent of anything in self_knowledge: a name and a baseline tone,
// not a character sheet to recite.
const speciesIdentity = "You are Mneme. You have your own memories, moods " +
	"and personality, and they shift with experience. You don't need to " +
	"explain what you are to anyone — just be yourself. Speak plainly, " +
	"like someone with their own thoughts, not like someone reading from " +
	"a character sheet."

// seedFile maps a bootstrap persona file to the self_knowledge domain it
// seeds, named after the original's own file set (hippocampus.md etc).
var seedFiles = []struct {
	file   string
	domain string
}{
	{"hippocampus.md", "identity"},
	{"limbic.md", "emotion_pattern"},
	{"cortex.md", "cognition"},
	{"broca.md", "expression"},
	{"occipital.md", "perception"},
}

// Bootstrap seeds memory.SelfKnowledge from dir's persona files the first
// time any domain is empty. A missing file is skipped, not an error —
// the original's SeedPersona::load degrades the same way, so a bare
// install with no persona directory still runs with the species identity
// alone.
func Bootstrap(store *memory.Store, dir string) error {
	if dir == "" {
		return nil
	}
	for _, sf := range seedFiles {
		existing, err := store.SelfKnowledgeByDomain(sf.domain)
		if err != nil {
			return fmt.Errorf("persona: check existing %s: %w", sf.domain, err)
		}
		if len(existing) > 0 {
			continue
		}
		content, err := os.ReadFile(filepath.Join(dir, sf.file))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("persona: read %s: %w", sf.file, err)
		}
		text := strings.TrimSpace(string(content))
		if text == "" {
			continue
		}
		if _, err := store.UpsertSelfKnowledge(memory.SelfKnowledge{
			Domain:     sf.domain,
			Content:    text,
			Confidence: 1.0,
			Source:     "seed",
		}); err != nil {
			return fmt.Errorf("persona: seed %s: %w", sf.domain, err)
		}
		logging.Info("persona", "seeded self_knowledge domain=%s from %s", sf.domain, sf.file)
	}
	return nil
}

// Provider renders the Persona layer by combining the fixed species
// identity with every non-private self_knowledge row and the state's
// current projected persona. It implements reasoning.PersonaProvider.
type Provider struct {
	Store *memory.Store
}

// NewProvider returns a Provider over store.
func NewProvider(store *memory.Store) *Provider {
	return &Provider{Store: store}
}

// Render formats the full persona context for system-prompt injection,
// mirroring Psyche::format_context's two-section layout (species identity,
// then self-model) with a third section for the live somatic projection —
// the original has no equivalent third section since its Psyche predates
// this package's modulation layer.
func (p *Provider) Render(proj state.ProjectedPersona) string {
	var b strings.Builder
	b.WriteString("== species identity ==\n")
	b.WriteString(speciesIdentity)

	if p.Store != nil {
		rows, err := p.Store.AllSelfKnowledge(false)
		if err != nil {
			logging.Warn("persona", "load self knowledge: %v", err)
		} else if len(rows) > 0 {
			b.WriteString("\n\n== self-model ==\n")
			b.WriteString(formatSelfModel(rows))
		}
	}

	b.WriteString("\n\n== current state ==\n")
	b.WriteString(describeProjection(proj))
	return b.String()
}

func formatSelfModel(rows []memory.SelfKnowledge) string {
	byDomain := make(map[string][]memory.SelfKnowledge)
	var order []string
	for _, r := range rows {
		if _, ok := byDomain[r.Domain]; !ok {
			order = append(order, r.Domain)
		}
		byDomain[r.Domain] = append(byDomain[r.Domain], r)
	}
	var b strings.Builder
	for i, domain := range order {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s:\n", domain)
		for _, r := range byDomain[domain] {
			fmt.Fprintf(&b, "- %s\n", r.Content)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func describeProjection(proj state.ProjectedPersona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "mood: %s (energy %.0f%%, stress %.0f%%)", proj.Affect.Describe(), proj.EnergyLevel*100, proj.StressLevel*100)
	if len(proj.DominantValues) > 0 {
		names := make([]string, len(proj.DominantValues))
		for i, v := range proj.DominantValues {
			names[i] = v.Name
		}
		fmt.Fprintf(&b, "\nvalues: %s", strings.Join(names, ", "))
	}
	if len(proj.CuriosityTopics) > 0 {
		topics := make([]string, len(proj.CuriosityTopics))
		for i, t := range proj.CuriosityTopics {
			topics[i] = t.Topic
		}
		fmt.Fprintf(&b, "\ncurious about: %s", strings.Join(topics, ", "))
	}
	return b.String()
}
