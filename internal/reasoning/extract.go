package reasoning

import (
	"strings"
	"time"

	"github.com/tsawler/prose/v3"

	"github.com/vthunder/mneme/internal/memory"
)

// Extractor runs the fact-extraction pass spec.md §4.5 step 8 calls for
// ("run a fact-extraction pass on the completed exchange, update
// Memory"). Grounded on vthunder-bud2/memory-service/pkg/extract/
// prose.go's ProseExtractor — same library, same Extract/Entities shape —
// generalized from the teacher's typed EntityType enum (graph.EntityPerson
// etc, tied to its deleted entity-graph) down to spec.md's flat
// (subject, predicate, object) SemanticFact triple, since Mneme's memory
// substrate has no separate entity-graph module.
type Extractor struct {
	// MinConfidence discards low-confidence entity extractions rather than
	// polluting the fact table with noise.
	MinConfidence float64
}

// NewExtractor returns an Extractor with prose's own default confidence
// floor.
func NewExtractor() *Extractor {
	return &Extractor{MinConfidence: 0.5}
}

// Extract finds named entities in exchange and turns each into a
// ("conversation", "mentions", entity) fact; the speaker is not recorded.
// It does not attempt full relation extraction — prose exposes entity
// recognition only — so every extracted fact uses the fixed "mentions"
// predicate; richer relations would need a different library than
// anything in the pack.
func (e *Extractor) Extract(exchange string) []memory.SemanticFact {
	body := strings.TrimSpace(exchange)
	if body == "" {
		return nil
	}
	doc, err := prose.NewDocument(body)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var facts []memory.SemanticFact
	now := time.Now()
	for _, ent := range doc.Entities() {
		if ent.Confidence < e.MinConfidence {
			continue
		}
		object := strings.TrimSpace(ent.Text)
		if object == "" || seen[object] {
			continue
		}
		seen[object] = true
		facts = append(facts, memory.SemanticFact{
			Subject:    "conversation",
			Predicate:  "mentions",
			Object:     object,
			Confidence: ent.Confidence,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	}
	return facts
}
