// Package memory implements the Memory Substrate of spec.md §4.2: the
// episodic, semantic, social, and self-knowledge stores over a single SQLite
// database, plus a vector index for episode recall. Memory is the only
// component in the system that performs disk I/O (spec.md §5); every other
// component — state persistence, the feedback buffer, consolidation, the
// trigger evaluator, token-budget accounting — reads and writes through the
// operations in this package rather than touching a file or database
// directly.
package memory

import "time"

// Episode is one ordered record of lived experience (spec.md §3). Episodes
// are append-only except for strength updates.
type Episode struct {
	ID         string
	Source     string // platform/source tag
	Author     string // author reference (display name or id)
	AuthorID   string
	Body       string
	MediaRefs  []string
	Timestamp  time.Time
	Modality   string // text, voice, image, ...
	Embedding  []float64
	Strength   float64 // 0..1, decays during consolidation
	ReplyTo    string
	insertSeq  int64 // insertion counter, for the (timestamp, insertion counter) total order
}

// InsertSeq exposes the monotonic insertion counter used to break timestamp
// ties in the total order spec.md §4.2 requires.
func (e Episode) InsertSeq() int64 { return e.insertSeq }

// SemanticFact is a (subject, predicate, object) triple with a confidence
// the conflict-resolution algorithm (§4.2 "Fact conflict") blends rather
// than overwrites.
type SemanticFact struct {
	Subject    string
	Predicate  string
	Object     string
	Confidence float64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Key returns the triple identity used to look up a fact for merge-by-confidence.
func (f SemanticFact) Key() FactKey {
	return FactKey{Subject: f.Subject, Predicate: f.Predicate, Object: f.Object}
}

// FactKey identifies one (subject, predicate, object) row.
type FactKey struct {
	Subject, Predicate, Object string
}

// Person is one node of the SocialGraph.
type Person struct {
	ID          string
	DisplayName string
}

// Alias maps a (platform, platform_id) pair to a Person.
type Alias struct {
	Platform   string
	PlatformID string
	PersonID   string
}

// Interaction is a directed, timestamped social-graph edge.
type Interaction struct {
	PersonID  string
	Context   string
	Positive  bool
	Timestamp time.Time
}

// SelfKnowledge is one row of the self-knowledge store, seeded from
// bootstrap persona text and subsequently authored only by consolidation.
type SelfKnowledge struct {
	ID             string
	Domain         string
	Content        string
	Confidence     float64
	Source         string
	SourceEpisode  string
	Private        bool
	CreatedAt      time.Time
}

// NarrativeChapter is a consolidation-woven summary of a time period.
type NarrativeChapter struct {
	ID            string
	Title         string
	Content       string
	PeriodStart   time.Time
	PeriodEnd     time.Time
	EmotionalTone float64 // -1..1, mean valence over the period
	Themes        []string
	People        []string
	TurningPoints []string
}

// FeedbackRecord is the persisted form of a feedback signal (spec.md §3
// FeedbackSignal), stored so the buffer survives restarts (§4.6 "Offline
// consolidation").
type FeedbackRecord struct {
	ID               string
	SignalType       string
	Content          string
	Confidence       float64
	EmotionalContext float64
	Timestamp        time.Time
	Consolidated     bool
}

// Goal is one row of the `goals` table (spec.md §6). The spec names the
// table but leaves its operations unspecified beyond persistence; Mneme
// exposes simple CRUD, grounded on the original's goal-tracking surface
// (see SPEC_FULL.md).
type Goal struct {
	ID          string
	Description string
	Status      string // open, done, abandoned
	Priority    float64
	CreatedAt   time.Time
	DueAt       *time.Time
}

// BehaviorRule is one learnable rule row (spec.md §6 `behavior_rules`),
// used by BehaviorThresholds (internal/modulation) and the Trigger
// Evaluator for the learnable constants the original keeps out of code.
type BehaviorRule struct {
	Name  string
	Value float64
}

// TokenUsageRecord is one accounted LLM call, for the daily/monthly budget
// (spec.md §6 `token_usage`).
type TokenUsageRecord struct {
	Timestamp    time.Time
	PromptTokens int
	OutputTokens int
	Provider     string
	Model        string
}

// ModulationSample is one observed (state, modulation vector) pair
// (spec.md §6 `modulation_samples`), retained as training data for a future
// evolution phase that replaces the piecewise-linear curves with a learned
// projection (spec.md §9).
type ModulationSample struct {
	Timestamp time.Time
	StateJSON string
	VectorJSON string
}

// RecallResult is the blended result of a single Recall call (spec.md
// §4.2): the caller does not choose which subsystem was queried.
type RecallResult struct {
	Episodes        []Episode
	RelevantFacts   []SemanticFact
	RecentEpisodes  []Episode
	SocialContext   []SocialContext
}

// SocialContext carries the facts and recent interaction history for one
// person referenced in a recall query.
type SocialContext struct {
	Person       Person
	Facts        []SemanticFact
	Interactions []Interaction
}
