// Package consolidate implements Sleep Consolidation (spec.md §4.8): the
// five ordered, independently-restartable sub-phases that run when the
// system is idle and are the only path by which medium/slow-tier
// OrganismState, modulation_curves, and SelfKnowledge are ever written.
// Grounded on the teacher's offline consolidation pass
// (vthunder-bud2/internal/consolidate), rebased from episode-cluster LLM
// summarization over a graph.DB onto the five sub-phases spec.md names,
// operating over internal/memory and internal/feedback instead.
package consolidate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zeebo/blake3"

	"github.com/vthunder/mneme/internal/feedback"
	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/modulation"
	"github.com/vthunder/mneme/internal/state"
)

// Consolidator runs the five sub-phases against a Memory Substrate and
// Feedback Buffer. Each phase method is safe to call independently and
// re-run on partial failure (spec.md §4.8 "each sub-phase is independently
// restartable; partial completion is safe").
type Consolidator struct {
	store  *memory.Store
	buffer *feedback.Buffer

	// DecayFactor multiplies the strength of any episode untouched since
	// the start of the consolidation window (sub-phase 3).
	DecayFactor float64
	// CurveUpdateThreshold is how much accumulated medium-tier drift is
	// needed before modulation_curves themselves are nudged, matching
	// spec.md §3 "slow-tier variables change only through consolidation".
	CurveUpdateThreshold float64
	// SelfKnowledgeThreshold is the confidence a derived claim must cross
	// before sub-phase 5 writes it as a SelfKnowledge row.
	SelfKnowledgeThreshold float64
}

// New returns a Consolidator with the teacher-style conservative defaults:
// slow movement, nothing promoted to self-knowledge without real signal.
func New(store *memory.Store, buffer *feedback.Buffer) *Consolidator {
	return &Consolidator{
		store:                  store,
		buffer:                 buffer,
		DecayFactor:            0.97,
		CurveUpdateThreshold:   0.15,
		SelfKnowledgeThreshold: 0.75,
	}
}

// Report summarizes one consolidation run for logging and CLI `sleep`
// output.
type Report struct {
	PatternsConsolidated int
	StateUpdated         bool
	CurvesUpdated        bool
	EpisodesDecayed      int
	Chapter              *memory.NarrativeChapter
	SelfKnowledgeWritten int
}

// Run executes all five sub-phases in order over the window
// [periodStart, now). A zero periodStart means "since the last chapter",
// falling back to 24h if no prior chapter exists.
func (c *Consolidator) Run(periodStart, now time.Time) (Report, error) {
	var report Report

	if periodStart.IsZero() {
		periodStart = now.Add(-24 * time.Hour)
		if chapters, err := c.store.RecentNarrativeChapters(1); err == nil && len(chapters) > 0 {
			periodStart = chapters[0].PeriodEnd
		}
	}

	patterns, updates, err := c.Phase1DrainFeedback()
	if err != nil {
		return report, fmt.Errorf("consolidate phase 1: %w", err)
	}
	report.PatternsConsolidated = len(patterns)

	stateUpdated, curvesUpdated, err := c.Phase2UpdateState(updates)
	if err != nil {
		return report, fmt.Errorf("consolidate phase 2: %w", err)
	}
	report.StateUpdated = stateUpdated
	report.CurvesUpdated = curvesUpdated

	decayed, err := c.Phase3DecayEpisodes(periodStart)
	if err != nil {
		return report, fmt.Errorf("consolidate phase 3: %w", err)
	}
	report.EpisodesDecayed = decayed

	chapter, err := c.Phase4WeaveChapter(periodStart, now, patterns)
	if err != nil {
		return report, fmt.Errorf("consolidate phase 4: %w", err)
	}
	report.Chapter = chapter

	written, err := c.Phase5WriteSelfKnowledge(patterns, chapter)
	if err != nil {
		return report, fmt.Errorf("consolidate phase 5: %w", err)
	}
	report.SelfKnowledgeWritten = written

	logging.Info("consolidate", "patterns=%d state_updated=%v curves_updated=%v decayed=%d self_knowledge=%d",
		report.PatternsConsolidated, report.StateUpdated, report.CurvesUpdated, report.EpisodesDecayed, report.SelfKnowledgeWritten)
	return report, nil
}

// Phase1DrainFeedback drains every unconsolidated FeedbackSignal through the
// buffer's own uncertainty-discount/temporal-smoothing filters and returns
// the resulting patterns plus the state deltas they imply.
func (c *Consolidator) Phase1DrainFeedback() ([]feedback.ConsolidatedPattern, feedback.StateUpdates, error) {
	patterns, err := c.buffer.Consolidate()
	if err != nil {
		return nil, feedback.StateUpdates{}, err
	}
	return patterns, feedback.ComputeStateUpdates(patterns), nil
}

// Phase2UpdateState applies the computed deltas to the medium tier and,
// when accumulated drift crosses CurveUpdateThreshold, nudges
// modulation_curves too (spec.md §3 "slow-tier variables change only
// through consolidation").
func (c *Consolidator) Phase2UpdateState(updates feedback.StateUpdates) (stateUpdated, curvesUpdated bool, err error) {
	if updates.IsEmpty() {
		return false, false, nil
	}

	st, err := c.store.LoadOrganismState()
	if err != nil {
		return false, false, fmt.Errorf("load state: %w", err)
	}

	st.Medium.Attachment.Anxiety += updates.AttachmentAnxietyDelta
	st.Medium.Openness += updates.OpennessDelta
	st.Slow.NarrativeBias += updates.NarrativeBiasDelta
	for _, r := range updates.ValueReinforcements {
		entry := st.Slow.Values.Values[r.Value]
		entry.Weight += r.Delta
		if entry.Weight > 1.0 {
			entry.Weight = 1.0
		}
		st.Slow.Values.Values[r.Value] = entry
	}
	st.Normalize()
	st.LastUpdated = time.Now()

	if err := c.store.SaveOrganismState(st); err != nil {
		return false, false, fmt.Errorf("save state: %w", err)
	}
	stateUpdated = true

	drift := absf(updates.AttachmentAnxietyDelta) + absf(updates.OpennessDelta) + absf(updates.CuriosityDelta)
	if drift >= c.CurveUpdateThreshold {
		if err := c.nudgeCurves(updates); err != nil {
			return stateUpdated, false, fmt.Errorf("nudge curves: %w", err)
		}
		curvesUpdated = true
	}
	return stateUpdated, curvesUpdated, nil
}

// nudgeCurves is a conservative, bounded adjustment of the learned
// modulation curves: accumulated curiosity pressure steepens the
// energy→max_tokens_factor curve slightly, and accumulated openness
// softens the stress→temperature curve. This is deliberately small; the
// curves are meant to drift over weeks, not jump per consolidation.
func (c *Consolidator) nudgeCurves(updates feedback.StateUpdates) error {
	curves := modulation.DefaultModulationCurves()
	if raw, err := c.store.LoadLearnedCurves(); err == nil && raw != "" {
		var params struct{ Raw map[string][2]float64 }
		if jerr := json.Unmarshal([]byte(raw), &params); jerr == nil {
			curves = modulation.CurvesFromRaw(state.CurveParams{Raw: params.Raw})
		}
	}
	curves.EnergyToMaxTokens[1] += 0.01 * updates.CuriosityDelta
	curves.StressToTemperature[1] -= 0.01 * updates.OpennessDelta

	encoded, err := json.Marshal(curves.ToRawCurves())
	if err != nil {
		return err
	}
	return c.store.SaveLearnedCurves(string(encoded))
}

// Phase3DecayEpisodes decays the strength of every episode not touched
// since periodStart, skipping anything reinforced since then (spec.md
// §4.8 sub-phase 3: "decay episode strength ... while reinforcing episodes
// referenced in recent recall").
func (c *Consolidator) Phase3DecayEpisodes(periodStart time.Time) (int, error) {
	recent, err := c.store.RecentEpisodes(periodStart, 500, true)
	if err != nil {
		return 0, fmt.Errorf("load recently touched episodes: %w", err)
	}
	skip := make([]string, 0, len(recent))
	for _, ep := range recent {
		skip = append(skip, ep.ID)
	}
	return c.store.DecayEpisodeStrengths(periodStart, c.DecayFactor, skip)
}

// Phase4WeaveChapter clusters the episodes touched during the window into
// a single NarrativeChapter: tone is the mean valence across the period's
// feedback patterns, themes are the most frequent candidate subjects
// across episode bodies (deduplicated by content hash so near-identical
// episodes don't inflate a theme's weight), and turning_points are any
// pattern whose magnitude exceeded a threshold.
func (c *Consolidator) Phase4WeaveChapter(periodStart, periodEnd time.Time, patterns []feedback.ConsolidatedPattern) (*memory.NarrativeChapter, error) {
	episodes, err := c.store.RecentEpisodes(periodStart, 1000, true)
	if err != nil {
		return nil, fmt.Errorf("load period episodes: %w", err)
	}
	if len(episodes) == 0 && len(patterns) == 0 {
		return nil, nil
	}

	seenHashes := make(map[[32]byte]bool)
	themeCounts := make(map[string]int)
	var people []string
	seenPeople := make(map[string]bool)
	for _, ep := range episodes {
		hash := blake3.Sum256([]byte(strings.ToLower(strings.TrimSpace(ep.Body))))
		if seenHashes[hash] {
			continue // overlapping/duplicate episode content, dedup before theme weighting
		}
		seenHashes[hash] = true
		for _, word := range extractThemeWords(ep.Body) {
			themeCounts[word]++
		}
		if ep.Author != "" && !seenPeople[ep.Author] {
			seenPeople[ep.Author] = true
			people = append(people, ep.Author)
		}
	}

	themes := topN(themeCounts, 5)

	var valenceSum float64
	var turningPoints []string
	for _, p := range patterns {
		valenceSum += p.AvgValence * float64(p.Count)
		if absf(p.AvgValence)*p.AvgConfidence >= turningPointThreshold {
			turningPoints = append(turningPoints, p.RepresentativeContent)
		}
	}
	var tone float64
	totalSignals := 0
	for _, p := range patterns {
		totalSignals += p.Count
	}
	if totalSignals > 0 {
		tone = valenceSum / float64(totalSignals)
	}

	chapter := memory.NarrativeChapter{
		Title:         chapterTitle(periodStart, periodEnd, themes),
		Content:       chapterContent(periodStart, periodEnd, themes, len(episodes), tone),
		PeriodStart:   periodStart,
		PeriodEnd:     periodEnd,
		EmotionalTone: clamp(tone, -1, 1),
		Themes:        themes,
		People:        people,
		TurningPoints: turningPoints,
	}
	id, err := c.store.SaveNarrativeChapter(chapter)
	if err != nil {
		return nil, fmt.Errorf("save chapter: %w", err)
	}
	chapter.ID = id
	return &chapter, nil
}

// turningPointThreshold is the |valence|*confidence magnitude a
// consolidated pattern must cross to be recorded as a turning point
// (spec.md §4.8 sub-phase 4).
const turningPointThreshold = 0.5

// Phase5WriteSelfKnowledge promotes value judgments that survived
// consolidation into durable SelfKnowledge rows once their derived
// confidence crosses SelfKnowledgeThreshold (spec.md §3 "subsequently
// authored only by consolidation").
func (c *Consolidator) Phase5WriteSelfKnowledge(patterns []feedback.ConsolidatedPattern, chapter *memory.NarrativeChapter) (int, error) {
	written := 0
	for _, p := range patterns {
		if p.SignalType != feedback.ValueJudgment || p.Value == "" {
			continue
		}
		if p.AvgConfidence < c.SelfKnowledgeThreshold {
			continue
		}
		sk := memory.SelfKnowledge{
			Domain:     "values",
			Content:    fmt.Sprintf("acts on %s: %s", p.Value, p.RepresentativeContent),
			Confidence: p.AvgConfidence,
			Source:     "consolidation",
		}
		if _, err := c.store.UpsertSelfKnowledge(sk); err != nil {
			return written, fmt.Errorf("write self knowledge: %w", err)
		}
		written++
	}
	if chapter != nil && len(chapter.TurningPoints) > 0 {
		sk := memory.SelfKnowledge{
			Domain:     "narrative",
			Content:    fmt.Sprintf("a period marked by: %s", strings.Join(chapter.TurningPoints, "; ")),
			Confidence: 0.8,
			Source:     "consolidation",
		}
		if _, err := c.store.UpsertSelfKnowledge(sk); err != nil {
			return written, fmt.Errorf("write narrative self knowledge: %w", err)
		}
		written++
	}
	return written, nil
}

func extractThemeWords(body string) []string {
	words := strings.Fields(body)
	var out []string
	for _, w := range words {
		w = strings.Trim(w, ".,!?;:\"'()")
		if len(w) < 4 {
			continue
		}
		out = append(out, strings.ToLower(w))
	}
	return out
}

func topN(counts map[string]int, n int) []string {
	type pair struct {
		word  string
		count int
	}
	pairs := make([]pair, 0, len(counts))
	for w, c := range counts {
		pairs = append(pairs, pair{w, c})
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].count != pairs[j].count {
			return pairs[i].count > pairs[j].count
		}
		return pairs[i].word < pairs[j].word
	})
	if len(pairs) > n {
		pairs = pairs[:n]
	}
	out := make([]string, len(pairs))
	for i, p := range pairs {
		out[i] = p.word
	}
	return out
}

func chapterTitle(start, end time.Time, themes []string) string {
	if len(themes) == 0 {
		return fmt.Sprintf("%s to %s", start.Format("Jan 2"), end.Format("Jan 2"))
	}
	return fmt.Sprintf("%s to %s: %s", start.Format("Jan 2"), end.Format("Jan 2"), strings.Join(themes[:minInt(2, len(themes))], ", "))
}

func chapterContent(start, end time.Time, themes []string, episodeCount int, tone float64) string {
	var mood string
	switch {
	case tone > 0.3:
		mood = "a generally positive stretch"
	case tone < -0.3:
		mood = "a difficult stretch"
	default:
		mood = "an even-keeled stretch"
	}
	themeStr := "no clear recurring theme"
	if len(themes) > 0 {
		themeStr = "recurring themes around " + strings.Join(themes, ", ")
	}
	return fmt.Sprintf("%s (%s–%s), %d episodes, %s.", mood, start.Format("Jan 2"), end.Format("Jan 2"), episodeCount, themeStr)
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
