// Package triggers implements the Trigger Evaluator (spec.md §4.7): a
// periodic scan that produces candidate proactive events, scores them,
// filters by a presence schedule, per-kind cooldowns and a token budget
// gate, and injects the single highest-scoring admissible candidate into
// the reasoning loop. Grounded on original_source's mneme_expression
// crate, which splits the same concern into several small evaluators
// (ScheduledTriggerEvaluator, RuminationEvaluator, MetacognitionEvaluator)
// behind a shared TriggerEvaluator trait, filtered by a separate
// PresenceScheduler; this package keeps that shape as one Evaluator with
// one generate-per-kind method each, rather than a trait object per kind,
// since Go has no async trait object registry to mirror cleanly.
package triggers

import (
	"strings"
	"sync"
	"time"

	"github.com/vthunder/mneme/internal/budget"
	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/memory"
	"github.com/vthunder/mneme/internal/reasoning"
	"github.com/vthunder/mneme/internal/state"
)

// CandidateKind is one of the four candidate kinds spec.md §4.7 names.
type CandidateKind string

const (
	KindScheduledCheckIn CandidateKind = "scheduled_check_in"
	KindContentMatch     CandidateKind = "content_match"
	KindMemoryResurface  CandidateKind = "memory_resurface"
	KindStateDriven      CandidateKind = "state_driven"
)

// Candidate is one proactive-event proposal, scored and not yet admitted.
type Candidate struct {
	Kind    CandidateKind
	Score   float64
	Context string // human-readable reason, becomes the proactive event's content
	// CooldownKey scopes the per-kind cooldown timer; most kinds use one key
	// per Kind, but state-driven candidates use one key per sub-kind
	// (boredom/social_need/curiosity) so one running hot doesn't suppress
	// the others, matching RuminationEvaluator's per-kind cooldown map.
	CooldownKey string
}

// ScheduleEntry is one fixed daily check-in time, grounded on
// mneme_expression::scheduled::ScheduleEntry.
type ScheduleEntry struct {
	Name             string
	Hour, Minute     int
	ToleranceMinutes int
}

func (e ScheduleEntry) matchesNow(now time.Time) bool {
	target := now.Truncate(24 * time.Hour).Add(time.Duration(e.Hour)*time.Hour + time.Duration(e.Minute)*time.Minute)
	diff := now.Sub(target)
	if diff < 0 {
		diff = -diff
	}
	tol := time.Duration(e.ToleranceMinutes) * time.Minute
	if tol <= 0 {
		tol = 5 * time.Minute
	}
	return diff <= tol
}

// DefaultSchedules are morning/evening check-ins, matching
// ScheduledTriggerEvaluator::new()'s defaults.
func DefaultSchedules() []ScheduleEntry {
	return []ScheduleEntry{
		{Name: "morning_greeting", Hour: 8, Minute: 0, ToleranceMinutes: 5},
		{Name: "evening_summary", Hour: 21, Minute: 0, ToleranceMinutes: 5},
	}
}

// RuminationThresholds gates the state-driven candidate kind, grounded on
// mneme_expression::rumination::RuminationConfig.
type RuminationThresholds struct {
	BoredomThreshold    float64
	SocialNeedThreshold float64
	CuriosityThreshold  float64
}

// DefaultRuminationThresholds mirrors RuminationConfig::default().
func DefaultRuminationThresholds() RuminationThresholds {
	return RuminationThresholds{
		BoredomThreshold:    0.6,
		SocialNeedThreshold: 0.75,
		CuriosityThreshold:  0.8,
	}
}

// Evaluator holds everything the periodic scan needs to generate, score and
// filter candidates, and the per-kind cooldown state that survives between
// scans.
type Evaluator struct {
	Store    *memory.Store
	State    *state.OrganismState
	Ledger   *budget.Ledger // nil disables the token budget gate
	Schedule PresenceSchedule
	Schedules []ScheduleEntry
	Rumination RuminationThresholds

	// ResurfaceStaleAfter is how long an episode must sit untouched before
	// it is eligible as a memory re-surface candidate.
	ResurfaceStaleAfter time.Duration
	// ResurfaceMinStrength is the minimum episode.Strength for re-surface
	// eligibility — weak episodes are better left forgotten than revived.
	ResurfaceMinStrength float64

	// EnergyFloor suppresses every candidate when Fast.Energy drops below
	// it, matching MetacognitionEvaluator's "too tired to reflect" gate
	// generalized from metacognition specifically to proactive output as a
	// whole.
	EnergyFloor float64

	mu         sync.Mutex
	lastFired  map[string]time.Time
}

// NewEvaluator returns an Evaluator with the original's default schedules
// and rumination thresholds.
func NewEvaluator(store *memory.Store, s *state.OrganismState, ledger *budget.Ledger, schedule PresenceSchedule) *Evaluator {
	return &Evaluator{
		Store:                store,
		State:                s,
		Ledger:               ledger,
		Schedule:             schedule,
		Schedules:            DefaultSchedules(),
		Rumination:           DefaultRuminationThresholds(),
		ResurfaceStaleAfter:  14 * 24 * time.Hour,
		ResurfaceMinStrength: 0.6,
		EnergyFloor:          0.25,
		lastFired:            make(map[string]time.Time),
	}
}

// cooldowns, keyed by CandidateKind/sub-kind prefix.
var defaultCooldowns = map[string]time.Duration{
	string(KindScheduledCheckIn):     55 * time.Minute,
	string(KindContentMatch):         15 * time.Minute,
	string(KindMemoryResurface):      time.Hour,
	"state_driven:mind_wandering":    10 * time.Minute,
	"state_driven:social_longing":    10 * time.Minute,
	"state_driven:curiosity_spike":   10 * time.Minute,
}

func (e *Evaluator) cooldownFor(key string) time.Duration {
	if d, ok := defaultCooldowns[key]; ok {
		return d
	}
	if kind, _, ok := strings.Cut(key, ":"); ok {
		if d, ok := defaultCooldowns[kind]; ok {
			return d
		}
	}
	return 10 * time.Minute
}

func (e *Evaluator) onCooldown(key string, now time.Time) bool {
	last, ok := e.lastFired[key]
	if !ok {
		return false
	}
	return now.Sub(last) < e.cooldownFor(key)
}

// Evaluate runs one scan: generates every candidate kind, filters by
// presence schedule, energy floor, per-kind cooldown and the token budget
// gate, and returns the highest-scoring admissible candidate as a
// reasoning.Event, or ok=false if nothing is admissible right now.
// perceptionItems is whatever unprocessed content the senses layer has
// queued since the last scan; it feeds the content-match candidate only.
func (e *Evaluator) Evaluate(now time.Time, perceptionItems []string) (reasoning.Event, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.Schedule.IsAppropriateTime(now) {
		return reasoning.Event{}, false
	}
	if e.State != nil && e.State.Fast.Energy < e.EnergyFloor {
		return reasoning.Event{}, false
	}
	if e.Ledger != nil {
		if status, err := e.Ledger.Check(); err != nil {
			logging.Warn("triggers", "budget check failed: %v", err)
		} else if status.Exhausted {
			return reasoning.Event{}, false
		}
	}

	var candidates []Candidate
	candidates = append(candidates, e.scheduledCandidates(now)...)
	candidates = append(candidates, e.stateDrivenCandidates()...)
	candidates = append(candidates, e.contentMatchCandidates(perceptionItems)...)
	if c, ok := e.memoryResurfaceCandidate(now); ok {
		candidates = append(candidates, c)
	}

	var best *Candidate
	for i := range candidates {
		c := &candidates[i]
		if e.onCooldown(c.CooldownKey, now) {
			continue
		}
		if best == nil || c.Score > best.Score {
			best = c
		}
	}
	if best == nil {
		return reasoning.Event{}, false
	}
	e.lastFired[best.CooldownKey] = now

	return reasoning.Event{
		Kind:    reasoning.EventProactive,
		Speaker: "trigger:" + string(best.Kind),
		Content: best.Context,
		Casual:  true,
	}, true
}

func (e *Evaluator) scheduledCandidates(now time.Time) []Candidate {
	var out []Candidate
	for _, entry := range e.Schedules {
		if !entry.matchesNow(now) {
			continue
		}
		out = append(out, Candidate{
			Kind:        KindScheduledCheckIn,
			Score:       0.5,
			Context:     "scheduled check-in: " + entry.Name,
			CooldownKey: string(KindScheduledCheckIn) + ":" + entry.Name,
		})
	}
	return out
}

// stateDrivenCandidates fires when boredom, social need or curiosity
// exceed their thresholds, mirroring RuminationEvaluator's three checks —
// generalized from a fixed Chinese-language template string to a short
// English context summary, since persona rendering (internal/persona)
// already owns voice.
func (e *Evaluator) stateDrivenCandidates() []Candidate {
	if e.State == nil {
		return nil
	}
	fast := e.State.Fast
	var out []Candidate
	if fast.Boredom > e.Rumination.BoredomThreshold {
		out = append(out, Candidate{
			Kind:        KindStateDriven,
			Score:       fast.Boredom,
			Context:     "mind-wandering: boredom has built up, recall something or start a new topic",
			CooldownKey: "state_driven:mind_wandering",
		})
	}
	if fast.SocialNeed > e.Rumination.SocialNeedThreshold {
		out = append(out, Candidate{
			Kind:        KindStateDriven,
			Score:       fast.SocialNeed,
			Context:     "social longing: reach out with something light",
			CooldownKey: "state_driven:social_longing",
		})
	}
	if fast.Curiosity > e.Rumination.CuriosityThreshold {
		out = append(out, Candidate{
			Kind:        KindStateDriven,
			Score:       fast.Curiosity,
			Context:     "curiosity spike: ask about something you're curious about",
			CooldownKey: "state_driven:curiosity_spike",
		})
	}
	return out
}

// contentMatchCandidates fires when a queued perception item's text
// intersects one of the top curiosity-vector topics (spec.md §4.7
// "a perception item intersects the user's interest graph").
func (e *Evaluator) contentMatchCandidates(perceptionItems []string) []Candidate {
	if e.State == nil || len(perceptionItems) == 0 {
		return nil
	}
	interests := e.State.Fast.CuriosityVector.TopInterests(5)
	if len(interests) == 0 {
		return nil
	}
	var out []Candidate
	for _, item := range perceptionItems {
		lower := strings.ToLower(item)
		for _, interest := range interests {
			if interest.Topic == "" || !strings.Contains(lower, strings.ToLower(interest.Topic)) {
				continue
			}
			out = append(out, Candidate{
				Kind:        KindContentMatch,
				Score:       interest.Strength,
				Context:     "noticed something about " + interest.Topic + ": " + item,
				CooldownKey: string(KindContentMatch),
			})
			break
		}
	}
	return out
}

// memoryResurfaceCandidate fires when the most recent strong episode has
// gone untouched for ResurfaceStaleAfter (spec.md §4.7 "a high-strength
// topic untouched for long").
func (e *Evaluator) memoryResurfaceCandidate(now time.Time) (Candidate, bool) {
	if e.Store == nil {
		return Candidate{}, false
	}
	episodes, err := e.Store.RecentEpisodes(now.Add(-30*24*time.Hour), 50, false)
	if err != nil {
		logging.Warn("triggers", "recent episodes for resurface: %v", err)
		return Candidate{}, false
	}
	var stalest memory.Episode
	found := false
	for _, ep := range episodes {
		if ep.Strength < e.ResurfaceMinStrength {
			continue
		}
		if now.Sub(ep.Timestamp) < e.ResurfaceStaleAfter {
			continue
		}
		if !found || ep.Timestamp.Before(stalest.Timestamp) {
			stalest = ep
			found = true
		}
	}
	if !found {
		return Candidate{}, false
	}
	return Candidate{
		Kind:        KindMemoryResurface,
		Score:       stalest.Strength,
		Context:     "an old topic worth revisiting: " + stalest.Body,
		CooldownKey: string(KindMemoryResurface),
	}, true
}
