// Package state holds the three-timescale OrganismState: fast (seconds),
// medium (minutes-hours) and slow (days+) dynamics, plus the sensory input
// that drives a single step of the Dynamics Engine.
package state

import (
	"math"
	"sort"
	"time"
)

// sanitize replaces a non-finite value with fallback, the homeostatic default
// for that scalar. Every normalize() call routes through this so NaN/Inf never
// survives a step.
func sanitize(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
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

// Affect is valence x arousal, the core of the fast-tier emotional state.
type Affect struct {
	Valence float64 // -1..1
	Arousal float64 // 0..1
}

func (a *Affect) normalize() {
	a.Valence = clamp(sanitize(a.Valence, 0.0), -1.0, 1.0)
	a.Arousal = clamp(sanitize(a.Arousal, 0.3), 0.0, 1.0)
}

// Describe gives a short human-readable label for somatic-digest formatting.
func (a Affect) Describe() string {
	switch {
	case a.Valence > 0.3 && a.Arousal > 0.5:
		return "excited"
	case a.Valence > 0.3:
		return "content"
	case a.Valence < -0.3 && a.Arousal > 0.5:
		return "agitated"
	case a.Valence < -0.3:
		return "down"
	case a.Arousal > 0.6:
		return "alert"
	default:
		return "neutral"
	}
}

// CuriosityVector is a small decaying map of topic -> interest strength,
// tagged whenever a stimulus both raises curiosity and carries a topic hint.
type CuriosityVector struct {
	Interests map[string]float64
}

// TagInterest boosts (or creates) an interest, capped at 1.0.
func (c *CuriosityVector) TagInterest(topic string, boost float64) {
	if c.Interests == nil {
		c.Interests = make(map[string]float64)
	}
	if topic == "" || boost <= 0 {
		return
	}
	c.Interests[topic] = clamp(c.Interests[topic]+boost, 0.0, 1.0)
}

// Decay multiplies every interest by factor, pruning entries below a floor so
// the map doesn't grow without bound.
func (c *CuriosityVector) Decay(factor float64) {
	for topic, strength := range c.Interests {
		v := strength * factor
		if v < 0.01 {
			delete(c.Interests, topic)
			continue
		}
		c.Interests[topic] = v
	}
}

// TopInterests returns up to n (topic, strength) pairs sorted descending.
func (c *CuriosityVector) TopInterests(n int) []TopicInterest {
	out := make([]TopicInterest, 0, len(c.Interests))
	for t, s := range c.Interests {
		out = append(out, TopicInterest{Topic: t, Strength: s})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Strength > out[j].Strength })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// TopicInterest is one entry of a CuriosityVector ranking.
type TopicInterest struct {
	Topic    string
	Strength float64
}

// FastState is the second-scale tier: responds immediately to stimulus and
// decays quickly. ds_fast/dt = F_fast(s_fast, s_medium, i, t).
type FastState struct {
	Affect          Affect
	Energy          float64 // 0..1
	Stress          float64 // 0..1
	Curiosity       float64 // 0..1
	SocialNeed      float64 // 0..1
	Boredom         float64 // 0..1
	CuriosityVector CuriosityVector
}

// DefaultFastState returns the homeostatic starting point.
func DefaultFastState() FastState {
	return FastState{
		Affect:     Affect{Valence: 0.0, Arousal: 0.3},
		Energy:     0.7,
		Stress:     0.2,
		Curiosity:  0.5,
		SocialNeed: 0.4,
		Boredom:    0.2,
	}
}

// Normalize clamps every field to its declared interval and sanitizes
// NaN/Inf back to the homeostatic default, per spec.md invariant.
func (f *FastState) Normalize() {
	f.Energy = clamp(sanitize(f.Energy, 0.7), 0.0, 1.0)
	f.Stress = clamp(sanitize(f.Stress, 0.2), 0.0, 1.0)
	f.Curiosity = clamp(sanitize(f.Curiosity, 0.3), 0.0, 1.0)
	f.SocialNeed = clamp(sanitize(f.SocialNeed, 0.5), 0.0, 1.0)
	f.Boredom = clamp(sanitize(f.Boredom, 0.2), 0.0, 1.0)
	f.Affect.normalize()
}

// AttachmentStyle classifies the anxiety/avoidance quadrant (ECR scale).
type AttachmentStyle int

const (
	Secure AttachmentStyle = iota
	Anxious
	Avoidant
	Disorganized
)

func (s AttachmentStyle) String() string {
	switch s {
	case Anxious:
		return "anxious"
	case Avoidant:
		return "avoidant"
	case Disorganized:
		return "disorganized"
	default:
		return "secure"
	}
}

// AttachmentState models anxiety/avoidance per the ECR scale.
type AttachmentState struct {
	Anxiety   float64 // 0..1
	Avoidance float64 // 0..1
}

func DefaultAttachmentState() AttachmentState {
	return AttachmentState{Anxiety: 0.3, Avoidance: 0.2}
}

// Style classifies the current anxiety/avoidance pair into a quadrant.
func (a AttachmentState) Style() AttachmentStyle {
	anxious := a.Anxiety > 0.5
	avoidant := a.Avoidance > 0.5
	switch {
	case !anxious && !avoidant:
		return Secure
	case anxious && !avoidant:
		return Anxious
	case !anxious && avoidant:
		return Avoidant
	default:
		return Disorganized
	}
}

// UpdateFromInteraction applies a Bayesian-like nudge from one social
// exchange outcome: positive interactions pull anxiety/avoidance down, slow
// responses push anxiety up regardless of valence.
func (a *AttachmentState) UpdateFromInteraction(wasPositive bool, responseDelayFactor float64) {
	const learningRate = 0.05
	if wasPositive {
		a.Anxiety -= learningRate * a.Anxiety
		a.Avoidance -= learningRate * 0.5 * a.Avoidance
	} else {
		a.Anxiety += learningRate * (1.0 - a.Anxiety)
	}
	if responseDelayFactor > 1.5 {
		a.Anxiety += learningRate * 0.3 * (responseDelayFactor - 1.0)
	}
	a.Anxiety = clamp(a.Anxiety, 0.0, 1.0)
	a.Avoidance = clamp(a.Avoidance, 0.0, 1.0)
}

func (a *AttachmentState) normalize() {
	a.Anxiety = clamp(sanitize(a.Anxiety, 0.3), 0.0, 1.0)
	a.Avoidance = clamp(sanitize(a.Avoidance, 0.2), 0.0, 1.0)
}

// MediumState is the minutes-to-hours tier: an integral of fast state that
// only drifts when fast state persists. ds_medium/dt = F_medium(s_medium,
// s_slow, avg(s_fast)).
type MediumState struct {
	MoodBias   float64 // -1..1
	Attachment AttachmentState
	Openness   float64 // 0..1
	Hunger     float64 // 0..1
}

func DefaultMediumState() MediumState {
	return MediumState{
		MoodBias:   0.0,
		Attachment: DefaultAttachmentState(),
		Openness:   0.6,
		Hunger:     0.2,
	}
}

// Normalize clamps and sanitizes every medium-tier field.
func (m *MediumState) Normalize() {
	m.MoodBias = clamp(sanitize(m.MoodBias, 0.0), -1.0, 1.0)
	m.Openness = clamp(sanitize(m.Openness, 0.6), 0.0, 1.0)
	m.Hunger = clamp(sanitize(m.Hunger, 0.2), 0.0, 1.0)
	m.Attachment.normalize()
}

// ValueEntry is one core-value weight and its resistance to change.
type ValueEntry struct {
	Weight   float64 // 0..1, how important this value is
	Rigidity float64 // 0..1, how resistant to change
}

// ValueNetwork is the dynamic, per-instance replacement for a static
// persona/constitution file: values emerge from experience rather than a
// factory preset, so a fresh instance starts empty.
type ValueNetwork struct {
	Values map[string]ValueEntry
}

// NewValueNetwork returns an empty network — existence precedes essence.
func NewValueNetwork() ValueNetwork {
	return ValueNetwork{Values: make(map[string]ValueEntry)}
}

// SeedValueNetwork returns a network pre-populated with bootstrap values, for
// tests or explicit persona seeding (see internal/persona).
func SeedValueNetwork() ValueNetwork {
	return ValueNetwork{Values: map[string]ValueEntry{
		"honesty":      {Weight: 0.8, Rigidity: 0.5},
		"kindness":     {Weight: 0.7, Rigidity: 0.4},
		"curiosity":    {Weight: 0.6, Rigidity: 0.3},
		"authenticity": {Weight: 0.7, Rigidity: 0.5},
		"growth":       {Weight: 0.5, Rigidity: 0.3},
		"connection":   {Weight: 0.6, Rigidity: 0.4},
		"autonomy":     {Weight: 0.5, Rigidity: 0.4},
	}}
}

// TopValues returns up to n (name, weight) pairs sorted descending by weight.
func (v ValueNetwork) TopValues(n int) []ValuePair {
	out := make([]ValuePair, 0, len(v.Values))
	for name, entry := range v.Values {
		out = append(out, ValuePair{Name: name, Weight: entry.Weight})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Weight > out[j].Weight })
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// ValuePair is one entry of a TopValues ranking.
type ValuePair struct {
	Name   string
	Weight float64
}

// ComputeMoralCost sums the weighted cost of violating the named values,
// capped at 1.0. Unknown value names contribute nothing.
func (v ValueNetwork) ComputeMoralCost(violated []string) float64 {
	cost := 0.0
	for _, name := range violated {
		if entry, ok := v.Values[name]; ok {
			cost += entry.Weight * (0.5 + 0.5*entry.Rigidity)
		}
	}
	return math.Min(cost, 1.0)
}

// SlowState is the days-and-up tier: the most stable, changed only by
// Consolidation or by a Narrative Collapse event — never directly at tick
// time. ds_slow/dt = F_slow(s_slow, avg(s_medium), crisis).
type SlowState struct {
	Values          ValueNetwork
	NarrativeBias   float64 // -1..1
	Rigidity        float64 // 0..1
	Plasticity      float64 // 0..1
	ModulationCurve CurveParams
}

// CurveParams is a marker type; the concrete modulation curve coefficients
// live in internal/modulation to avoid an import cycle (modulation depends
// on state, not vice versa). SlowState only carries the learned parameters
// opaquely via Raw so persistence round-trips them.
type CurveParams struct {
	Raw map[string][2]float64
}

func DefaultSlowState() SlowState {
	return SlowState{
		Values:        NewValueNetwork(),
		NarrativeBias: 0.1,
		Rigidity:      0.3,
		Plasticity:    0.5,
	}
}

func (s *SlowState) normalize() {
	s.NarrativeBias = clamp(sanitize(s.NarrativeBias, 0.1), -1.0, 1.0)
	s.Rigidity = clamp(sanitize(s.Rigidity, 0.3), 0.0, 1.0)
	s.Plasticity = clamp(sanitize(s.Plasticity, 0.5), 0.0, 1.0)
}

// OrganismState is the complete s = (s_fast, s_medium, s_slow) vector, the
// sole object the Organism Core owns and the sole input the Modulation
// Mapper observes.
type OrganismState struct {
	Fast        FastState
	Medium      MediumState
	Slow        SlowState
	LastUpdated time.Time
}

// New returns a fresh organism at its homeostatic defaults.
func New() *OrganismState {
	return &OrganismState{
		Fast:        DefaultFastState(),
		Medium:      DefaultMediumState(),
		Slow:        DefaultSlowState(),
		LastUpdated: time.Now(),
	}
}

// Normalize clamps every scalar to its declared range and sanitizes NaN/Inf,
// idempotently (spec.md §8 property: normalize(normalize(s)) == normalize(s)).
func (s *OrganismState) Normalize() {
	s.Fast.Normalize()
	s.Medium.Normalize()
	s.Slow.normalize()
}

// ProjectedPersona is the observable projection p = sigma(s) of the full
// state, used for status dumps and external introspection.
type ProjectedPersona struct {
	Affect           Affect
	EnergyLevel      float64
	StressLevel      float64
	MoodBias         float64
	AttachmentStyle  AttachmentStyle
	DominantValues   []ValuePair
	CuriosityTopics  []TopicInterest
}

// Project produces the observable persona from the full internal state.
func (s *OrganismState) Project() ProjectedPersona {
	return ProjectedPersona{
		Affect:          s.Fast.Affect,
		EnergyLevel:     s.Fast.Energy,
		StressLevel:     s.Fast.Stress,
		MoodBias:        s.Medium.MoodBias,
		AttachmentStyle: s.Medium.Attachment.Style(),
		DominantValues:  s.Slow.Values.TopValues(3),
		CuriosityTopics: s.Fast.CuriosityVector.TopInterests(3),
	}
}

// SensoryInput is the stimulus fed to a single Dynamics step.
type SensoryInput struct {
	ContentValence      float64 // -1..1
	ContentIntensity    float64 // 0..1
	Surprise            float64 // 0..1
	IsSocial            bool
	ResponseDelayFactor float64 // 1.0 = normal, >1 = slow reply from user
	ViolatedValues      []string
	TopicHint           string
}
