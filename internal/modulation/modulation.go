// Package modulation implements the Modulation Mapper (spec.md §4.3): a
// pure function from OrganismState to a ModulationVector of structural
// adjustments applied to the language-model call. It never produces text
// telling the model how to feel — behaviour emerges from the constraints
// (shorter max_tokens, tighter context budget, sampling temperature) rather
// than from instructions in the prompt.
package modulation

import (
	"fmt"

	"github.com/vthunder/mneme/internal/state"
)

// ModulationVector is the spec.md §3 structural signal: every field maps to
// a concrete adjustment of the LLM call, never to prompt text.
type ModulationVector struct {
	MaxTokensFactor     float64 // > 0
	TemperatureDelta    float64
	TopPDelta           float64
	ContextBudgetFactor float64 // (0, 2]
	RecallMoodBias      float64 // -1..1
	SilenceBias         float64 // 0..1
}

// Lerp linearly interpolates between v and other; t=0 returns v unchanged,
// t=1 returns other. Used to give modulation inertia across ticks instead
// of snapping instantly to a new vector every step.
func (v ModulationVector) Lerp(other ModulationVector, t float64) ModulationVector {
	t = clamp(t, 0, 1)
	mix := func(a, b float64) float64 { return a + (b-a)*t }
	return ModulationVector{
		MaxTokensFactor:     mix(v.MaxTokensFactor, other.MaxTokensFactor),
		TemperatureDelta:    mix(v.TemperatureDelta, other.TemperatureDelta),
		TopPDelta:           mix(v.TopPDelta, other.TopPDelta),
		ContextBudgetFactor: mix(v.ContextBudgetFactor, other.ContextBudgetFactor),
		RecallMoodBias:      mix(v.RecallMoodBias, other.RecallMoodBias),
		SilenceBias:         mix(v.SilenceBias, other.SilenceBias),
	}
}

// MaxDelta returns the largest absolute per-field difference between v and
// other, used to detect a jump large enough that smoothing should be
// bypassed (a genuine state shock rather than tick-to-tick noise).
func (v ModulationVector) MaxDelta(other ModulationVector) float64 {
	deltas := []float64{
		absf(v.MaxTokensFactor - other.MaxTokensFactor),
		absf(v.TemperatureDelta - other.TemperatureDelta),
		absf(v.TopPDelta - other.TopPDelta),
		absf(v.ContextBudgetFactor - other.ContextBudgetFactor),
		absf(v.RecallMoodBias - other.RecallMoodBias),
		absf(v.SilenceBias - other.SilenceBias),
	}
	max := 0.0
	for _, d := range deltas {
		if d > max {
			max = d
		}
	}
	return max
}

// DefaultModulationVector is the neutral vector: no adjustment.
func DefaultModulationVector() ModulationVector {
	return ModulationVector{MaxTokensFactor: 1.0, ContextBudgetFactor: 1.0}
}

// Apply resolves a vector against a base sampling configuration, clamping to
// the safe envelopes spec.md §4.3 names explicitly: final temperature in
// [0.1, 1.5], final max_tokens >= 64.
func (v ModulationVector) Apply(baseTemp, baseTopP float64, baseMaxTokens int) (temp, topP float64, maxTokens int) {
	temp = clamp(baseTemp+v.TemperatureDelta, 0.1, 1.5)
	topP = clamp(baseTopP+v.TopPDelta, 0.05, 1.0)
	maxTokens = int(float64(baseMaxTokens) * v.MaxTokensFactor)
	if maxTokens < 64 {
		maxTokens = 64
	}
	return
}

// ModulationCurves are the slow-tier, per-instance parameters the mapper
// reads (spec.md §4.3 `modulation_curves`). Each pair is (low_output,
// high_output) linearly interpolated across the driving state dimension.
// Defaults reproduce the fixed piecewise-linear behaviour spec.md §4.3
// names as the starting point before any instance-specific learning.
type ModulationCurves struct {
	EnergyToMaxTokens   [2]float64
	StressToTemperature [2]float64
	EnergyToContext     [2]float64
	MoodToRecallBias    [2]float64
	SocialToSilence     [2]float64
	MoodExtremeToTopP   [2]float64
}

// DefaultModulationCurves matches the spec.md §4.3 table's monotone
// directions with concrete default ranges.
func DefaultModulationCurves() ModulationCurves {
	return ModulationCurves{
		EnergyToMaxTokens:   [2]float64{0.3, 1.2},
		StressToTemperature: [2]float64{0.0, 0.3},
		EnergyToContext:     [2]float64{0.5, 1.1},
		MoodToRecallBias:    [2]float64{-1.0, 1.0},
		SocialToSilence:     [2]float64{0.4, 0.0}, // high social need -> low silence
		MoodExtremeToTopP:   [2]float64{0.0, -0.15},
	}
}

// ToRawCurves flattens into the opaque map internal/state persists on
// SlowState.ModulationCurve, avoiding an import cycle (state cannot depend
// on modulation).
func (c ModulationCurves) ToRawCurves() state.CurveParams {
	return state.CurveParams{Raw: map[string][2]float64{
		"energy_to_max_tokens":   c.EnergyToMaxTokens,
		"stress_to_temperature":  c.StressToTemperature,
		"energy_to_context":      c.EnergyToContext,
		"mood_to_recall_bias":    c.MoodToRecallBias,
		"social_to_silence":      c.SocialToSilence,
		"mood_extreme_to_top_p":  c.MoodExtremeToTopP,
	}}
}

// CurvesFromRaw reconstructs ModulationCurves from the persisted opaque
// form, falling back to defaults for any missing entry (a fresh instance,
// or one predating a curve added later).
func CurvesFromRaw(raw state.CurveParams) ModulationCurves {
	c := DefaultModulationCurves()
	if raw.Raw == nil {
		return c
	}
	assign := func(key string, dst *[2]float64) {
		if v, ok := raw.Raw[key]; ok {
			*dst = v
		}
	}
	assign("energy_to_max_tokens", &c.EnergyToMaxTokens)
	assign("stress_to_temperature", &c.StressToTemperature)
	assign("energy_to_context", &c.EnergyToContext)
	assign("mood_to_recall_bias", &c.MoodToRecallBias)
	assign("social_to_silence", &c.SocialToSilence)
	assign("mood_extreme_to_top_p", &c.MoodExtremeToTopP)
	return c
}

// BehaviorThresholds are the learnable "magic numbers" kept out of code so
// they live in the same learned-parameter family as ModulationCurves,
// rather than scattered through the Reasoning Loop and Trigger Evaluator.
type BehaviorThresholds struct {
	AttentionStress  float64
	AttentionEnergy  float64
	AttentionSocial  float64
	EnergyCritical   float64
	StressCritical   float64
	SocialNeedHigh   float64
	CuriosityHigh    float64
	EnergyGateMin    float64
	CalmStressMax    float64
	CalmArousalMax   float64
	StressSilenceMin float64
}

// DefaultBehaviorThresholds matches the original hardcoded thresholds this
// design supersedes with a learnable parameter set.
func DefaultBehaviorThresholds() BehaviorThresholds {
	return BehaviorThresholds{
		AttentionStress:  0.7,
		AttentionEnergy:  0.3,
		AttentionSocial:  0.8,
		EnergyCritical:   0.2,
		StressCritical:   0.8,
		SocialNeedHigh:   0.7,
		CuriosityHigh:    0.7,
		EnergyGateMin:    0.3,
		CalmStressMax:    0.2,
		CalmArousalMax:   0.3,
		StressSilenceMin: 0.8,
	}
}

// SomaticMarker is a compressed snapshot of state, the input to both the
// modulation mapping and the somatic digest line (spec.md §4.3).
type SomaticMarker struct {
	Affect          state.Affect
	Energy          float64
	Stress          float64
	SocialNeed      float64
	Curiosity       float64
	MoodBias        float64
	AttachmentStyle state.AttachmentStyle
	Openness        float64
	CuriosityTopics []state.TopicInterest
}

// FromState compresses the full OrganismState into a SomaticMarker.
func FromState(s *state.OrganismState) SomaticMarker {
	return SomaticMarker{
		Affect:          s.Fast.Affect,
		Energy:          s.Fast.Energy,
		Stress:          s.Fast.Stress,
		SocialNeed:      s.Fast.SocialNeed,
		Curiosity:       s.Fast.Curiosity,
		MoodBias:        s.Medium.MoodBias,
		AttachmentStyle: s.Medium.Attachment.Style(),
		Openness:        s.Medium.Openness,
		CuriosityTopics: s.Fast.CuriosityVector.TopInterests(3),
	}
}

// Digest formats the compact numerical somatic digest line spec.md §4.3
// gives as an example (`E=0.42 S=1.00 M=-0.63`): an auxiliary signal only,
// never the primary shaping mechanism.
func (m SomaticMarker) Digest() string {
	line := fmt.Sprintf("E=%.2f S=%.2f M=%.2f A=%.2f/%.2f", m.Energy, m.Stress, m.MoodBias, m.Affect.Valence, m.Affect.Arousal)
	if len(m.CuriosityTopics) > 0 {
		line += " C="
		for i, t := range m.CuriosityTopics {
			if i > 0 {
				line += ","
			}
			line += fmt.Sprintf("%s(%.0f%%)", t.Topic, t.Strength*100)
		}
	}
	return line
}

// ToModulationVector maps the marker to a ModulationVector using the
// default curves and thresholds.
func (m SomaticMarker) ToModulationVector() ModulationVector {
	return m.ToModulationVectorFull(DefaultModulationCurves(), DefaultBehaviorThresholds())
}

// ToModulationVectorWithCurves maps using a specific (learned) curve set.
func (m SomaticMarker) ToModulationVectorWithCurves(curves ModulationCurves) ModulationVector {
	return m.ToModulationVectorFull(curves, DefaultBehaviorThresholds())
}

// ToModulationVectorFull is the full pure-function mapping spec.md §4.3
// requires, parameterised by both learnable curves and learnable
// thresholds.
func (m SomaticMarker) ToModulationVectorFull(curves ModulationCurves, t BehaviorThresholds) ModulationVector {
	maxTokensFactor := lerp(curves.EnergyToMaxTokens[0], curves.EnergyToMaxTokens[1], m.Energy)

	stressTemp := lerp(curves.StressToTemperature[0], curves.StressToTemperature[1], m.Stress)
	arousalTemp := m.Affect.Arousal * 0.15
	calmBonus := 0.0
	if m.Stress < t.CalmStressMax && m.Affect.Arousal < t.CalmArousalMax {
		calmBonus = -0.1
	}
	temperatureDelta := clamp(stressTemp+arousalTemp+calmBonus, -0.1, 0.4)

	energyContext := lerp(curves.EnergyToContext[0], curves.EnergyToContext[1], m.Energy)
	stressPenalty := m.Stress * 0.3
	contextBudgetFactor := clamp(energyContext-stressPenalty, 0.4, 1.2)

	moodT := (m.MoodBias + 1.0) / 2.0
	recallMoodBias := clamp(lerp(curves.MoodToRecallBias[0], curves.MoodToRecallBias[1], moodT), -1.0, 1.0)

	socialSilence := lerp(curves.SocialToSilence[0], curves.SocialToSilence[1], m.SocialNeed)
	energySilence := (1.0 - m.Energy) * 0.3
	stressSilence := 0.0
	if m.Stress > t.StressSilenceMin {
		stressSilence = 0.2
	}
	silenceBias := clamp(energySilence+socialSilence+stressSilence, 0.0, 1.0)

	extremity := absf(m.MoodBias)
	topPDelta := lerp(curves.MoodExtremeToTopP[0], curves.MoodExtremeToTopP[1], extremity)

	return ModulationVector{
		MaxTokensFactor:     maxTokensFactor,
		TemperatureDelta:    temperatureDelta,
		TopPDelta:           topPDelta,
		ContextBudgetFactor: contextBudgetFactor,
		RecallMoodBias:      recallMoodBias,
		SilenceBias:         silenceBias,
	}
}

// NeedsAttention reports whether the marker crosses any attention
// threshold: high stress, low energy, or high unmet social need.
func (m SomaticMarker) NeedsAttention() bool {
	return m.NeedsAttentionWith(DefaultBehaviorThresholds())
}

func (m SomaticMarker) NeedsAttentionWith(t BehaviorThresholds) bool {
	return m.Stress > t.AttentionStress || m.Energy < t.AttentionEnergy || m.SocialNeed > t.AttentionSocial
}

// ProactivityUrgency scores 0..1 how strongly the organism should initiate
// contact, gated by a minimum energy floor and penalised by stress. Feeds
// the Trigger Evaluator's state-driven candidate (spec.md §4.7).
func (m SomaticMarker) ProactivityUrgency() float64 {
	return m.ProactivityUrgencyWith(DefaultBehaviorThresholds())
}

func (m SomaticMarker) ProactivityUrgencyWith(t BehaviorThresholds) float64 {
	socialFactor := m.SocialNeed * 0.6
	curiosityFactor := m.Curiosity * 0.2
	energyGate := maxf(m.Energy, t.EnergyGateMin)
	stressPenalty := m.Stress * 0.3
	return clamp((socialFactor+curiosityFactor)*energyGate-stressPenalty, 0.0, 1.0)
}

// BodyFeeling is one detected somatic shift, for the digest / reflection log.
type BodyFeeling struct {
	Text      string
	Intensity float64
}

// DescribeBodyFeeling compares the marker against a previous snapshot and
// returns feeling descriptions for shifts exceeding threshold — not every
// tick produces one.
func (m SomaticMarker) DescribeBodyFeeling(prev SomaticMarker, threshold float64) []BodyFeeling {
	return m.DescribeBodyFeelingWith(prev, threshold, DefaultBehaviorThresholds())
}

func (m SomaticMarker) DescribeBodyFeelingWith(prev SomaticMarker, threshold float64, t BehaviorThresholds) []BodyFeeling {
	var feelings []BodyFeeling

	energyDelta := m.Energy - prev.Energy
	stressDelta := m.Stress - prev.Stress
	moodDelta := m.MoodBias - prev.MoodBias
	socialDelta := m.SocialNeed - prev.SocialNeed
	curiosityDelta := m.Curiosity - prev.Curiosity

	if energyDelta < -threshold {
		text := "tired, want to slow down"
		if m.Energy < t.EnergyCritical {
			text = "suddenly drained, heavy all over"
		}
		feelings = append(feelings, BodyFeeling{Text: text, Intensity: minf(-energyDelta, 1.0)})
	}
	if energyDelta > threshold {
		feelings = append(feelings, BodyFeeling{Text: "a sudden lift in energy", Intensity: minf(energyDelta, 1.0)})
	}
	if stressDelta > threshold {
		text := "a little keyed up"
		if m.Stress > t.StressCritical {
			text = "heart racing, on edge"
		}
		feelings = append(feelings, BodyFeeling{Text: text, Intensity: minf(stressDelta, 1.0)})
	}
	if stressDelta < -threshold {
		feelings = append(feelings, BodyFeeling{Text: "a breath out, settling down", Intensity: minf(-stressDelta, 1.0)})
	}
	if moodDelta < -threshold {
		feelings = append(feelings, BodyFeeling{Text: "a low, heavy feeling", Intensity: minf(-moodDelta, 1.0)})
	}
	if moodDelta > threshold {
		feelings = append(feelings, BodyFeeling{Text: "warmer, lighter", Intensity: minf(moodDelta, 1.0)})
	}
	if socialDelta > threshold && m.SocialNeed > t.SocialNeedHigh {
		feelings = append(feelings, BodyFeeling{Text: "wanting to talk to someone", Intensity: minf(socialDelta, 1.0)})
	}
	if curiosityDelta > threshold && m.Curiosity > t.CuriosityHigh {
		feelings = append(feelings, BodyFeeling{Text: "itching to know more", Intensity: minf(curiosityDelta, 1.0)})
	}

	return feelings
}

func lerp(a, b, t float64) float64 { return a + (b-a)*clamp(t, 0, 1) }

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func maxf(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
