// Package dynamics implements the Dynamics Engine (spec.md §4.1): the
// coupled fast/medium/slow differential equations that advance an
// OrganismState by a time interval given a SensoryInput, with a
// semi-implicit Euler step-cap scheme and an analytic catch-up path for
// large gaps between ticks.
package dynamics

import (
	"math"
	"time"

	"github.com/vthunder/mneme/internal/state"
)

// Dynamics advances OrganismState by dt given a stimulus. Implementations
// must be deterministic given identical (state, input, dt).
type Dynamics interface {
	Step(s *state.OrganismState, input state.SensoryInput, dt time.Duration)
	StepSlowCrisis(slow *state.SlowState, medium state.MediumState, crisisIntensity float64) bool
	ApplyMoralCost(fast *state.FastState, cost float64)
}

// LearnableDynamics holds the per-instance parameters Consolidation drifts
// from interaction feedback (spec.md §9 "modulation_curves are learned, not
// hand-tuned" — this is the dynamics-side counterpart).
type LearnableDynamics struct {
	EnergyTarget    float64
	StressDecayRate float64
}

// DefaultLearnableDynamics returns the homeostatic starting parameters.
func DefaultLearnableDynamics() LearnableDynamics {
	return LearnableDynamics{EnergyTarget: 0.7, StressDecayRate: 0.005}
}

// LearnFromSamples nudges EnergyTarget toward energy levels that correlated
// with positive feedback, and StressDecayRate up when high stress
// correlated with negative feedback. Each sample is (energy, stress,
// feedback_valence). Returns false (no-op) below a minimum sample count.
func (l *LearnableDynamics) LearnFromSamples(samples [][3]float64) bool {
	if len(samples) < 3 {
		return false
	}
	const lr = 0.005
	n := float64(len(samples))

	var energySignal float64
	for _, s := range samples {
		energy, _, fv := s[0], s[1], s[2]
		energySignal += fv * (energy - l.EnergyTarget)
	}
	energySignal /= n
	l.EnergyTarget = clamp(l.EnergyTarget+lr*energySignal, 0.3, 0.9)

	var stressSignal float64
	for _, s := range samples {
		_, stress, fv := s[0], s[1], s[2]
		stressSignal += -fv * stress
	}
	stressSignal /= n
	l.StressDecayRate = clamp(l.StressDecayRate+lr*0.001*stressSignal, 0.001, 0.02)

	return true
}

// DefaultDynamics is the exponential decay/growth ODE model (spec.md §4.1).
// A future evolution phase may replace this with a learned projection
// without changing the Dynamics interface (spec.md §9 non-goal: neural
// training of modulation curves, but the interface boundary is identical).
type DefaultDynamics struct {
	Learnable LearnableDynamics

	StressTarget     float64
	SocialNeedTarget float64

	EnergyRecoveryRate    float64
	SocialNeedGrowthRate  float64

	StressSensitivity float64
	AffectSensitivity float64

	MoodTimeConstant float64 // hours

	// MaxStep bounds a single sub-step of the semi-implicit integrator.
	// Δt larger than this is subdivided; Δt larger than CatchupHorizon is
	// first collapsed analytically.
	MaxStep        time.Duration
	CatchupHorizon time.Duration
}

// New returns DefaultDynamics at the spec's homeostatic parameter set.
func New(maxStep, catchupHorizon time.Duration) *DefaultDynamics {
	if maxStep <= 0 {
		maxStep = 5 * time.Second
	}
	if catchupHorizon <= 0 {
		catchupHorizon = time.Hour
	}
	return &DefaultDynamics{
		Learnable: DefaultLearnableDynamics(),

		StressTarget:     0.2,
		SocialNeedTarget: 0.5,

		EnergyRecoveryRate:   0.003,
		SocialNeedGrowthRate: 0.0001,

		StressSensitivity: 0.5,
		AffectSensitivity: 0.3,

		MoodTimeConstant: 2.0,

		MaxStep:        maxStep,
		CatchupHorizon: catchupHorizon,
	}
}

// Step advances state by dt given input, deterministically. When dt exceeds
// CatchupHorizon, everything except the final MaxStep is collapsed with a
// closed-form relaxation (no stimulus is assumed to have occurred during
// the skipped span — spec.md §4.1 "Catch-up") and input is applied only
// over that final MaxStep; otherwise dt is integrated in MaxStep-capped
// semi-implicit sub-steps, so input is only ever applied over a bounded,
// numerically stable span.
func (d *DefaultDynamics) Step(s *state.OrganismState, input state.SensoryInput, dt time.Duration) {
	if dt <= 0 {
		return
	}

	remaining := dt
	if remaining > d.CatchupHorizon {
		analyticSpan := remaining - d.MaxStep
		d.applyAnalyticCatchup(s, analyticSpan)
		remaining = d.MaxStep
	}

	steps := int(math.Ceil(float64(remaining) / float64(d.MaxStep)))
	if steps < 1 {
		steps = 1
	}
	subDt := remaining / time.Duration(steps)

	for i := 0; i < steps; i++ {
		d.stepOnce(s, input, subDt)
	}
	s.LastUpdated = s.LastUpdated.Add(dt)
}

// stepOnce is one semi-implicit Euler sub-step: fast state is integrated
// first, then medium state is integrated using the already-updated fast
// state average, following the teacher-grounded coupling order of the
// original step_fast/step_medium pair.
func (d *DefaultDynamics) stepOnce(s *state.OrganismState, input state.SensoryInput, dt time.Duration) {
	dtSecs := dt.Seconds()
	d.stepFast(&s.Fast, s.Medium, input, dtSecs)
	d.stepMedium(&s.Medium, s.Fast, s.Slow, input, dtSecs)
}

func (d *DefaultDynamics) stepFast(fast *state.FastState, medium state.MediumState, input state.SensoryInput, dt float64) {
	hasStimulus := input.IsSocial || input.ContentIntensity > 0.01

	activityCost := 0.0
	switch {
	case input.IsSocial:
		activityCost = 0.01
	case hasStimulus:
		activityCost = 0.002
	}
	dEnergy := d.EnergyRecoveryRate*(d.Learnable.EnergyTarget-fast.Energy) - activityCost
	fast.Energy += dEnergy * dt

	negativeStimulus := math.Max(-input.ContentValence, 0) * input.ContentIntensity
	surpriseStress := input.Surprise * 0.3
	moralStress := 0.0
	if len(input.ViolatedValues) > 0 {
		moralStress = 0.5
	}
	dStress := -d.Learnable.StressDecayRate*(fast.Stress-d.StressTarget) +
		d.StressSensitivity*(negativeStimulus+surpriseStress+moralStress)
	fast.Stress += dStress * dt

	moodInfluence := 0.0
	if hasStimulus {
		moodInfluence = medium.MoodBias * 0.3
	}
	targetValence := input.ContentValence*d.AffectSensitivity + moodInfluence
	targetArousal := input.ContentIntensity*0.5 + input.Surprise*0.3 + 0.2

	const affectRate = 0.1
	fast.Affect.Valence += affectRate * (targetValence - fast.Affect.Valence) * dt
	fast.Affect.Arousal += affectRate * (targetArousal - fast.Affect.Arousal) * dt
	if hasStimulus {
		fast.Affect.Valence -= fast.Stress * 0.1 * dt
	}

	dCuriosity := input.Surprise*0.1*math.Max(input.ContentValence, 0) -
		fast.Stress*0.05 + medium.Openness*0.02 + fast.Boredom*0.03
	fast.Curiosity += dCuriosity * dt

	if dCuriosity > 0 && input.TopicHint != "" {
		boost := math.Min(dCuriosity*dt, 0.3)
		fast.CuriosityVector.TagInterest(input.TopicHint, boost)
	}
	fast.CuriosityVector.Decay(1.0 - 0.001*dt)

	var dSocial float64
	if input.IsSocial {
		dSocial = -0.1 * fast.SocialNeed
	} else {
		dSocial = d.SocialNeedGrowthRate * (d.SocialNeedTarget - fast.SocialNeed)
	}
	fast.SocialNeed += dSocial * dt

	novelty := input.Surprise*0.5 + input.ContentIntensity*0.3
	dBoredom := 0.01*(1-novelty) - novelty*0.15 - fast.Stress*0.01
	fast.Boredom += dBoredom * dt

	fast.Normalize()
}

func (d *DefaultDynamics) stepMedium(medium *state.MediumState, fast state.FastState, _ state.SlowState, input state.SensoryInput, dt float64) {
	dtHours := dt / 3600.0
	hasStimulus := input.IsSocial || input.ContentIntensity > 0.01

	effectiveTau := d.MoodTimeConstant
	if !hasStimulus {
		effectiveTau *= 0.3 // idle recovery is 3x faster than stimulus-driven drift
	}
	dMood := (fast.Affect.Valence - medium.MoodBias) / effectiveTau
	medium.MoodBias += dMood * dtHours

	dOpenness := (fast.Curiosity*0.5 - medium.Openness) * 0.1
	medium.Openness += dOpenness * dtHours

	dHunger := math.Max(fast.SocialNeed-0.5, 0) * 0.1
	medium.Hunger += dHunger * dtHours

	if input.IsSocial {
		wasPositive := input.ContentValence > 0
		medium.Attachment.UpdateFromInteraction(wasPositive, input.ResponseDelayFactor)
	}

	medium.Normalize()
}

// applyAnalyticCatchup collapses a long idle span into a single closed-form
// relaxation step per field, assuming no stimulus occurred during the span
// (spec.md §4.1 "Catch-up": analytic decay up to a bounded horizon). Each
// field relaxes exponentially toward a fixed target. Energy, stress, social
// need, valence, arousal, mood bias and openness use the idle targets and
// rates of the iterative sub-step; curiosity (toward 0.3 at 0.02/s),
// boredom (toward 0.2 at 0.01/s) and hunger (toward 0 at 0.05/h) use
// constants of their own that the iterative sub-step does not share.
func (d *DefaultDynamics) applyAnalyticCatchup(s *state.OrganismState, span time.Duration) {
	if span <= 0 {
		return
	}
	secs := span.Seconds()

	f := &s.Fast
	f.Energy = relax(f.Energy, d.Learnable.EnergyTarget, d.EnergyRecoveryRate, secs)
	f.Stress = relax(f.Stress, d.StressTarget, d.Learnable.StressDecayRate, secs)
	f.Affect.Valence = relax(f.Affect.Valence, 0, 0.1, secs)
	f.Affect.Arousal = relax(f.Affect.Arousal, 0.2, 0.1, secs)
	f.SocialNeed = relax(f.SocialNeed, d.SocialNeedTarget, d.SocialNeedGrowthRate, secs)
	f.Curiosity = relax(f.Curiosity, 0.3, 0.02, secs)
	f.Boredom = relax(f.Boredom, 0.2, 0.01, secs)
	f.CuriosityVector.Decay(math.Exp(-0.001 * secs))
	f.Normalize()

	m := &s.Medium
	hours := secs / 3600.0
	m.MoodBias = relax(m.MoodBias, 0, 1/(d.MoodTimeConstant*0.3), hours)
	m.Openness = relax(m.Openness, f.Curiosity*0.5, 0.1, hours)
	m.Hunger = relax(m.Hunger, 0, 0.05, hours)
	m.Normalize()
}

// relax is the closed-form solution of x' = rate*(target-x): an exponential
// approach to target over elapsed time units matching rate's own units.
func relax(x, target, rate, elapsed float64) float64 {
	return target - (target-x)*math.Exp(-rate*elapsed)
}

// StepSlowCrisis is the only path by which slow-tier state changes outside
// Consolidation (spec.md §4.1 "Slow" / §7 Narrative Collapse). Returns true
// if the crisis intensity exceeded the rigidity-scaled collapse threshold.
func (d *DefaultDynamics) StepSlowCrisis(slow *state.SlowState, medium state.MediumState, crisisIntensity float64) bool {
	collapseThreshold := 0.5 + slow.Rigidity*0.4

	if crisisIntensity > collapseThreshold {
		slow.Rigidity *= 0.7
		slow.NarrativeBias = medium.MoodBias * 0.5
		return true
	}

	slow.Rigidity += 0.001 * (1 - slow.Rigidity)
	slow.Rigidity = clamp(slow.Rigidity, 0, 1)
	slow.NarrativeBias = clamp(slow.NarrativeBias, -1, 1)
	return false
}

// ApplyMoralCost applies the immediate fast-tier penalty of a value
// violation (spec.md §3 ValueNetwork.ComputeMoralCost feeds this): stress
// rises, energy depletes, valence drops (guilt).
func (d *DefaultDynamics) ApplyMoralCost(fast *state.FastState, cost float64) {
	fast.Stress += cost * 0.5
	fast.Energy -= cost * 0.3
	fast.Affect.Valence -= cost * 0.2
	fast.Normalize()
}

// HomeostaticError reports how far fast state sits from its equilibrium
// point, as a diagnostic.
func (d *DefaultDynamics) HomeostaticError(s *state.OrganismState) float64 {
	eErr := math.Abs(s.Fast.Energy - d.Learnable.EnergyTarget)
	sErr := math.Abs(s.Fast.Stress - d.StressTarget)
	snErr := math.Abs(s.Fast.SocialNeed - d.SocialNeedTarget)
	return (eErr + sErr + snErr) / 3.0
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
