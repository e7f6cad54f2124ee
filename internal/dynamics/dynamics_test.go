package dynamics

import (
	"math"
	"testing"
	"time"

	"github.com/vthunder/mneme/internal/state"
)

func newTestDynamics() *DefaultDynamics {
	return New(5*time.Second, time.Hour)
}

func TestStressDecaysTowardTarget(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	s.Fast.Stress = 0.8

	input := state.SensoryInput{}
	for i := 0; i < 100; i++ {
		d.Step(s, input, 60*time.Second)
	}

	if s.Fast.Stress >= 0.5 {
		t.Errorf("stress = %v, want < 0.5 after sustained idle decay", s.Fast.Stress)
	}
}

func TestSocialInteractionReducesSocialNeed(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	s.Fast.SocialNeed = 0.8

	input := state.SensoryInput{IsSocial: true, ContentValence: 0.5}
	d.Step(s, input, time.Second)

	if s.Fast.SocialNeed >= 0.8 {
		t.Errorf("social_need = %v, want < 0.8 after social interaction", s.Fast.SocialNeed)
	}
}

func TestNegativeInputIncreasesStress(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	initial := s.Fast.Stress

	input := state.SensoryInput{ContentValence: -0.8, ContentIntensity: 0.9}
	d.Step(s, input, time.Second)

	if s.Fast.Stress <= initial {
		t.Errorf("stress = %v, want > initial %v after negative stimulus", s.Fast.Stress, initial)
	}
}

func TestNaNAndInfAreSanitizedAfterStep(t *testing.T) {
	d := newTestDynamics()
	s := state.New()

	s.Fast.Energy = math.NaN()
	s.Fast.Stress = math.Inf(1)
	s.Fast.Curiosity = math.Inf(-1)
	s.Fast.Affect.Valence = math.NaN()
	s.Medium.MoodBias = math.NaN()
	s.Medium.Openness = math.Inf(1)

	d.Step(s, state.SensoryInput{}, time.Second)

	for name, v := range map[string]float64{
		"energy":    s.Fast.Energy,
		"stress":    s.Fast.Stress,
		"curiosity": s.Fast.Curiosity,
		"valence":   s.Fast.Affect.Valence,
		"arousal":   s.Fast.Affect.Arousal,
		"mood_bias": s.Medium.MoodBias,
		"openness":  s.Medium.Openness,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			t.Errorf("%s = %v, want finite after step", name, v)
		}
	}

	if s.Fast.Energy < 0 || s.Fast.Energy > 1 {
		t.Errorf("energy out of range: %v", s.Fast.Energy)
	}
	if s.Fast.Stress < 0 || s.Fast.Stress > 1 {
		t.Errorf("stress out of range: %v", s.Fast.Stress)
	}
	if s.Medium.MoodBias < -1 || s.Medium.MoodBias > 1 {
		t.Errorf("mood_bias out of range: %v", s.Medium.MoodBias)
	}
}

func TestExtremeDtStaysInRange(t *testing.T) {
	d := newTestDynamics()
	s := state.New()

	input := state.SensoryInput{ContentValence: -1, ContentIntensity: 1, Surprise: 1}
	// A 24-hour gap exercises the analytic catch-up path.
	d.Step(s, input, 24*time.Hour)

	if s.Fast.Energy < 0 || s.Fast.Energy > 1 || math.IsNaN(s.Fast.Energy) {
		t.Errorf("energy = %v, want finite in [0,1]", s.Fast.Energy)
	}
	if s.Fast.Stress < 0 || s.Fast.Stress > 1 || math.IsNaN(s.Fast.Stress) {
		t.Errorf("stress = %v, want finite in [0,1]", s.Fast.Stress)
	}
	if s.Medium.MoodBias < -1 || s.Medium.MoodBias > 1 || math.IsNaN(s.Medium.MoodBias) {
		t.Errorf("mood_bias = %v, want finite in [-1,1]", s.Medium.MoodBias)
	}
}

func TestCatchupAndIterativeStepsAgreeApproximately(t *testing.T) {
	d := newTestDynamics()

	catchup := state.New()
	catchup.Fast.Stress = 0.9
	catchup.Fast.Energy = 0.1
	d.Step(catchup, state.SensoryInput{}, 90*time.Minute)

	iterative := state.New()
	iterative.Fast.Stress = 0.9
	iterative.Fast.Energy = 0.1
	for elapsed := time.Duration(0); elapsed < 90*time.Minute; elapsed += 5 * time.Second {
		d.Step(iterative, state.SensoryInput{}, 5*time.Second)
	}

	if math.Abs(catchup.Fast.Stress-iterative.Fast.Stress) > 0.05 {
		t.Errorf("stress diverged: catchup=%v iterative=%v", catchup.Fast.Stress, iterative.Fast.Stress)
	}
	if math.Abs(catchup.Fast.Energy-iterative.Fast.Energy) > 0.05 {
		t.Errorf("energy diverged: catchup=%v iterative=%v", catchup.Fast.Energy, iterative.Fast.Energy)
	}
}

func TestBoredomIncreasesWithMonotony(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	initial := s.Fast.Boredom

	input := state.SensoryInput{ContentValence: 0, ContentIntensity: 0.1, Surprise: 0}
	for i := 0; i < 100; i++ {
		d.Step(s, input, time.Second)
	}

	if s.Fast.Boredom <= initial {
		t.Errorf("boredom = %v, want > initial %v under monotonous input", s.Fast.Boredom, initial)
	}
}

func TestBoredomDecreasesWithNovelty(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	s.Fast.Boredom = 0.8

	input := state.SensoryInput{ContentValence: 0.5, ContentIntensity: 0.8, Surprise: 0.9}
	for i := 0; i < 50; i++ {
		d.Step(s, input, time.Second)
	}

	if s.Fast.Boredom >= 0.5 {
		t.Errorf("boredom = %v, want < 0.5 after sustained novelty", s.Fast.Boredom)
	}
}

func TestSlowCrisisNoCollapseBelowThreshold(t *testing.T) {
	d := newTestDynamics()
	slow := state.DefaultSlowState()
	initialRigidity := slow.Rigidity

	collapsed := d.StepSlowCrisis(&slow, state.DefaultMediumState(), 0.2)

	if collapsed {
		t.Fatal("low-intensity crisis should not collapse")
	}
	if slow.Rigidity <= initialRigidity {
		t.Errorf("rigidity = %v, want > initial %v (belief solidification)", slow.Rigidity, initialRigidity)
	}
}

func TestSlowCrisisCollapsesAboveThreshold(t *testing.T) {
	d := newTestDynamics()
	slow := state.DefaultSlowState()
	initialRigidity := slow.Rigidity

	collapsed := d.StepSlowCrisis(&slow, state.DefaultMediumState(), 1.0)

	if !collapsed {
		t.Fatal("high-intensity crisis should collapse")
	}
	if slow.Rigidity >= initialRigidity {
		t.Errorf("rigidity = %v, want < initial %v (plasticity window)", slow.Rigidity, initialRigidity)
	}
}

func TestSlowCrisisRigidityRaisesThreshold(t *testing.T) {
	d := newTestDynamics()
	medium := state.DefaultMediumState()

	rigid := state.DefaultSlowState()
	rigid.Rigidity = 0.9
	collapsedRigid := d.StepSlowCrisis(&rigid, medium, 0.8)

	flexible := state.DefaultSlowState()
	flexible.Rigidity = 0.1
	collapsedFlexible := d.StepSlowCrisis(&flexible, medium, 0.8)

	if collapsedRigid {
		t.Error("high rigidity should resist collapse at intensity 0.8")
	}
	if !collapsedFlexible {
		t.Error("low rigidity should collapse at intensity 0.8")
	}
}

func TestApplyMoralCost(t *testing.T) {
	d := newTestDynamics()
	fast := state.DefaultFastState()
	initialStress, initialEnergy, initialValence := fast.Stress, fast.Energy, fast.Affect.Valence

	d.ApplyMoralCost(&fast, 0.6)

	if fast.Stress <= initialStress {
		t.Error("moral cost should increase stress")
	}
	if fast.Energy >= initialEnergy {
		t.Error("moral cost should decrease energy")
	}
	if fast.Affect.Valence >= initialValence {
		t.Error("moral cost should decrease valence (guilt)")
	}
	if fast.Stress < 0 || fast.Stress > 1 {
		t.Errorf("stress out of range: %v", fast.Stress)
	}
}

func TestHomeostaticErrorNearZeroAtEquilibrium(t *testing.T) {
	d := newTestDynamics()
	s := state.New()
	s.Fast.Energy = d.Learnable.EnergyTarget
	s.Fast.Stress = d.StressTarget
	s.Fast.SocialNeed = d.SocialNeedTarget

	if err := d.HomeostaticError(s); err > 0.01 {
		t.Errorf("homeostatic error = %v, want ~0 at equilibrium", err)
	}

	s.Fast.Energy = 0
	s.Fast.Stress = 1
	s.Fast.SocialNeed = 1
	if err := d.HomeostaticError(s); err < 0.3 {
		t.Errorf("homeostatic error = %v, want high far from equilibrium", err)
	}
}

func TestCuriosityVectorTopicTagging(t *testing.T) {
	d := newTestDynamics()
	s := state.New()

	input := state.SensoryInput{
		ContentValence:   0.8,
		ContentIntensity: 0.5,
		Surprise:         0.9,
		TopicHint:        "quantum computing",
	}
	medium := s.Medium
	for i := 0; i < 10; i++ {
		d.stepFast(&s.Fast, medium, input, 1.0)
	}

	top := s.Fast.CuriosityVector.TopInterests(3)
	if len(top) == 0 {
		t.Fatal("expected a tagged curiosity interest from topic hint")
	}
	if top[0].Topic != "quantum computing" {
		t.Errorf("top interest = %q, want %q", top[0].Topic, "quantum computing")
	}
}

func TestLearnableDynamicsLearnFromSamplesRequiresMinimumSamples(t *testing.T) {
	l := DefaultLearnableDynamics()
	if l.LearnFromSamples([][3]float64{{0.5, 0.2, 0.5}}) {
		t.Error("should not learn from fewer than 3 samples")
	}
}

func TestLearnableDynamicsLearnFromSamplesStaysInBounds(t *testing.T) {
	l := DefaultLearnableDynamics()
	samples := make([][3]float64, 0, 20)
	for i := 0; i < 20; i++ {
		samples = append(samples, [3]float64{0.9, 0.1, 1.0})
	}
	if !l.LearnFromSamples(samples) {
		t.Fatal("expected learning to apply with enough samples")
	}
	if l.EnergyTarget < 0.3 || l.EnergyTarget > 0.9 {
		t.Errorf("energy_target = %v, out of clamp bounds", l.EnergyTarget)
	}
	if l.StressDecayRate < 0.001 || l.StressDecayRate > 0.02 {
		t.Errorf("stress_decay_rate = %v, out of clamp bounds", l.StressDecayRate)
	}
}
