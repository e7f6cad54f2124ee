package modulation

import (
	"testing"

	"github.com/vthunder/mneme/internal/state"
)

func defaultMarker() SomaticMarker {
	return FromState(state.New())
}

func TestModulationVectorDefaultState(t *testing.T) {
	v := defaultMarker().ToModulationVector()
	if v.MaxTokensFactor <= 0 {
		t.Errorf("max_tokens_factor = %v, want > 0", v.MaxTokensFactor)
	}
	if v.ContextBudgetFactor <= 0 {
		t.Errorf("context_budget_factor = %v, want > 0", v.ContextBudgetFactor)
	}
}

func TestModulationVectorExhaustedState(t *testing.T) {
	base := defaultMarker()
	exhausted := base
	exhausted.Energy = 0.1
	exhausted.Stress = 0.9

	baseVec := base.ToModulationVector()
	exhaustedVec := exhausted.ToModulationVector()

	if exhaustedVec.MaxTokensFactor >= baseVec.MaxTokensFactor {
		t.Errorf("exhausted max_tokens_factor = %v, want < default %v", exhaustedVec.MaxTokensFactor, baseVec.MaxTokensFactor)
	}
	if exhaustedVec.ContextBudgetFactor >= baseVec.ContextBudgetFactor {
		t.Errorf("exhausted context_budget_factor = %v, want < default %v", exhaustedVec.ContextBudgetFactor, baseVec.ContextBudgetFactor)
	}
}

func TestModulationVectorEnergeticState(t *testing.T) {
	base := defaultMarker()
	energetic := base
	energetic.Energy = 0.95
	energetic.Stress = 0.05

	baseVec := base.ToModulationVector()
	energeticVec := energetic.ToModulationVector()

	if energeticVec.MaxTokensFactor <= baseVec.MaxTokensFactor {
		t.Errorf("energetic max_tokens_factor = %v, want > default %v", energeticVec.MaxTokensFactor, baseVec.MaxTokensFactor)
	}
}

func TestModulationVectorBounds(t *testing.T) {
	extreme := SomaticMarker{Energy: 1.0, Stress: 1.0, SocialNeed: 1.0, MoodBias: 1.0, Affect: state.Affect{Valence: 1.0, Arousal: 1.0}}
	v := extreme.ToModulationVector()

	if v.TemperatureDelta < -0.1 || v.TemperatureDelta > 0.4 {
		t.Errorf("temperature_delta = %v, out of envelope", v.TemperatureDelta)
	}
	if v.ContextBudgetFactor < 0.4 || v.ContextBudgetFactor > 1.2 {
		t.Errorf("context_budget_factor = %v, out of envelope", v.ContextBudgetFactor)
	}
	if v.SilenceBias < 0 || v.SilenceBias > 1 {
		t.Errorf("silence_bias = %v, out of [0,1]", v.SilenceBias)
	}
	if v.RecallMoodBias < -1 || v.RecallMoodBias > 1 {
		t.Errorf("recall_mood_bias = %v, out of [-1,1]", v.RecallMoodBias)
	}

	zero := SomaticMarker{}
	zv := zero.ToModulationVector()
	if zv.TemperatureDelta < -0.1 || zv.TemperatureDelta > 0.4 {
		t.Errorf("zero-state temperature_delta = %v, out of envelope", zv.TemperatureDelta)
	}
}

func TestModulationVectorLerpMidpoint(t *testing.T) {
	a := ModulationVector{MaxTokensFactor: 0.5, TemperatureDelta: 0.0, SilenceBias: 0.0}
	b := ModulationVector{MaxTokensFactor: 1.5, TemperatureDelta: 0.4, SilenceBias: 1.0}

	mid := a.Lerp(b, 0.5)
	if mid.MaxTokensFactor != 1.0 {
		t.Errorf("lerp midpoint max_tokens_factor = %v, want 1.0", mid.MaxTokensFactor)
	}
	if mid.SilenceBias != 0.5 {
		t.Errorf("lerp midpoint silence_bias = %v, want 0.5", mid.SilenceBias)
	}
}

func TestModulationVectorLerpExtremes(t *testing.T) {
	a := ModulationVector{MaxTokensFactor: 0.5}
	b := ModulationVector{MaxTokensFactor: 1.5}

	if got := a.Lerp(b, 0.0); got.MaxTokensFactor != 0.5 {
		t.Errorf("lerp(t=0) = %v, want self unchanged (0.5)", got.MaxTokensFactor)
	}
	if got := a.Lerp(b, 1.0); got.MaxTokensFactor != 1.5 {
		t.Errorf("lerp(t=1) = %v, want other (1.5)", got.MaxTokensFactor)
	}
}

func TestModulationVectorMaxDelta(t *testing.T) {
	a := ModulationVector{MaxTokensFactor: 1.0, TemperatureDelta: 0.0, SilenceBias: 0.2}
	b := ModulationVector{MaxTokensFactor: 1.0, TemperatureDelta: 0.35, SilenceBias: 0.2}

	if got := a.MaxDelta(b); got < 0.34 || got > 0.36 {
		t.Errorf("max_delta = %v, want ~0.35", got)
	}
}

func TestBodyFeelingEnergyDrop(t *testing.T) {
	prev := defaultMarker()
	curr := prev
	curr.Energy = prev.Energy - 0.3

	feelings := curr.DescribeBodyFeeling(prev, 0.1)
	if len(feelings) == 0 {
		t.Fatal("expected a feeling for a significant energy drop")
	}
}

func TestBodyFeelingStressSpike(t *testing.T) {
	prev := defaultMarker()
	curr := prev
	curr.Stress = prev.Stress + 0.5

	feelings := curr.DescribeBodyFeeling(prev, 0.1)
	if len(feelings) == 0 {
		t.Fatal("expected a feeling for a stress spike")
	}
}

func TestBodyFeelingNoChange(t *testing.T) {
	m := defaultMarker()
	feelings := m.DescribeBodyFeeling(m, 0.1)
	if len(feelings) != 0 {
		t.Errorf("expected no feelings for an unchanged marker, got %d", len(feelings))
	}
}

func TestBodyFeelingMoodLift(t *testing.T) {
	prev := defaultMarker()
	curr := prev
	curr.MoodBias = prev.MoodBias + 0.4

	feelings := curr.DescribeBodyFeeling(prev, 0.1)
	if len(feelings) == 0 {
		t.Fatal("expected a feeling for a mood lift")
	}
}

func TestDigestFormat(t *testing.T) {
	m := SomaticMarker{Energy: 0.42, Stress: 1.0, MoodBias: -0.63}
	line := m.Digest()
	if line == "" {
		t.Fatal("digest should not be empty")
	}
	for _, want := range []string{"E=0.42", "S=1.00", "M=-0.63"} {
		if !contains(line, want) {
			t.Errorf("digest %q missing %q", line, want)
		}
	}
}

func contains(s, sub string) bool {
	return len(s) >= len(sub) && indexOf(s, sub) >= 0
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

func TestModulationCurvesDefaultMatchesHardcoded(t *testing.T) {
	c := DefaultModulationCurves()
	m := SomaticMarker{Energy: 0.6}
	v := m.ToModulationVectorWithCurves(c)

	want := lerp(c.EnergyToMaxTokens[0], c.EnergyToMaxTokens[1], 0.6)
	if v.MaxTokensFactor != want {
		t.Errorf("max_tokens_factor = %v, want %v", v.MaxTokensFactor, want)
	}
}

func TestModulationCurvesDifferentCurvesDifferentOutput(t *testing.T) {
	m := SomaticMarker{Energy: 0.8}

	narrow := DefaultModulationCurves()
	wide := DefaultModulationCurves()
	wide.EnergyToMaxTokens = [2]float64{0.1, 2.0}

	vNarrow := m.ToModulationVectorWithCurves(narrow)
	vWide := m.ToModulationVectorWithCurves(wide)

	if vNarrow.MaxTokensFactor == vWide.MaxTokensFactor {
		t.Error("different curves should produce different max_tokens_factor for the same state")
	}
}

func TestModulationCurvesRawRoundTrip(t *testing.T) {
	c := DefaultModulationCurves()
	c.EnergyToMaxTokens = [2]float64{0.2, 1.3}

	raw := c.ToRawCurves()
	restored := CurvesFromRaw(raw)

	if restored.EnergyToMaxTokens != c.EnergyToMaxTokens {
		t.Errorf("restored energy_to_max_tokens = %v, want %v", restored.EnergyToMaxTokens, c.EnergyToMaxTokens)
	}
}

func TestCurvesFromRawFallsBackToDefaultsWhenEmpty(t *testing.T) {
	restored := CurvesFromRaw(state.CurveParams{})
	if restored != DefaultModulationCurves() {
		t.Error("empty raw curves should fall back to defaults")
	}
}

func TestBehaviorThresholdsDefaultMatchesHardcoded(t *testing.T) {
	th := DefaultBehaviorThresholds()
	m := SomaticMarker{Stress: 0.75, Energy: 0.8}
	if !m.NeedsAttentionWith(th) {
		t.Error("stress above default attention threshold should need attention")
	}
}

func TestCustomThresholdsChangeBehavior(t *testing.T) {
	m := SomaticMarker{Stress: 0.5, Energy: 0.8}
	lenient := DefaultBehaviorThresholds()
	lenient.AttentionStress = 0.9
	strict := DefaultBehaviorThresholds()
	strict.AttentionStress = 0.3

	if m.NeedsAttentionWith(lenient) {
		t.Error("stress 0.5 should not trip a 0.9 threshold")
	}
	if !m.NeedsAttentionWith(strict) {
		t.Error("stress 0.5 should trip a 0.3 threshold")
	}
}

func TestNeedsAttention(t *testing.T) {
	calm := SomaticMarker{Stress: 0.1, Energy: 0.8, SocialNeed: 0.2}
	if calm.NeedsAttention() {
		t.Error("calm marker should not need attention")
	}

	distressed := SomaticMarker{Stress: 0.9, Energy: 0.5, SocialNeed: 0.2}
	if !distressed.NeedsAttention() {
		t.Error("high-stress marker should need attention")
	}
}

func TestProactivityUrgencyGatedByEnergy(t *testing.T) {
	lowEnergy := SomaticMarker{SocialNeed: 0.9, Curiosity: 0.9, Energy: 0.0, Stress: 0.0}
	highEnergy := SomaticMarker{SocialNeed: 0.9, Curiosity: 0.9, Energy: 1.0, Stress: 0.0}

	if lowEnergy.ProactivityUrgency() >= highEnergy.ProactivityUrgency() {
		t.Error("low energy should gate proactivity urgency below high energy")
	}
}

func TestApplyClampsToSafeEnvelope(t *testing.T) {
	v := ModulationVector{TemperatureDelta: 5.0, TopPDelta: -5.0, MaxTokensFactor: 0.01}
	temp, topP, maxTokens := v.Apply(0.7, 0.9, 100)

	if temp < 0.1 || temp > 1.5 {
		t.Errorf("temp = %v, want clamped to [0.1, 1.5]", temp)
	}
	if topP < 0.05 || topP > 1.0 {
		t.Errorf("topP = %v, want clamped to [0.05, 1.0]", topP)
	}
	if maxTokens < 64 {
		t.Errorf("maxTokens = %v, want >= 64 floor", maxTokens)
	}
}
