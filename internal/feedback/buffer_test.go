package feedback

import (
	"path/filepath"
	"testing"

	"github.com/vthunder/mneme/internal/memory"
)

func openTestBuffer(t *testing.T) *Buffer {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "mneme.db")
	store, err := memory.Open(dbPath, nil, 0.05)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return New(store)
}

func TestUncertaintyDiscounting(t *testing.T) {
	b := openTestBuffer(t)

	if err := b.AddSignal(SelfReflection, "", "I think I was wrong", 0.3, 0.0); err != nil {
		t.Fatalf("add low-confidence signal: %v", err)
	}
	count, err := b.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0 (low-confidence signal should be discounted)", count)
	}

	if err := b.AddSignal(SelfReflection, "", "I am certain I was wrong", 0.8, 0.0); err != nil {
		t.Fatalf("add high-confidence signal: %v", err)
	}
	count, err = b.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 1 {
		t.Errorf("pending = %d, want 1", count)
	}
}

func TestTemporalSmoothing(t *testing.T) {
	b := openTestBuffer(t)

	for i := 0; i < 2; i++ {
		if err := b.AddSignal(UserEmotionalFeedback, "", "User seemed happy", 0.8, 0.5); err != nil {
			t.Fatalf("add signal: %v", err)
		}
	}

	patterns, err := b.Consolidate()
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(patterns) != 0 {
		t.Errorf("len(patterns) = %d, want 0 (below pattern threshold)", len(patterns))
	}

	for i := 0; i < 3; i++ {
		if err := b.AddSignal(UserEmotionalFeedback, "", "User seemed happy again", 0.9, 0.6); err != nil {
			t.Fatalf("add signal: %v", err)
		}
	}

	patterns, err = b.Consolidate()
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("len(patterns) = %d, want 1", len(patterns))
	}
	if patterns[0].Count != 3 {
		t.Errorf("count = %d, want 3", patterns[0].Count)
	}
}

func TestConsolidateDrainsAllPendingEvenBelowThreshold(t *testing.T) {
	b := openTestBuffer(t)

	if err := b.AddSignal(SelfReflection, "", "a one-off thought", 0.9, 0.0); err != nil {
		t.Fatalf("add signal: %v", err)
	}
	if _, err := b.Consolidate(); err != nil {
		t.Fatalf("consolidate: %v", err)
	}

	count, err := b.PendingCount()
	if err != nil {
		t.Fatalf("pending count: %v", err)
	}
	if count != 0 {
		t.Errorf("pending = %d, want 0 after consolidation drains a below-threshold signal", count)
	}
}

func TestValueJudgmentRoundTripsItsValue(t *testing.T) {
	b := openTestBuffer(t)

	for i := 0; i < 3; i++ {
		if err := b.AddSignal(ValueJudgment, "honesty", "told the truth even though it was hard", 0.85, 0.4); err != nil {
			t.Fatalf("add signal: %v", err)
		}
	}

	patterns, err := b.Consolidate()
	if err != nil {
		t.Fatalf("consolidate: %v", err)
	}
	if len(patterns) != 1 {
		t.Fatalf("len(patterns) = %d, want 1", len(patterns))
	}
	if patterns[0].Value != "honesty" {
		t.Errorf("value = %q, want %q", patterns[0].Value, "honesty")
	}
}

func TestComputeStateUpdatesPositiveFeedbackReducesAnxiety(t *testing.T) {
	patterns := []ConsolidatedPattern{{
		SignalType:    UserEmotionalFeedback,
		Count:         5,
		AvgConfidence: 0.8,
		AvgValence:    0.6,
	}}

	updates := ComputeStateUpdates(patterns)
	if updates.AttachmentAnxietyDelta >= 0 {
		t.Errorf("attachment_anxiety_delta = %v, want < 0 for positive feedback", updates.AttachmentAnxietyDelta)
	}
}

func TestComputeStateUpdatesNegativeFeedbackRaisesAnxiety(t *testing.T) {
	patterns := []ConsolidatedPattern{{
		SignalType:    UserEmotionalFeedback,
		Count:         5,
		AvgConfidence: 0.8,
		AvgValence:    -0.6,
	}}

	updates := ComputeStateUpdates(patterns)
	if updates.AttachmentAnxietyDelta <= 0 {
		t.Errorf("attachment_anxiety_delta = %v, want > 0 for negative feedback", updates.AttachmentAnxietyDelta)
	}
}

func TestComputeStateUpdatesPredictionErrorRaisesCuriosity(t *testing.T) {
	patterns := []ConsolidatedPattern{{
		SignalType:    PredictionError,
		Count:         4,
		AvgConfidence: 0.7,
	}}

	updates := ComputeStateUpdates(patterns)
	if updates.CuriosityDelta <= 0 {
		t.Errorf("curiosity_delta = %v, want > 0 after prediction-error patterns", updates.CuriosityDelta)
	}
}

func TestComputeStateUpdatesValueJudgmentReinforcesNamedValue(t *testing.T) {
	patterns := []ConsolidatedPattern{{
		SignalType:    ValueJudgment,
		Value:         "curiosity",
		Count:         3,
		AvgConfidence: 0.9,
	}}

	updates := ComputeStateUpdates(patterns)
	if len(updates.ValueReinforcements) != 1 {
		t.Fatalf("len(value_reinforcements) = %d, want 1", len(updates.ValueReinforcements))
	}
	if updates.ValueReinforcements[0].Value != "curiosity" {
		t.Errorf("reinforced value = %q, want %q", updates.ValueReinforcements[0].Value, "curiosity")
	}
	if updates.ValueReinforcements[0].Delta <= 0 {
		t.Errorf("reinforcement delta = %v, want > 0", updates.ValueReinforcements[0].Delta)
	}
}

func TestStateUpdatesIsEmpty(t *testing.T) {
	var u StateUpdates
	if !u.IsEmpty() {
		t.Error("zero-value StateUpdates should be empty")
	}

	u.OpennessDelta = 0.05
	if u.IsEmpty() {
		t.Error("a non-trivial delta should not be empty")
	}
}
