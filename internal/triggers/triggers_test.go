package triggers

import (
	"testing"
	"time"

	"github.com/vthunder/mneme/internal/state"
)

func noonTuesday() time.Time {
	return time.Date(2026, time.August, 4, 12, 0, 0, 0, time.UTC)
}

func newTestEvaluator() *Evaluator {
	s := state.New()
	return NewEvaluator(nil, s, nil, DefaultPresenceSchedule())
}

func TestEvaluateNoTriggersAtBaseline(t *testing.T) {
	e := newTestEvaluator()
	if _, ok := e.Evaluate(noonTuesday(), nil); ok {
		t.Error("expected no admissible candidate at homeostatic baseline")
	}
}

func TestEvaluateBoredomTriggersMindWandering(t *testing.T) {
	e := newTestEvaluator()
	e.State.Fast.Boredom = 0.8

	ev, ok := e.Evaluate(noonTuesday(), nil)
	if !ok {
		t.Fatal("expected a state-driven candidate to fire")
	}
	if ev.Speaker != "trigger:state_driven" {
		t.Errorf("unexpected speaker tag: %q", ev.Speaker)
	}
}

func TestEvaluateRespectsCooldown(t *testing.T) {
	e := newTestEvaluator()
	e.State.Fast.Boredom = 0.8
	now := noonTuesday()

	if _, ok := e.Evaluate(now, nil); !ok {
		t.Fatal("expected first evaluation to fire")
	}
	if _, ok := e.Evaluate(now.Add(time.Minute), nil); ok {
		t.Error("expected the same candidate to be suppressed within its cooldown window")
	}
	if _, ok := e.Evaluate(now.Add(11*time.Minute), nil); !ok {
		t.Error("expected the candidate to fire again once its cooldown has expired")
	}
}

func TestEvaluateSuppressedOutsidePresenceWindow(t *testing.T) {
	e := newTestEvaluator()
	e.State.Fast.Boredom = 0.9
	threeAM := time.Date(2026, time.August, 4, 3, 0, 0, 0, time.UTC)

	if _, ok := e.Evaluate(threeAM, nil); ok {
		t.Error("expected the presence schedule to suppress every candidate overnight")
	}
}

func TestEvaluateSuppressedBelowEnergyFloor(t *testing.T) {
	e := newTestEvaluator()
	e.State.Fast.Boredom = 0.9
	e.State.Fast.Energy = 0.1

	if _, ok := e.Evaluate(noonTuesday(), nil); ok {
		t.Error("expected low energy to suppress every candidate")
	}
}

func TestEvaluateContentMatch(t *testing.T) {
	e := newTestEvaluator()
	e.State.Fast.CuriosityVector.TagInterest("sourdough", 0.9)

	ev, ok := e.Evaluate(noonTuesday(), []string{"saw a great sourdough recipe today"})
	if !ok {
		t.Fatal("expected a content-match candidate to fire")
	}
	if ev.Speaker != "trigger:content_match" {
		t.Errorf("expected a content_match trigger, got %q", ev.Speaker)
	}
}
