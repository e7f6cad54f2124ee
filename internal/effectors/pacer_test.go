package effectors

import (
	"testing"

	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/state"
)

func TestSplitRespectsParagraphBreaksFirst(t *testing.T) {
	p := NewPacer(config.Expression{SplitThresholds: []int{100}})
	p1 := "This is the first paragraph. It is reasonably long but not too long."
	p2 := "This is the second paragraph. It is also quite long and when combined with the first one it should definitely exceed the configured limit."

	parts := p.Split(p1 + "\n\n" + p2)
	if len(parts) < 2 {
		t.Fatalf("expected at least 2 parts, got %d: %v", len(parts), parts)
	}
}

func TestSplitFallsBackToSentenceBoundaries(t *testing.T) {
	p := NewPacer(config.Expression{SplitThresholds: []int{60}})
	text := "This is sentence one. This is sentence two. This is sentence three. This is sentence four. And this is sentence five which makes this paragraph quite long indeed."

	parts := p.Split(text)
	if len(parts) < 2 {
		t.Fatalf("expected the long single paragraph to split at sentence boundaries, got %d parts", len(parts))
	}
	for _, part := range parts {
		if len([]rune(part)) > 120 {
			t.Errorf("part exceeds a sane bound: %q", part)
		}
	}
}

func TestSplitDropsBlankLines(t *testing.T) {
	p := NewPacer(config.Expression{})
	parts := p.Split("\n\n   \n")
	if len(parts) != 0 {
		t.Errorf("expected blank input to produce no parts, got %v", parts)
	}
}

func TestReadDelayHasVariation(t *testing.T) {
	p := NewPacer(config.Expression{})
	seen := map[float64]bool{}
	for i := 0; i < 10; i++ {
		seen[p.ReadDelay("test message")] = true
	}
	if len(seen) < 2 {
		t.Error("expected read delay to vary across calls")
	}
}

func TestTypingDelayFasterWhenExcited(t *testing.T) {
	p := NewPacer(config.Expression{TypingSpeedRangeCPS: [2]float64{5, 5}})
	response := "a reasonably long response to type out for comparison purposes here"

	var excitedTotal, downTotal float64
	const trials = 30
	for i := 0; i < trials; i++ {
		excitedTotal += p.TypingDelay(response, state.Affect{Valence: 0.8, Arousal: 0.8})
		downTotal += p.TypingDelay(response, state.Affect{Valence: -0.8, Arousal: 0.1})
	}
	if excitedTotal >= downTotal {
		t.Errorf("expected excited typing to average faster than down typing: excited=%.2f down=%.2f", excitedTotal, downTotal)
	}
}
