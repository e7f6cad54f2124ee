package effectors

import (
	"math/rand"
	"strings"

	"github.com/vthunder/mneme/internal/config"
	"github.com/vthunder/mneme/internal/state"
)

// Pacer turns a reasoning.Output's text into a sequence of human-paced
// sends: a read delay before the organism "notices" an incoming stimulus,
// a response split into IM-sized chunks, and a per-chunk typing delay
// modulated by the organism's current affect. Grounded on
// mneme_expression::Humanizer, adapted from that type's fixed
// read_speed_cpm/typing_speed_cpm/max_chunk_chars constants onto
// config.Expression's configurable ranges.
type Pacer struct {
	readDelayRangeSecs  [2]float64
	typingSpeedRangeCPS [2]float64
	maxChunkChars       int
}

// NewPacer builds a Pacer from the expression-layer pacing config,
// falling back to Humanizer's own defaults when a field is unset.
func NewPacer(cfg config.Expression) *Pacer {
	p := &Pacer{
		readDelayRangeSecs:  cfg.ReadDelayRangeSecs,
		typingSpeedRangeCPS: cfg.TypingSpeedRangeCPS,
		maxChunkChars:       60,
	}
	if p.readDelayRangeSecs[1] <= 0 {
		p.readDelayRangeSecs = [2]float64{0.4, 1.6}
	}
	if p.typingSpeedRangeCPS[1] <= 0 {
		p.typingSpeedRangeCPS = [2]float64{3.5, 6.5} // ~210-390 cpm
	}
	if len(cfg.SplitThresholds) > 0 && cfg.SplitThresholds[0] > 0 {
		p.maxChunkChars = cfg.SplitThresholds[0]
	}
	return p
}

func randRange(lo, hi float64) float64 {
	if hi <= lo {
		return lo
	}
	return lo + rand.Float64()*(hi-lo)
}

// ReadDelay estimates how long the organism takes to "notice" content
// before acting on it: a base skim delay sampled from the configured
// range, lightly scaled by length, jittered +/-20% per
// Humanizer::read_delay.
func (p *Pacer) ReadDelay(content string) float64 {
	base := randRange(p.readDelayRangeSecs[0], p.readDelayRangeSecs[1])
	chars := float64(len([]rune(content)))
	secs := base + chars*0.01
	return secs * randRange(0.8, 1.2)
}

// typingSpeedMultiplier maps an Affect label onto Humanizer::typing_delay's
// emotion -> (speed_mult, jitter_range) table.
func typingSpeedMultiplier(affect string) (mult, jitterLo, jitterHi float64) {
	switch affect {
	case "excited":
		return 1.3, 0.8, 1.2
	case "agitated":
		return 2.0, 0.5, 1.5
	case "down", "content":
		return 0.7, 0.9, 1.1
	case "alert":
		return 1.0, 0.8, 1.5
	default:
		return 1.0, 0.8, 1.2
	}
}

// TypingDelay estimates how long the organism takes to type response,
// faster when excited, slower when down, erratic when agitated, per
// Humanizer::typing_delay.
func (p *Pacer) TypingDelay(response string, affect state.Affect) float64 {
	mult, jitterLo, jitterHi := typingSpeedMultiplier(affect.Describe())
	cps := randRange(p.typingSpeedRangeCPS[0], p.typingSpeedRangeCPS[1]) * mult
	if cps <= 0 {
		cps = 1
	}
	chars := float64(len([]rune(response)))
	secs := 0.5 + chars/cps
	return secs * randRange(jitterLo, jitterHi)
}

var sentenceEnders = []rune{'.', '!', '?', '。', '！', '？'}

// Split breaks text into chunks no longer than maxChunkChars, splitting on
// blank/newline breaks first and falling back to sentence boundaries for
// any chunk that's still too long, per Humanizer::split_response.
func (p *Pacer) Split(text string) []string {
	var parts []string
	var current strings.Builder

	flush := func() {
		if current.Len() == 0 {
			return
		}
		part := current.String()
		if len([]rune(part)) > p.maxChunkChars {
			parts = append(parts, p.splitAtSentences(part)...)
		} else {
			parts = append(parts, part)
		}
		current.Reset()
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		currentChars := len([]rune(current.String()))
		lineChars := len([]rune(line))
		if current.Len() > 0 && currentChars+lineChars > p.maxChunkChars {
			flush()
			current.WriteString(line)
		} else {
			if current.Len() > 0 {
				current.WriteByte('\n')
			}
			current.WriteString(line)
		}
	}
	flush()
	return parts
}

// splitAtSentences splits text at sentence-ending punctuation once the
// accumulated chunk exceeds maxChunkChars/2, per
// Humanizer::split_at_sentences.
func (p *Pacer) splitAtSentences(text string) []string {
	targetSplit := p.maxChunkChars / 2

	var result []string
	var current strings.Builder
	count := 0

	isEnder := func(r rune) bool {
		for _, e := range sentenceEnders {
			if r == e {
				return true
			}
		}
		return false
	}

	for _, r := range text {
		current.WriteRune(r)
		count++
		if isEnder(r) && count > targetSplit {
			if s := strings.TrimSpace(current.String()); s != "" {
				result = append(result, s)
			}
			current.Reset()
			count = 0
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}
