// Package feedback implements the Feedback Buffer (spec.md §4.6): the guard
// that keeps System 2's occasional hallucinations from directly corrupting
// medium/slow-tier state. Every signal passes an uncertainty discount at
// intake and a temporal-smoothing pattern check at consolidation time;
// only patterns repeated enough times ever reach the Organism Core, and
// only during an offline consolidation pass, never live.
package feedback

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vthunder/mneme/internal/memory"
)

// SignalType classifies what a feedback signal is about, mirroring the
// categories the Reasoning Loop and Consolidation both need to agree on.
type SignalType string

const (
	UserEmotionalFeedback  SignalType = "user_emotional_feedback"
	SituationInterpretation SignalType = "situation_interpretation"
	ValueJudgment          SignalType = "value_judgment"
	SelfReflection         SignalType = "self_reflection"
	PredictionError        SignalType = "prediction_error"
)

const signalTypeValueSep = ":"

// encodeSignalType flattens a (type, value) pair into the single string
// column memory.FeedbackRecord persists. Only ValueJudgment carries a
// value; every other type ignores it.
func encodeSignalType(t SignalType, value string) string {
	if t == ValueJudgment && value != "" {
		return string(t) + signalTypeValueSep + value
	}
	return string(t)
}

func decodeSignalType(encoded string) (SignalType, string) {
	if t, v, ok := strings.Cut(encoded, signalTypeValueSep); ok {
		return SignalType(t), v
	}
	return SignalType(encoded), ""
}

// Buffer is the live, in-process staging area. It holds no authoritative
// state of its own beyond its thresholds — every signal it accepts is
// durably persisted through Memory immediately (spec.md §4.6 "the buffer
// is persisted so it survives restarts"), so a Buffer can be recreated
// freely without losing pending signals.
type Buffer struct {
	store                *memory.Store
	confidenceThreshold  float64
	patternThreshold     int
}

// New returns a Buffer backed by store, with the default thresholds this
// design's original hardcoded behaviour used.
func New(store *memory.Store) *Buffer {
	return &Buffer{store: store, confidenceThreshold: 0.6, patternThreshold: 3}
}

// WithThresholds overrides the defaults; used when behaviour thresholds are
// promoted to the learnable BehaviorRule table (spec.md §6).
func (b *Buffer) WithThresholds(confidence float64, pattern int) *Buffer {
	b.confidenceThreshold = confidence
	b.patternThreshold = pattern
	return b
}

// AddSignal stages a signal, applying the uncertainty discount immediately:
// a signal below the confidence threshold has no effect at all and is not
// even persisted, matching spec.md §4.6 "low-confidence interpretations
// approach zero influence".
func (b *Buffer) AddSignal(signalType SignalType, value, content string, confidence, emotionalContext float64) error {
	if confidence < b.confidenceThreshold {
		return nil
	}
	rec := memory.FeedbackRecord{
		SignalType:       encodeSignalType(signalType, value),
		Content:          content,
		Confidence:       confidence,
		EmotionalContext: emotionalContext,
		Timestamp:        time.Now(),
	}
	if _, err := b.store.SaveFeedbackSignal(rec); err != nil {
		return fmt.Errorf("feedback: add signal: %w", err)
	}
	return nil
}

// PendingCount reports how many signals are waiting for consolidation.
func (b *Buffer) PendingCount() (int, error) {
	pending, err := b.store.UnconsolidatedFeedback()
	if err != nil {
		return 0, fmt.Errorf("feedback: pending count: %w", err)
	}
	return len(pending), nil
}

// ConsolidatedPattern is an aggregated group of similar signals: the unit
// the Organism Core is actually allowed to react to.
type ConsolidatedPattern struct {
	SignalType            SignalType
	Value                 string // populated only for ValueJudgment
	Count                 int
	AvgConfidence         float64
	AvgValence            float64
	RepresentativeContent string
	FirstSeen             time.Time
	LastSeen              time.Time
}

// Consolidate drains every unconsolidated signal, groups by (signal type,
// value), and keeps only groups that clear the pattern threshold — the
// temporal-smoothing guard (spec.md §4.6 "reinforced by k comparable
// signals within a window"). All drained signals are marked consolidated
// regardless of whether their group produced a pattern, so a rare,
// never-repeated signal does not linger forever.
func (b *Buffer) Consolidate() ([]ConsolidatedPattern, error) {
	pending, err := b.store.UnconsolidatedFeedback()
	if err != nil {
		return nil, fmt.Errorf("feedback: consolidate: %w", err)
	}
	if len(pending) == 0 {
		return nil, nil
	}

	type group struct {
		signalType SignalType
		value      string
		records    []memory.FeedbackRecord
	}
	groups := make(map[string]*group)
	var order []string
	for _, rec := range pending {
		t, v := decodeSignalType(rec.SignalType)
		key := string(t) + signalTypeValueSep + v
		g, ok := groups[key]
		if !ok {
			g = &group{signalType: t, value: v}
			groups[key] = g
			order = append(order, key)
		}
		g.records = append(g.records, rec)
	}

	var patterns []ConsolidatedPattern
	for _, key := range order {
		g := groups[key]
		if len(g.records) < b.patternThreshold {
			continue
		}
		patterns = append(patterns, aggregateGroup(g.signalType, g.value, g.records))
	}

	ids := make([]string, len(pending))
	for i, rec := range pending {
		ids[i] = rec.ID
	}
	if err := b.store.MarkFeedbackConsolidated(ids); err != nil {
		return nil, fmt.Errorf("feedback: mark consolidated: %w", err)
	}

	return patterns, nil
}

func aggregateGroup(signalType SignalType, value string, records []memory.FeedbackRecord) ConsolidatedPattern {
	var confSum, valenceSum float64
	representative := records[0]
	firstSeen, lastSeen := records[0].Timestamp, records[0].Timestamp
	for _, r := range records {
		confSum += r.Confidence
		valenceSum += r.EmotionalContext
		if r.Confidence > representative.Confidence {
			representative = r
		}
		if r.Timestamp.Before(firstSeen) {
			firstSeen = r.Timestamp
		}
		if r.Timestamp.After(lastSeen) {
			lastSeen = r.Timestamp
		}
	}
	n := float64(len(records))
	return ConsolidatedPattern{
		SignalType:            signalType,
		Value:                 value,
		Count:                 len(records),
		AvgConfidence:         confSum / n,
		AvgValence:            valenceSum / n,
		RepresentativeContent: representative.Content,
		FirstSeen:             firstSeen,
		LastSeen:              lastSeen,
	}
}

// ValueReinforcement is one core-value weight nudge a pattern produced.
type ValueReinforcement struct {
	Value string
	Delta float64
}

// StateUpdates are the deltas Consolidation applies to medium/slow state
// after grading a batch of ConsolidatedPatterns. Nothing here is applied
// directly by the buffer; computing this is a pure function so
// Consolidation can log, cap, and combine it with its own decay logic
// before mutating the Organism Core.
type StateUpdates struct {
	AttachmentAnxietyDelta float64
	OpennessDelta          float64
	CuriosityDelta         float64
	NarrativeBiasDelta     float64
	ValueReinforcements    []ValueReinforcement
}

// IsEmpty reports whether the updates are negligible, letting Consolidation
// skip a slow-tier write entirely when nothing meaningful changed.
func (u StateUpdates) IsEmpty() bool {
	const eps = 0.001
	return absf(u.AttachmentAnxietyDelta) < eps &&
		absf(u.OpennessDelta) < eps &&
		absf(u.CuriosityDelta) < eps &&
		absf(u.NarrativeBiasDelta) < eps &&
		len(u.ValueReinforcements) == 0
}

// ComputeStateUpdates maps consolidated patterns to the state deltas
// Consolidation's second sub-phase applies. Each signal type nudges a
// different part of medium/slow state; the mapping is intentionally small
// and conservative, since these are the only updates allowed to bypass a
// single interaction's immediate influence.
func ComputeStateUpdates(patterns []ConsolidatedPattern) StateUpdates {
	var u StateUpdates
	for _, p := range patterns {
		switch p.SignalType {
		case UserEmotionalFeedback:
			if p.AvgValence > 0.3 {
				u.AttachmentAnxietyDelta -= 0.02 * p.AvgConfidence
			} else if p.AvgValence < -0.3 {
				u.AttachmentAnxietyDelta += 0.03 * p.AvgConfidence
			}
		case ValueJudgment:
			u.ValueReinforcements = append(u.ValueReinforcements, ValueReinforcement{
				Value: p.Value,
				Delta: 0.01 * float64(p.Count) * p.AvgConfidence,
			})
		case SelfReflection:
			if p.AvgValence > 0 {
				u.OpennessDelta += 0.01 * p.AvgConfidence
			}
		case PredictionError:
			u.CuriosityDelta += 0.02 * float64(p.Count) * p.AvgConfidence
		case SituationInterpretation:
			u.NarrativeBiasDelta += p.AvgValence * 0.01 * p.AvgConfidence
		}
	}
	sort.Slice(u.ValueReinforcements, func(i, j int) bool {
		return u.ValueReinforcements[i].Value < u.ValueReinforcements[j].Value
	})
	return u
}

func absf(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
