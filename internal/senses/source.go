package senses

import (
	"context"
	"sync"
	"time"

	"github.com/vthunder/mneme/internal/logging"
	"github.com/vthunder/mneme/internal/reasoning"
)

// Source is a pollable perception source, grounded on
// mneme_perception::source::Source. Discord is push-based and implements
// reasoning.Event delivery directly (DiscordSense.onEvent); Source is for
// anything a scheduler has to go fetch instead.
type Source interface {
	// Name identifies the source for logging (e.g. "rss:techcrunch").
	Name() string
	// PollInterval is how often the scheduler should call Fetch. Zero
	// means manual-trigger only.
	PollInterval() time.Duration
	// Fetch returns whatever reasoning.Event{Kind: EventSourceUpdate}
	// values are new since the last call.
	Fetch(ctx context.Context) ([]reasoning.Event, error)
	// HealthCheck reports whether the source is currently reachable,
	// independent of whether it has new content.
	HealthCheck(ctx context.Context) error
}

// SourceManager polls every registered Source and aggregates whatever
// they produce, grounded on mneme_perception::source::SourceManager.
type SourceManager struct {
	mu      sync.Mutex
	sources []Source
}

// NewSourceManager returns an empty SourceManager.
func NewSourceManager() *SourceManager {
	return &SourceManager{}
}

// Add registers a source.
func (m *SourceManager) Add(s Source) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sources = append(m.sources, s)
}

// CollectAll fetches every registered source, logging (not failing) on a
// per-source error so one broken feed doesn't block the others.
func (m *SourceManager) CollectAll(ctx context.Context) []reasoning.Event {
	m.mu.Lock()
	sources := make([]Source, len(m.sources))
	copy(sources, m.sources)
	m.mu.Unlock()

	var all []reasoning.Event
	for _, s := range sources {
		events, err := s.Fetch(ctx)
		if err != nil {
			logging.Warn("senses", "fetch from source %s failed: %v", s.Name(), err)
			continue
		}
		all = append(all, events...)
	}
	return all
}
