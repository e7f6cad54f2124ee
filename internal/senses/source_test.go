package senses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vthunder/mneme/internal/reasoning"
)

type fakeSource struct {
	name   string
	events []reasoning.Event
	err    error
}

func (f *fakeSource) Name() string                                          { return f.name }
func (f *fakeSource) PollInterval() time.Duration                           { return time.Minute }
func (f *fakeSource) Fetch(ctx context.Context) ([]reasoning.Event, error)  { return f.events, f.err }
func (f *fakeSource) HealthCheck(ctx context.Context) error                 { return nil }

func TestNewRSSSourceRejectsNonHTTPScheme(t *testing.T) {
	if _, err := NewRSSSource("ftp://example.com/feed.xml", "bad"); err == nil {
		t.Error("expected a non-http(s) scheme to be rejected")
	}
}

func TestNewRSSSourceAcceptsHTTPS(t *testing.T) {
	s, err := NewRSSSource("https://example.com/feed.xml", "example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if s.Name() != "rss:example" {
		t.Errorf("expected name rss:example, got %q", s.Name())
	}
	if s.PollInterval() != time.Hour {
		t.Errorf("expected the default hourly poll interval, got %v", s.PollInterval())
	}
}

func TestRSSSourceFetchReturnsNoItems(t *testing.T) {
	s, err := NewRSSSource("https://example.com/feed.xml", "example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	events, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 0 {
		t.Errorf("expected the stub source to return no events, got %d", len(events))
	}
}

func TestSourceManagerCollectAllAggregatesAcrossSources(t *testing.T) {
	m := NewSourceManager()
	m.Add(&fakeSource{name: "a", events: []reasoning.Event{{Content: "from a"}}})
	m.Add(&fakeSource{name: "b", events: []reasoning.Event{{Content: "from b"}, {Content: "from b 2"}}})

	events := m.CollectAll(context.Background())
	if len(events) != 3 {
		t.Fatalf("expected 3 aggregated events, got %d", len(events))
	}
}

func TestSourceManagerCollectAllSkipsFailingSources(t *testing.T) {
	m := NewSourceManager()
	m.Add(&fakeSource{name: "broken", err: errors.New("network down")})
	m.Add(&fakeSource{name: "fine", events: []reasoning.Event{{Content: "ok"}}})

	events := m.CollectAll(context.Background())
	if len(events) != 1 || events[0].Content != "ok" {
		t.Fatalf("expected the broken source's error to be skipped, got %+v", events)
	}
}
