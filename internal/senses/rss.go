package senses

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/vthunder/mneme/internal/reasoning"
)

// RSSSource satisfies the Source contract for an RSS feed without
// implementing feed parsing (out of scope — exact wire protocols and
// content parsing are a Non-goal). It validates the feed URL and answers
// health checks for real; Fetch always returns no items, documented
// rather than silently faked. Grounded on
// mneme_perception::rss::RssSource's URL-scheme validation and default
// hourly interval.
type RSSSource struct {
	url    string
	name   string
	client *http.Client
}

// NewRSSSource validates feedURL (http/https only, mirroring RssSource::new)
// and returns a stub source for it.
func NewRSSSource(feedURL, name string) (*RSSSource, error) {
	parsed, err := url.Parse(feedURL)
	if err != nil {
		return nil, fmt.Errorf("rss: invalid url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return nil, fmt.Errorf("rss: only http/https schemes are allowed, got %q", parsed.Scheme)
	}
	return &RSSSource{
		url:    feedURL,
		name:   name,
		client: &http.Client{Timeout: 10 * time.Second},
	}, nil
}

// Name identifies the source, matching RssSource::name's "rss:<name>"
// convention.
func (r *RSSSource) Name() string { return "rss:" + r.name }

// PollInterval mirrors RssSource::interval's default of one hour.
func (r *RSSSource) PollInterval() time.Duration { return time.Hour }

// Fetch is intentionally unimplemented: feed parsing is out of scope, so
// this returns no events rather than a fabricated parse of the feed body.
func (r *RSSSource) Fetch(ctx context.Context) ([]reasoning.Event, error) {
	return nil, nil
}

// HealthCheck performs a real HTTP GET against the feed URL so operators
// can tell a misconfigured/unreachable feed from a quiet one, even though
// Fetch never parses the response body.
func (r *RSSSource) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url, nil)
	if err != nil {
		return fmt.Errorf("rss: build health check request: %w", err)
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("rss: health check request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("rss: health check got status %d", resp.StatusCode)
	}
	return nil
}
