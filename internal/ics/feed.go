package ics

import (
	"context"
	"time"

	"kal/internal/model"
)

// Feed is a read-only ICS calendar at a URL.
type Feed struct {
	URL      string
	Location *time.Location
	fetcher  *Fetcher
}

func NewFeed(rawURL string, loc *time.Location, f *Fetcher) *Feed {
	if f == nil {
		f = NewFetcher()
	}
	return &Feed{URL: rawURL, Location: loc, fetcher: f}
}

// Events fetches and parses the whole feed.
func (s *Feed) Events(ctx context.Context) ([]model.Event, error) {
	res, err := s.fetcher.Fetch(ctx, s.URL)
	if err != nil {
		return nil, err
	}
	return Parse(res.Body, s.Location)
}

// String returns the redacted feed URL.
func (s *Feed) String() string {
	return redactURL(s.URL)
}
