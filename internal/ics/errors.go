package ics

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned before any request when a feed URL is malformed.
	ErrInvalidURL = errors.New("invalid feed url")
	// ErrNoConnectivity reports that the feed host could not be reached at all.
	ErrNoConnectivity = errors.New("no connectivity")
	// ErrTransport wraps any other transport failure.
	ErrTransport = errors.New("feed transport error")
	// ErrFeedUnavailable is returned when the feed answers with an HTML page,
	// typically a maintenance notice, instead of a calendar.
	ErrFeedUnavailable = errors.New("calendar feed unavailable")
)

// StatusError is returned when the feed answers with a non-200 status after
// retries are exhausted.
type StatusError struct {
	URL        string // redacted
	StatusCode int
	Status     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("feed %s: unexpected status %s", e.URL, e.Status)
}
