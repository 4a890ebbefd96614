package ics

import (
	"fmt"
	"net/url"
	"regexp"
)

var feedURLPattern = regexp.MustCompile(`(?i)^(?:http|ftp)s?://` +
	`(?:(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+(?:[A-Z]{2,6}\.?|[A-Z0-9-]{2,}\.?)|` +
	`localhost|` +
	`\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})` +
	`(?::\d+)?` +
	`(?:/?|[/?]\S+)$`)

// ValidateURL accepts http(s) and ftp(s) URLs whose host is a domain name,
// localhost or an IPv4 address, with an optional port.
func ValidateURL(raw string) error {
	if !feedURLPattern.MatchString(raw) {
		return fmt.Errorf("%w: %s", ErrInvalidURL, redactURL(raw))
	}
	return nil
}

// redactURL keeps only scheme and host so that private feed tokens found in
// paths or query strings never reach the logs.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "ics://...(redacted)"
	}
	return u.Scheme + "://" + u.Host + "/...(redacted)"
}
