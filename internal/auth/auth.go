// Package auth builds OAuth2 clients for the Google Calendar API and keeps
// one token per mirror.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"

	appLog "kal/internal/log"
)

// ErrNoToken is returned when a mirror has never been authorized.
var ErrNoToken = errors.New("mirror is not authorized; run `kal auth <mirror>`")

// TokenStore persists tokens by mirror name. A *store.Bucket satisfies it.
type TokenStore interface {
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
}

// Authorizer holds the OAuth2 client configuration.
type Authorizer struct {
	conf   *oauth2.Config
	tokens TokenStore
}

// New parses a Google OAuth client JSON (installed or web application).
func New(credentialsJSON []byte, tokens TokenStore) (*Authorizer, error) {
	conf, err := google.ConfigFromJSON(credentialsJSON, calendar.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("parse oauth client credentials: %w", err)
	}
	return &Authorizer{conf: conf, tokens: tokens}, nil
}

// Load reads the client credentials file at path.
func Load(path string, tokens TokenStore) (*Authorizer, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read oauth client credentials: %w", err)
	}
	return New(b, tokens)
}

// AuthURL is the consent page URL. Offline access is requested so that a
// refresh token is issued.
func (a *Authorizer) AuthURL(state, redirectURL string) string {
	conf := *a.conf
	conf.RedirectURL = redirectURL
	return conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for a token and stores it for mirror.
func (a *Authorizer) Exchange(ctx context.Context, mirror, code, redirectURL string) error {
	conf := *a.conf
	conf.RedirectURL = redirectURL
	tok, err := conf.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("exchange authorization code: %w", err)
	}
	if err := a.tokens.Put(mirror, tok); err != nil {
		return fmt.Errorf("save token for %q: %w", mirror, err)
	}
	appLog.Info("mirror authorized", "mirror", mirror)
	return nil
}

// Token returns the stored token of mirror.
func (a *Authorizer) Token(mirror string) (*oauth2.Token, error) {
	var tok oauth2.Token
	ok, err := a.tokens.Get(mirror, &tok)
	if err != nil {
		return nil, fmt.Errorf("load token for %q: %w", mirror, err)
	}
	if !ok {
		return nil, fmt.Errorf("%q: %w", mirror, ErrNoToken)
	}
	return &tok, nil
}

// Client returns an HTTP client authorized as mirror. Refreshed tokens are
// written back to the store.
func (a *Authorizer) Client(ctx context.Context, mirror string) (*http.Client, error) {
	tok, err := a.Token(mirror)
	if err != nil {
		return nil, err
	}
	src := &persistingSource{
		mirror: mirror,
		base:   a.conf.TokenSource(ctx, tok),
		tokens: a.tokens,
		last:   tok.AccessToken,
	}
	return oauth2.NewClient(ctx, oauth2.ReuseTokenSource(tok, src)), nil
}

type persistingSource struct {
	mirror string
	base   oauth2.TokenSource
	tokens TokenStore

	mu   sync.Mutex
	last string
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tok.AccessToken != s.last {
		if err := s.tokens.Put(s.mirror, tok); err != nil {
			appLog.Error("token save failed", err, "mirror", s.mirror)
		} else {
			appLog.Debug("token refreshed", "mirror", s.mirror)
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
