package ics

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const tinyCal = "BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//test//EN\r\nEND:VCALENDAR\r\n"

// memCache is an in-memory Cache storing JSON like the bbolt store does.
type memCache map[string][]byte

func (m memCache) Get(key string, v any) (bool, error) {
	b, ok := m[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, v)
}

func (m memCache) Put(key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m[key] = b
	return nil
}

func newFetcher(opts ...Option) *Fetcher {
	return NewFetcher(append([]Option{WithRetry(DefaultRetries, 0)}, opts...)...)
}

func TestFetch_OK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
		w.Write([]byte(tinyCal))
	}))
	defer srv.Close()

	res, err := newFetcher().Fetch(context.Background(), srv.URL+"/cal.ics?token=secret")
	require.NoError(t, err)
	assert.Equal(t, tinyCal, string(res.Body))
	assert.False(t, res.FromCache)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(tinyCal))
	}))
	defer srv.Close()

	res, err := newFetcher().Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, tinyCal, string(res.Body))
	assert.EqualValues(t, 3, calls.Load())
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := newFetcher().Fetch(context.Background(), srv.URL)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.EqualValues(t, DefaultRetries+1, calls.Load())
}

func TestFetch_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newFetcher().Fetch(context.Background(), srv.URL+"/private/token.ics")
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusNotFound, se.StatusCode)
	assert.NotContains(t, err.Error(), "token.ics")
	assert.EqualValues(t, 1, calls.Load())
}

func TestFetch_HTMLMeansUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>Maintenance</body></html>"))
	}))
	defer srv.Close()

	_, err := newFetcher().Fetch(context.Background(), srv.URL)
	assert.ErrorIs(t, err, ErrFeedUnavailable)
}

func TestFetch_NoConnectivity(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := newFetcher().Fetch(context.Background(), url)
	assert.ErrorIs(t, err, ErrNoConnectivity)
}

func TestFetch_InvalidURLSendsNothing(t *testing.T) {
	_, err := newFetcher().Fetch(context.Background(), "not a url")
	assert.ErrorIs(t, err, ErrInvalidURL)
}

func TestFetch_ConditionalRequests(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("If-None-Match") == `"v1"` {
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(tinyCal))
	}))
	defer srv.Close()

	cache := memCache{}
	f := newFetcher(WithCache(cache))

	first, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Len(t, cache, 1)

	second, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 2, calls.Load())
}

func TestFetch_ErrorsNeverFallBackToCache(t *testing.T) {
	fail := atomic.Bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("ETag", `"v1"`)
		w.Write([]byte(tinyCal))
	}))
	defer srv.Close()

	f := newFetcher(WithCache(memCache{}))
	_, err := f.Fetch(context.Background(), srv.URL)
	require.NoError(t, err)

	fail.Store(true)
	_, err = f.Fetch(context.Background(), srv.URL)
	var se *StatusError
	assert.ErrorAs(t, err, &se)
}

func TestValidateURL(t *testing.T) {
	valid := []string{
		"https://proseconsult.umontpellier.fr/jsp/custom/modules/plannings/direct_cal.jsp?data=abc",
		"http://localhost:8000/cal.ics",
		"http://127.0.0.1",
		"ftp://files.example.org/cal.ics",
		"HTTPS://EXAMPLE.COM/",
	}
	for _, u := range valid {
		assert.NoError(t, ValidateURL(u), u)
	}

	invalid := []string{
		"",
		"not a url",
		"file:///etc/passwd",
		"webcal://example.com/cal.ics",
		"https://",
		"https://example.com/with space",
	}
	for _, u := range invalid {
		assert.ErrorIs(t, ValidateURL(u), ErrInvalidURL, u)
	}
}

func TestRedactURL(t *testing.T) {
	assert.Equal(t, "https://example.com/...(redacted)", redactURL("https://example.com/private/abc.ics?token=1"))
	assert.Equal(t, "ics://...(redacted)", redactURL("garbage"))
}
