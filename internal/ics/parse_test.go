package ics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleCal = strings.ReplaceAll(`BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//ADE/version 6.0
CALSCALE:GREGORIAN
BEGIN:VEVENT
UID:ADE1
DTSTAMP:20210901T120000Z
DTSTART:20210917T111500Z
DTEND:20210917T124500Z
SUMMARY:HAX301X
LOCATION:Amphi 5.02
DESCRIPTION:L2 CUPGE\nAlgebre III
CREATED:20210801T080000Z
LAST-MODIFIED:20210902T080000Z
URL:https://example.com/event/1
END:VEVENT
BEGIN:VEVENT
UID:ADE2
DTSTAMP:20210901T120000Z
DTSTART;TZID=Europe/Paris:20210920T080000
DTEND;TZID=Europe/Paris:20210920T100000
SUMMARY:HAI507I - cours
END:VEVENT
BEGIN:VEVENT
UID:ADE3
DTSTAMP:20210901T120000Z
DTSTART;VALUE=DATE:20210921
SUMMARY:Journee portes ouvertes
END:VEVENT
BEGIN:VEVENT
UID:ADE4
DTSTAMP:20210901T120000Z
DTSTART:20210922T140000
DURATION:PT1H30M
SUMMARY:Floating
END:VEVENT
BEGIN:VEVENT
UID:ADE5
DTSTAMP:20210901T120000Z
DTSTART:20210923T140000Z
SUMMARY:Instant
END:VEVENT
END:VCALENDAR
`, "\n", "\r\n")

func TestParse(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	events, err := Parse([]byte(sampleCal), paris)
	require.NoError(t, err)
	require.Len(t, events, 5)

	first := events[0]
	assert.Empty(t, first.ID)
	assert.Equal(t, "HAX301X", first.Title)
	assert.Equal(t, "Amphi 5.02", first.Location)
	assert.Contains(t, first.Description, "L2 CUPGE")
	assert.Equal(t, "https://example.com/event/1", first.HTMLLink)
	assert.True(t, first.Start.Equal(time.Date(2021, 9, 17, 11, 15, 0, 0, time.UTC)))
	assert.True(t, first.End.Equal(time.Date(2021, 9, 17, 12, 45, 0, 0, time.UTC)))
	assert.True(t, first.Created.Equal(time.Date(2021, 8, 1, 8, 0, 0, 0, time.UTC)))
	assert.True(t, first.Updated.Equal(time.Date(2021, 9, 2, 8, 0, 0, 0, time.UTC)))
	assert.False(t, first.AllDay)

	zoned := events[1]
	assert.True(t, zoned.Start.Equal(time.Date(2021, 9, 20, 6, 0, 0, 0, time.UTC)), zoned.Start)
	assert.True(t, zoned.End.Equal(time.Date(2021, 9, 20, 8, 0, 0, 0, time.UTC)), zoned.End)

	allDay := events[2]
	assert.True(t, allDay.AllDay)
	assert.True(t, allDay.Start.Equal(time.Date(2021, 9, 21, 0, 0, 0, 0, paris)))
	assert.Equal(t, 24*time.Hour, allDay.End.Sub(allDay.Start))

	floating := events[3]
	assert.True(t, floating.Start.Equal(time.Date(2021, 9, 22, 14, 0, 0, 0, paris)))
	assert.Equal(t, 90*time.Minute, floating.End.Sub(floating.Start))

	instant := events[4]
	assert.True(t, instant.End.Equal(instant.Start))
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(nil, time.UTC)
	assert.Error(t, err)

	bad := strings.ReplaceAll(sampleCal, "DTSTART:20210917T111500Z", "DTSTART:tomorrow")
	_, err = Parse([]byte(bad), time.UTC)
	assert.ErrorContains(t, err, "DTSTART")
}

func TestParseDuration(t *testing.T) {
	testCases := []struct {
		in   string
		want time.Duration
	}{
		{"PT1H30M", 90 * time.Minute},
		{"P1D", 24 * time.Hour},
		{"P2W", 14 * 24 * time.Hour},
		{"P1DT2H", 26 * time.Hour},
		{"-PT15M", -15 * time.Minute},
		{"PT45S", 45 * time.Second},
	}
	for _, tc := range testCases {
		got, err := parseDuration(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
	}

	for _, in := range []string{"", "P", "1H", "PT1D", "P1H", "PT5"} {
		_, err := parseDuration(in)
		assert.Error(t, err, in)
	}
}

func TestFeed_Events(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		w.Write([]byte(sampleCal))
	}))
	defer srv.Close()

	feed := NewFeed(srv.URL+"/cal.ics", time.UTC, newFetcher())
	events, err := feed.Events(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 5)
	assert.NotContains(t, feed.String(), "cal.ics")
}
