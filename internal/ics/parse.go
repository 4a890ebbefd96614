package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "kal/internal/log"
	"kal/internal/model"
)

// Parse decodes an ICS payload into events, in feed order.
//
// Floating times and all-day dates are read in loc. An event without DTEND
// ends after its DURATION when present, otherwise a day after its start
// when all-day and at its start otherwise. Events never carry a destination
// ID.
func Parse(body []byte, loc *time.Location) ([]model.Event, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	if loc == nil {
		loc = time.UTC
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse ics: %w", err)
	}

	vevents := cal.Events()
	events := make([]model.Event, 0, len(vevents))
	for i, ve := range vevents {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			return nil, fmt.Errorf("vevent #%d: %w", i+1, err)
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (model.Event, error) {
	var out model.Event

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyUrl); p != nil {
		out.HTMLLink = p.Value
	}

	if p := ve.GetProperty(ical.ComponentPropertyCreated); p != nil {
		t, _, err := parseICSTime(p.Value, "", time.UTC)
		if err != nil {
			return out, fmt.Errorf("CREATED: %w", err)
		}
		out.Created = t
	}
	if p := ve.GetProperty(ical.ComponentPropertyLastModified); p != nil {
		t, _, err := parseICSTime(p.Value, "", time.UTC)
		if err != nil {
			return out, fmt.Errorf("LAST-MODIFIED: %w", err)
		}
		out.Updated = t
	}

	// A missing DTSTART is kept as a zero time and rejected downstream.
	if p := ve.GetProperty(ical.ComponentPropertyDtStart); p != nil {
		t, dateOnly, err := parseICSTime(p.Value, param(p, "TZID"), loc)
		if err != nil {
			return out, fmt.Errorf("DTSTART: %w", err)
		}
		out.Start = t
		out.AllDay = dateOnly || strings.EqualFold(param(p, "VALUE"), "DATE")
	}

	switch p := ve.GetProperty(ical.ComponentPropertyDtEnd); {
	case p != nil:
		t, _, err := parseICSTime(p.Value, param(p, "TZID"), loc)
		if err != nil {
			return out, fmt.Errorf("DTEND: %w", err)
		}
		out.End = t
	case out.Start.IsZero():
	default:
		if d := ve.GetProperty(ical.ComponentPropertyDuration); d != nil {
			dur, err := parseDuration(d.Value)
			if err != nil {
				return out, fmt.Errorf("DURATION: %w", err)
			}
			out.End = out.Start.Add(dur)
		} else if out.AllDay {
			out.End = out.Start.AddDate(0, 0, 1)
		} else {
			out.End = out.Start
		}
	}

	return out, nil
}

func param(p *ical.IANAProperty, name string) string {
	if p.ICalParameters == nil {
		return ""
	}
	if vs, ok := p.ICalParameters[name]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// parseICSTime parses an ICS DATE or DATE-TIME value. UTC values end in Z;
// values with a TZID are read in that zone, falling back to loc when the zone
// is unknown; floating values and dates are read in loc. The boolean result
// reports a date-only value.
func parseICSTime(v, tzid string, loc *time.Location) (time.Time, bool, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, false, errors.New("empty time value")
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	}

	if tzid != "" {
		zone, err := time.LoadLocation(tzid)
		if err != nil {
			appLog.Debug("unknown TZID, using default zone", "tzid", tzid, "zone", loc.String())
		} else {
			loc = zone
		}
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	}

	// Date-only (all-day), e.g., 20250101
	t, err := time.ParseInLocation("20060102", v, loc)
	return t, true, err
}

// parseDuration parses the RFC 5545 duration subset: [+-]P[nW] or
// [+-]P[nD][T[nH][nM][nS]].
func parseDuration(v string) (time.Duration, error) {
	s := strings.TrimSpace(v)
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T' && !inTime && num == "":
			inTime = true
			continue
		}
		n, err := strconv.Atoi(num)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		num = ""
		var unit time.Duration
		switch {
		case r == 'W' && !inTime:
			unit = 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			unit = 24 * time.Hour
		case r == 'H' && inTime:
			unit = time.Hour
		case r == 'M' && inTime:
			unit = time.Minute
		case r == 'S' && inTime:
			unit = time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		total += time.Duration(n) * unit
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}
