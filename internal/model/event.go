package model

import (
	"errors"
	"fmt"
	"maps"
	"time"
)

// ErrMissingTime is returned when a time comparison involves an event that
// lacks the compared start or end time.
var ErrMissingTime = errors.New("event has no such time")

// ExtendedProperties mirrors the destination calendar's extended properties
// block. Private properties are visible only on the destination calendar.
type ExtendedProperties struct {
	Private map[string]string `json:"private,omitempty"`
	Shared  map[string]string `json:"shared,omitempty"`
}

// Clone returns a deep copy.
func (p ExtendedProperties) Clone() ExtendedProperties {
	return ExtendedProperties{
		Private: maps.Clone(p.Private),
		Shared:  maps.Clone(p.Shared),
	}
}

// Event describes one calendar occurrence.
//
// Event has value semantics: every With* method returns a new Event and
// leaves the receiver untouched, including its property maps. Empty strings
// and zero times stand for absent values.
type Event struct {
	// ID is set only for events that already exist in a calendar.
	ID          string    `json:"id,omitempty"`
	Title       string    `json:"title,omitempty"`
	Description string    `json:"description,omitempty"`
	Location    string    `json:"location,omitempty"`
	HTMLLink    string    `json:"html_link,omitempty"`
	AllDay      bool      `json:"is_all_day"`
	Created     time.Time `json:"created,omitzero"`
	Updated     time.Time `json:"updated,omitzero"`
	Start       time.Time `json:"start,omitzero"`
	End         time.Time `json:"end,omitzero"`
	Color       Color     `json:"color,omitzero"`

	Properties ExtendedProperties `json:"extended_properties,omitzero"`
}

// Text returns the value of a string-typed field.
func (e Event) Text(f Field) (string, error) {
	switch f {
	case FieldID:
		return e.ID, nil
	case FieldTitle:
		return e.Title, nil
	case FieldDescription:
		return e.Description, nil
	case FieldLocation:
		return e.Location, nil
	case FieldHTMLLink:
		return e.HTMLLink, nil
	}
	if !f.Valid() {
		return "", fmt.Errorf("%w: %s", ErrUnknownField, f)
	}
	return "", fmt.Errorf("%w: %s is %s, not string", ErrFieldType, f, f.Kind())
}

// WithText returns a copy of e with the string-typed field f set to v.
func (e Event) WithText(f Field, v string) (Event, error) {
	out := e.clone()
	switch f {
	case FieldID:
		out.ID = v
	case FieldTitle:
		out.Title = v
	case FieldDescription:
		out.Description = v
	case FieldLocation:
		out.Location = v
	case FieldHTMLLink:
		out.HTMLLink = v
	default:
		if !f.Valid() {
			return e, fmt.Errorf("%w: %s", ErrUnknownField, f)
		}
		return e, fmt.Errorf("%w: %s is %s, not string", ErrFieldType, f, f.Kind())
	}
	return out, nil
}

// WithColor returns a copy of e with its color set.
func (e Event) WithColor(c Color) Event {
	out := e.clone()
	out.Color = c
	return out
}

// WithPrivateProperty returns a copy of e carrying the private extended
// property key=value.
func (e Event) WithPrivateProperty(key, value string) Event {
	out := e.clone()
	if out.Properties.Private == nil {
		out.Properties.Private = make(map[string]string, 1)
	}
	out.Properties.Private[key] = value
	return out
}

// PrivateProperty looks up a private extended property.
func (e Event) PrivateProperty(key string) (string, bool) {
	if e.Properties.Private == nil {
		return "", false
	}
	v, ok := e.Properties.Private[key]
	return v, ok
}

func (e Event) clone() Event {
	out := e
	out.Properties = e.Properties.Clone()
	return out
}

// CompareStart returns the signed duration between e's start and t
// (negative if e starts before t).
func (e Event) CompareStart(t time.Time) (time.Duration, error) {
	if e.Start.IsZero() || t.IsZero() {
		return 0, fmt.Errorf("%w: start", ErrMissingTime)
	}
	return e.Start.Sub(t), nil
}

// CompareEnd returns the signed duration between e's end and t
// (negative if e ends before t).
func (e Event) CompareEnd(t time.Time) (time.Duration, error) {
	if e.End.IsZero() || t.IsZero() {
		return 0, fmt.Errorf("%w: end", ErrMissingTime)
	}
	return e.End.Sub(t), nil
}

// Order relates an event time to an instant.
type Order int

const (
	Before Order = iota + 1
	AtOrBefore
	After
	AtOrAfter
)

func (o Order) holds(d time.Duration) (bool, error) {
	switch o {
	case Before:
		return d < 0, nil
	case AtOrBefore:
		return d <= 0, nil
	case After:
		return d > 0, nil
	case AtOrAfter:
		return d >= 0, nil
	default:
		return false, fmt.Errorf("unknown time order %d", int(o))
	}
}

// StartIs reports whether e's start is o relative to t. An event without a
// start, or a zero t, yields ErrMissingTime.
func (e Event) StartIs(o Order, t time.Time) (bool, error) {
	d, err := e.CompareStart(t)
	if err != nil {
		return false, err
	}
	return o.holds(d)
}

// EndIs is StartIs for the end time.
func (e Event) EndIs(o Order, t time.Time) (bool, error) {
	d, err := e.CompareEnd(t)
	if err != nil {
		return false, err
	}
	return o.holds(d)
}

// The boolean forms below treat a missing time as "no": an event without a
// start never starts after anything. Use StartIs/EndIs to see the error.

// StartsAfter reports whether e starts strictly after t.
func (e Event) StartsAfter(t time.Time) bool { return e.is(e.StartIs, After, t) }

// StartsAtOrAfter is the non-strict StartsAfter.
func (e Event) StartsAtOrAfter(t time.Time) bool { return e.is(e.StartIs, AtOrAfter, t) }

// StartsBefore reports whether e starts strictly before t.
func (e Event) StartsBefore(t time.Time) bool { return e.is(e.StartIs, Before, t) }

// StartsAtOrBefore is the non-strict StartsBefore.
func (e Event) StartsAtOrBefore(t time.Time) bool { return e.is(e.StartIs, AtOrBefore, t) }

// EndsAfter reports whether e ends strictly after t.
func (e Event) EndsAfter(t time.Time) bool { return e.is(e.EndIs, After, t) }

// EndsAtOrAfter is the non-strict EndsAfter.
func (e Event) EndsAtOrAfter(t time.Time) bool { return e.is(e.EndIs, AtOrAfter, t) }

// EndsBefore reports whether e ends strictly before t.
func (e Event) EndsBefore(t time.Time) bool { return e.is(e.EndIs, Before, t) }

// EndsAtOrBefore is the non-strict EndsBefore.
func (e Event) EndsAtOrBefore(t time.Time) bool { return e.is(e.EndIs, AtOrBefore, t) }

func (e Event) is(cmp func(Order, time.Time) (bool, error), o Order, t time.Time) bool {
	ok, err := cmp(o, t)
	return err == nil && ok
}

// StartsWithin reports whether e and other start at most precision apart.
func (e Event) StartsWithin(other Event, precision time.Duration) (bool, error) {
	d, err := e.CompareStart(other.Start)
	if err != nil {
		return false, err
	}
	if d < 0 {
		d = -d
	}
	return d <= precision, nil
}

// Less orders events by start time; events without a start sort first.
func (e Event) Less(other Event) bool {
	return e.Start.Before(other.Start)
}

func (e Event) String() string {
	return fmt.Sprintf("<%q @ %s//%s>", e.Title, e.Start.Format("2006-01-02 15:04 MST"), e.End.Sub(e.Start))
}
