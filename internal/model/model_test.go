package model

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseField_Aliases(t *testing.T) {
	testCases := []struct {
		name string
		want Field
	}{
		{"title", FieldTitle},
		{"Summary", FieldTitle},
		{"SUMMARY", FieldTitle},
		{"begin", FieldStart},
		{"start", FieldStart},
		{"url", FieldHTMLLink},
		{"html_link", FieldHTMLLink},
		{"Description", FieldDescription},
		{"is_all_day", FieldAllDay},
		{"color", FieldColor},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f, err := ParseField(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.want, f)
		})
	}
}

func TestParseField_Unknown(t *testing.T) {
	_, err := ParseField("titel")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestField_Kind(t *testing.T) {
	assert.True(t, FieldTitle.IsText())
	assert.True(t, FieldHTMLLink.IsText())
	assert.Equal(t, KindTime, FieldStart.Kind())
	assert.Equal(t, KindBool, FieldAllDay.Kind())
	assert.Equal(t, KindColor, FieldColor.Kind())
	assert.False(t, Field(0).Valid())
}

func TestColor_RoundTrip(t *testing.T) {
	for _, c := range Colors() {
		t.Run(c.String(), func(t *testing.T) {
			byID, err := ColorFromID(c.ID())
			require.NoError(t, err)
			assert.Equal(t, c, byID)

			byName, err := ParseColor(c.String())
			require.NoError(t, err)
			assert.Equal(t, c, byName)
			assert.Len(t, c.Hex(), 6)
		})
	}
	assert.Len(t, Colors(), 11)
}

func TestColor_KnownValues(t *testing.T) {
	assert.Equal(t, "2", Sage.ID())
	assert.Equal(t, "7ae7bf", Sage.Hex())
	assert.Equal(t, "11", Tomato.ID())
	assert.Equal(t, "dc2127", Tomato.Hex())
	assert.Equal(t, "", ColorNone.ID())
}

func TestColor_Unknown(t *testing.T) {
	_, err := ColorFromID("12")
	assert.ErrorIs(t, err, ErrUnknownColor)
	_, err = ColorFromID("")
	assert.ErrorIs(t, err, ErrUnknownColor)
	_, err = ParseColor("magenta")
	assert.ErrorIs(t, err, ErrUnknownColor)
}

func TestColor_Text(t *testing.T) {
	var c Color
	require.NoError(t, c.UnmarshalText([]byte("Peacock")))
	assert.Equal(t, Peacock, c)

	b, err := c.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "peacock", string(b))

	require.NoError(t, c.UnmarshalText([]byte("none")))
	assert.Equal(t, ColorNone, c)
}

func TestEvent_WithTextDoesNotMutate(t *testing.T) {
	orig := Event{Title: "HAX301X"}

	changed, err := orig.WithText(FieldTitle, "Algebra")
	require.NoError(t, err)

	assert.Equal(t, "HAX301X", orig.Title)
	assert.Equal(t, "Algebra", changed.Title)
}

func TestEvent_WithTextRejectsNonString(t *testing.T) {
	_, err := Event{}.WithText(FieldStart, "tomorrow")
	assert.ErrorIs(t, err, ErrFieldType)

	_, err = Event{}.Text(FieldColor)
	assert.ErrorIs(t, err, ErrFieldType)

	_, err = Event{}.Text(Field(99))
	assert.ErrorIs(t, err, ErrUnknownField)
}

func TestEvent_WithPrivatePropertyCopiesMaps(t *testing.T) {
	orig := Event{Properties: ExtendedProperties{Private: map[string]string{"owner": "me"}}}

	tagged := orig.WithPrivateProperty("kal", "true")

	_, ok := orig.PrivateProperty("kal")
	assert.False(t, ok, "original must not see the new key")
	v, ok := tagged.PrivateProperty("kal")
	assert.True(t, ok)
	assert.Equal(t, "true", v)
	v, _ = tagged.PrivateProperty("owner")
	assert.Equal(t, "me", v)
}

func TestEvent_TimeComparisons(t *testing.T) {
	old := time.Date(1999, 10, 19, 0, 0, 0, 0, time.UTC)
	normal := Event{
		Start: time.Date(2021, 9, 13, 9, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 9, 13, 10, 0, 0, 0, time.UTC),
	}
	before := Event{
		Start: time.Date(2021, 8, 8, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 9, 9, 11, 0, 0, 0, time.UTC),
	}
	after := Event{
		Start: time.Date(2022, 7, 8, 10, 0, 0, 0, time.UTC),
		End:   time.Date(2022, 10, 9, 11, 0, 0, 0, time.UTC),
	}

	assert.True(t, after.StartsAfter(before.Start))
	assert.True(t, before.StartsAfter(old))
	assert.True(t, before.StartsBefore(after.Start))
	assert.False(t, after.StartsBefore(old))
	assert.True(t, before.Less(after))

	assert.False(t, normal.StartsAfter(normal.Start), "strict comparison")
	assert.False(t, normal.EndsBefore(normal.End), "strict comparison")
	assert.True(t, normal.EndsAfter(normal.Start))

	same, err := normal.StartsWithin(normal, 0)
	require.NoError(t, err)
	assert.True(t, same)
}

func TestEvent_TimeComparisonErrors(t *testing.T) {
	_, err := Event{}.CompareStart(time.Now())
	assert.ErrorIs(t, err, ErrMissingTime)

	_, err = Event{}.CompareEnd(time.Now())
	assert.ErrorIs(t, err, ErrMissingTime)

	assert.False(t, Event{}.StartsAfter(time.Time{}.Add(time.Hour)))

	at := time.Date(2021, 9, 13, 9, 0, 0, 0, time.UTC)
	for _, o := range []Order{Before, AtOrBefore, After, AtOrAfter} {
		_, err := Event{End: at}.StartIs(o, at)
		assert.ErrorIs(t, err, ErrMissingTime)
		_, err = Event{Start: at}.EndIs(o, at)
		assert.ErrorIs(t, err, ErrMissingTime)
		_, err = Event{Start: at, End: at}.StartIs(o, time.Time{})
		assert.ErrorIs(t, err, ErrMissingTime)
	}

	_, err = Event{Start: at}.StartIs(Order(0), at)
	assert.Error(t, err)
}

func TestEvent_StrictAndNonStrict(t *testing.T) {
	start := time.Date(2021, 9, 13, 9, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	ev := Event{Start: start, End: end}

	testCases := []struct {
		name string
		got  bool
		want bool
	}{
		{"starts after own start", ev.StartsAfter(start), false},
		{"starts at or after own start", ev.StartsAtOrAfter(start), true},
		{"starts before own start", ev.StartsBefore(start), false},
		{"starts at or before own start", ev.StartsAtOrBefore(start), true},
		{"ends after own end", ev.EndsAfter(end), false},
		{"ends at or after own end", ev.EndsAtOrAfter(end), true},
		{"ends before own end", ev.EndsBefore(end), false},
		{"ends at or before own end", ev.EndsAtOrBefore(end), true},
		{"starts at or after a later instant", ev.StartsAtOrAfter(end), false},
		{"ends at or before an earlier instant", ev.EndsAtOrBefore(start), false},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.got)
		})
	}

	ok, err := ev.EndIs(AtOrAfter, end)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = ev.StartIs(After, start)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvent_ZoneIndependentComparison(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	ev := Event{Start: time.Date(2021, 9, 13, 10, 0, 0, 0, paris)}
	assert.False(t, ev.StartsAfter(time.Date(2021, 9, 13, 8, 0, 0, 0, time.UTC)), "10:00 CEST is 08:00 UTC")
	assert.True(t, ev.StartsAfter(time.Date(2021, 9, 13, 7, 59, 0, 0, time.UTC)))
}
