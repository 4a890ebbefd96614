package gcal

import (
	"fmt"
	"time"

	"google.golang.org/api/calendar/v3"

	"kal/internal/model"
)

const dateLayout = "2006-01-02"

// toAPI builds the insert payload. Start and end are always sent as
// date-times stamped with the zone label tz.
func toAPI(ev model.Event, tz string) (*calendar.Event, error) {
	if ev.Start.IsZero() {
		return nil, fmt.Errorf("event %q: %w: start", ev.Title, model.ErrMissingTime)
	}
	if ev.End.IsZero() {
		return nil, fmt.Errorf("event %q: %w: end", ev.Title, model.ErrMissingTime)
	}

	out := &calendar.Event{
		Summary:     ev.Title,
		Description: ev.Description,
		Location:    ev.Location,
		Start:       &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339), TimeZone: tz},
		End:         &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339), TimeZone: tz},
	}
	if ev.Color.Valid() {
		out.ColorId = ev.Color.ID()
	}
	if len(ev.Properties.Private) > 0 || len(ev.Properties.Shared) > 0 {
		props := ev.Properties.Clone()
		out.ExtendedProperties = &calendar.EventExtendedProperties{
			Private: props.Private,
			Shared:  props.Shared,
		}
	}
	return out, nil
}

// fromAPI converts a listed event. All-day dates are read in loc.
func fromAPI(in *calendar.Event, loc *time.Location) (model.Event, error) {
	out := model.Event{
		ID:          in.Id,
		Title:       in.Summary,
		Description: in.Description,
		Location:    in.Location,
		HTMLLink:    in.HtmlLink,
	}
	// Unparseable bookkeeping timestamps are dropped rather than failing the listing.
	if t, err := time.Parse(time.RFC3339, in.Created); err == nil {
		out.Created = t
	}
	if t, err := time.Parse(time.RFC3339, in.Updated); err == nil {
		out.Updated = t
	}
	if in.ColorId != "" {
		c, err := model.ColorFromID(in.ColorId)
		if err != nil {
			return out, fmt.Errorf("event %s: %w", in.Id, err)
		}
		out.Color = c
	}

	var err error
	var allDayStart, allDayEnd bool
	if out.Start, allDayStart, err = parseDateTime(in.Start, loc); err != nil {
		return out, fmt.Errorf("event %s start: %w", in.Id, err)
	}
	if out.End, allDayEnd, err = parseDateTime(in.End, loc); err != nil {
		return out, fmt.Errorf("event %s end: %w", in.Id, err)
	}
	out.AllDay = allDayStart || allDayEnd

	if in.ExtendedProperties != nil {
		out.Properties = model.ExtendedProperties{
			Private: in.ExtendedProperties.Private,
			Shared:  in.ExtendedProperties.Shared,
		}.Clone()
	}
	return out, nil
}

func parseDateTime(dt *calendar.EventDateTime, loc *time.Location) (time.Time, bool, error) {
	switch {
	case dt == nil:
		return time.Time{}, false, nil
	case dt.DateTime != "":
		t, err := time.Parse(time.RFC3339, dt.DateTime)
		return t, false, err
	case dt.Date != "":
		t, err := time.ParseInLocation(dateLayout, dt.Date, loc)
		return t, true, err
	default:
		return time.Time{}, false, fmt.Errorf("unknown date type")
	}
}
