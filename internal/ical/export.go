// Package ical serializes the event index as an iCalendar feed so other
// calendar tools can subscribe to it.
package ical

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/sambabiba/shinbis-calendar/internal/dates"
	"github.com/sambabiba/shinbis-calendar/internal/model"
)

const uidDomain = "shinbis-calendar"

// Export renders the whole index as a VCALENDAR. Days are emitted in date
// order, events within a day in their stored order. All-day events become
// DATE-valued DTSTART/DTEND pairs covering one day; timed events combine the
// date key with the HH:MM fields in local time. A timed event missing its end
// (a migrated legacy record) gets a one-hour duration.
func Export(idx model.Index) (string, error) {
	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId("-//shinbis-calendar//EN")

	keys := make([]string, 0, len(idx))
	for key := range idx {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		day, err := dates.ParseKey(key)
		if err != nil {
			return "", fmt.Errorf("ical: bad date key %q: %w", key, err)
		}
		for _, ev := range idx[key] {
			addEvent(cal, day, ev)
		}
	}

	return cal.Serialize(), nil
}

func addEvent(cal *ics.Calendar, day time.Time, ev model.Event) {
	ve := cal.AddEvent(fmt.Sprintf("%d@%s", ev.ID, uidDomain))
	ve.SetDtStampTime(time.Now().UTC())
	if !ev.CreatedAt.IsZero() {
		ve.SetCreatedTime(ev.CreatedAt)
	}
	ve.SetSummary(ev.Title)
	if ev.Description != "" {
		ve.SetDescription(ev.Description)
	}

	if ev.AllDay {
		ve.SetAllDayStartAt(day)
		ve.SetAllDayEndAt(day.AddDate(0, 0, 1))
		return
	}

	start := atClockTime(day, ev.StartTime)
	end := atClockTime(day, ev.EndTime)
	if ev.EndTime == "" || !end.After(start) {
		end = start.Add(time.Hour)
	}
	ve.SetStartAt(start)
	ve.SetEndAt(end)
}

// atClockTime combines a calendar day with an "HH:MM" string. A missing or
// malformed time yields midnight of that day.
func atClockTime(day time.Time, hhmm string) time.Time {
	parts := strings.SplitN(hhmm, ":", 2)
	if len(parts) != 2 {
		return day
	}
	hour, err1 := strconv.Atoi(parts[0])
	minute, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return day
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, day.Location())
}
