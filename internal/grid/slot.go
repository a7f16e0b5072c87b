package grid

import (
	"strconv"
	"strings"

	"github.com/sambabiba/shinbis-calendar/internal/model"
)

// TimeSlot is one of the four fixed bands of the week view.
type TimeSlot string

const (
	SlotAllDay    TimeSlot = "all-day"
	SlotMorning   TimeSlot = "morning"   // [06:00, 12:00)
	SlotAfternoon TimeSlot = "afternoon" // [12:00, 18:00)
	SlotEvening   TimeSlot = "evening"   // [18:00, 24:00) and [00:00, 06:00)
)

// Slots lists the four bands in display order, top to bottom.
func Slots() [4]TimeSlot {
	return [4]TimeSlot{SlotAllDay, SlotMorning, SlotAfternoon, SlotEvening}
}

// Classify assigns an event to exactly one time slot.
//
// All-day events always classify as SlotAllDay, even if a start time is
// present. Timed events classify by start hour; records that predate the
// startTime field fall back to the legacy single time field, and events with
// no time at all land in the morning band, matching how older versions
// displayed them.
func Classify(ev model.Event) TimeSlot {
	if ev.AllDay {
		return SlotAllDay
	}

	t := ev.StartTime
	if t == "" {
		t = ev.LegacyTime
	}
	if t == "" {
		return SlotMorning
	}

	hour, err := strconv.Atoi(strings.SplitN(t, ":", 2)[0])
	if err != nil {
		return SlotMorning
	}

	switch {
	case hour >= 6 && hour < 12:
		return SlotMorning
	case hour >= 12 && hour < 18:
		return SlotAfternoon
	default:
		return SlotEvening
	}
}
