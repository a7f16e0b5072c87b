package grid

import (
	"time"

	"github.com/sambabiba/shinbis-calendar/internal/dates"
	"github.com/sambabiba/shinbis-calendar/internal/model"
)

// WeekGrid is the 7-day week view: one column per day, each partitioned into
// the four fixed time slots.
type WeekGrid struct {
	Start time.Time `json:"-"`
	Key   string    `json:"weekStart"`
	Days  [7]WeekDay `json:"days"`
}

// WeekDay is a single column of the week grid.
type WeekDay struct {
	Date    time.Time `json:"-"`
	Key     string    `json:"date"`
	Weekday string    `json:"weekday"`
	IsToday bool      `json:"isToday"`
	Slots   [4]SlotCell `json:"slots"`
}

// SlotCell holds the events of one day classified into one time slot.
type SlotCell struct {
	Slot   TimeSlot      `json:"slot"`
	Events []model.Event `json:"events"`
}

// BuildWeekGrid computes the week view starting at weekStart, which must be a
// Sunday; callers normalize through dates.WeekStart first. Each day's events
// are fetched once and distributed across the slots by Classify.
func BuildWeekGrid(weekStart, today time.Time, eventsOf EventLookup) WeekGrid {
	wg := WeekGrid{
		Start: weekStart,
		Key:   dates.Key(weekStart),
	}

	slots := Slots()
	for i := 0; i < 7; i++ {
		day := weekStart.AddDate(0, 0, i)
		wd := WeekDay{
			Date:    day,
			Key:     dates.Key(day),
			Weekday: day.Weekday().String()[:3],
			IsToday: dates.SameDay(day, today),
		}
		for si, slot := range slots {
			wd.Slots[si] = SlotCell{Slot: slot, Events: []model.Event{}}
		}

		if eventsOf != nil {
			for _, ev := range eventsOf(wd.Key) {
				slot := Classify(ev)
				for si := range wd.Slots {
					if wd.Slots[si].Slot == slot {
						wd.Slots[si].Events = append(wd.Slots[si].Events, ev)
						break
					}
				}
			}
		}

		wg.Days[i] = wd
	}

	return wg
}
