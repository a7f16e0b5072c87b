// Package grid derives the month and week view models from the event index.
// Everything here is a pure function of its inputs; the caller supplies
// "today" and an event lookup so builds are deterministic.
package grid

import (
	"time"

	"github.com/sambabiba/shinbis-calendar/internal/dates"
	"github.com/sambabiba/shinbis-calendar/internal/model"
)

// MonthCells is the fixed size of a month grid: 6 rows of 7 columns, so the
// viewport never changes shape between months.
const MonthCells = 42

// Cell is one rendered month-grid cell. Derived, never persisted.
type Cell struct {
	Date time.Time `json:"-"`
	Key  string    `json:"date"`

	BelongsToDisplayedMonth bool `json:"inMonth"`
	IsToday                 bool `json:"isToday"`
	IsPast                  bool `json:"isPast"`

	EventCount    int         `json:"eventCount"`
	DominantColor model.Color `json:"dominantColor,omitempty"`
}

// EventLookup returns the stored events for a date key, in insertion order.
type EventLookup func(dateKey string) []model.Event

// BuildMonthGrid computes the 42-cell grid for the given month.
//
// Leading cells come from the end of the previous month (one per weekday
// before the 1st, with Sunday as weekday 0), middle cells are the days of the
// target month, and trailing cells fill the remainder from the next month.
// Cells outside the displayed month are tagged and carry no event counts.
func BuildMonthGrid(year int, month time.Month, today time.Time, eventsOf EventLookup) []Cell {
	firstDay := time.Date(year, month, 1, 0, 0, 0, 0, time.Local)
	startDayOfWeek := int(firstDay.Weekday())
	// Day zero of the next month is the last day of this one.
	lastDate := time.Date(year, month+1, 0, 0, 0, 0, 0, time.Local).Day()

	cells := make([]Cell, 0, MonthCells)

	for i := startDayOfWeek; i > 0; i-- {
		cells = append(cells, newCell(firstDay.AddDate(0, 0, -i), false, today, eventsOf))
	}
	for day := 1; day <= lastDate; day++ {
		cells = append(cells, newCell(time.Date(year, month, day, 0, 0, 0, 0, time.Local), true, today, eventsOf))
	}
	for day := 1; len(cells) < MonthCells; day++ {
		cells = append(cells, newCell(firstDay.AddDate(0, 1, day-1), false, today, eventsOf))
	}

	return cells
}

func newCell(date time.Time, inMonth bool, today time.Time, eventsOf EventLookup) Cell {
	c := Cell{
		Date:                    date,
		Key:                     dates.Key(date),
		BelongsToDisplayedMonth: inMonth,
		IsToday:                 dates.SameDay(date, today),
	}
	c.IsPast = date.Before(today) && !c.IsToday

	// Event indicators only decorate days of the displayed month.
	if inMonth && eventsOf != nil {
		events := eventsOf(c.Key)
		c.EventCount = len(events)
		c.DominantColor = dominantColor(events)
	}
	return c
}

// dominantColor picks the most frequent color of a day's events. Ties go to
// the color whose first occurrence is later, which is what the reduce over
// the count map did in earlier versions.
func dominantColor(events []model.Event) model.Color {
	if len(events) == 0 {
		return ""
	}
	if len(events) == 1 {
		return events[0].Color.Normalize()
	}

	counts := make(map[model.Color]int, len(events))
	order := make([]model.Color, 0, len(events))
	for _, ev := range events {
		c := ev.Color.Normalize()
		if _, seen := counts[c]; !seen {
			order = append(order, c)
		}
		counts[c]++
	}

	best := order[0]
	for _, c := range order[1:] {
		if counts[c] >= counts[best] {
			best = c
		}
	}
	return best
}
