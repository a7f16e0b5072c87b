// Package app owns the single mutable application state and routes every
// operation through it: grid builds, validated event CRUD, and the assistant
// flow. The pure pieces (grid, validate, dates) never see the state directly.
package app

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sambabiba/shinbis-calendar/internal/assist"
	"github.com/sambabiba/shinbis-calendar/internal/dates"
	"github.com/sambabiba/shinbis-calendar/internal/grid"
	appLog "github.com/sambabiba/shinbis-calendar/internal/log"
	"github.com/sambabiba/shinbis-calendar/internal/model"
	"github.com/sambabiba/shinbis-calendar/internal/store"
	"github.com/sambabiba/shinbis-calendar/internal/validate"
)

var (
	// ErrBadDate means a date key did not parse as YYYY-MM-DD.
	ErrBadDate = errors.New("app: bad date key")

	// ErrEventNotFound means no event with the given ID exists on that day.
	ErrEventNotFound = errors.New("app: event not found")

	// ErrAssistBusy means an assistant request is already in flight.
	// Submissions are rejected until the pending one resolves or errors.
	ErrAssistBusy = errors.New("app: assistant request already pending")

	// ErrInvalidKey means a user-supplied API key failed the shape check.
	ErrInvalidKey = errors.New("app: invalid API key format")
)

// Controller mediates between the HTTP layer and the calendar core.
type Controller struct {
	store     *store.Store
	assistant *assist.Client
	now       func() time.Time

	// ID generation and the single-flight assistant flag share one mutex;
	// neither is hot.
	mu         sync.Mutex
	lastID     int64
	assistBusy bool
}

// New constructs a Controller. nowFn supplies the clock; tests pin it.
func New(st *store.Store, assistant *assist.Client, nowFn func() time.Time) *Controller {
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Controller{
		store:     st,
		assistant: assistant,
		now:       nowFn,
	}
}

// MonthGrid builds the 42-cell grid for the given month against today's date.
func (c *Controller) MonthGrid(year int, month time.Month) []grid.Cell {
	return grid.BuildMonthGrid(year, month, c.now(), c.store.EventsOn)
}

// WeekGrid builds the week view containing date. The input is normalized to
// its Sunday here so navigation can hand in any day of the week.
func (c *Controller) WeekGrid(date time.Time) grid.WeekGrid {
	return grid.BuildWeekGrid(dates.WeekStart(date), c.now(), c.store.EventsOn)
}

// EventsOn returns the stored events for a date key.
func (c *Controller) EventsOn(dateKey string) []model.Event {
	return c.store.EventsOn(dateKey)
}

// AddEvent validates the draft and inserts it under dateKey.
func (c *Controller) AddEvent(dateKey string, d validate.Draft) (model.Event, error) {
	if _, err := dates.ParseKey(dateKey); err != nil {
		return model.Event{}, ErrBadDate
	}
	clean, err := validate.Validate(d)
	if err != nil {
		return model.Event{}, err
	}

	now := c.now()
	ev := model.Event{
		ID:          c.nextID(now),
		Title:       clean.Title,
		Description: clean.Description,
		Priority:    clean.Priority,
		AllDay:      clean.AllDay,
		StartTime:   clean.StartTime,
		EndTime:     clean.EndTime,
		Color:       clean.Color,
		CreatedAt:   now,
	}
	c.store.Upsert(dateKey, ev)
	appLog.Info("event added", "date", dateKey, "id", ev.ID, "title", ev.Title)
	return ev, nil
}

// UpdateEvent validates the draft and replaces the event with eventID under
// dateKey in place. The ID and creation timestamp are immutable; moving an
// event to another day is delete + add, never an in-place date change.
func (c *Controller) UpdateEvent(dateKey string, eventID int64, d validate.Draft) (model.Event, error) {
	existing, ok := c.findEvent(dateKey, eventID)
	if !ok {
		return model.Event{}, ErrEventNotFound
	}
	clean, err := validate.Validate(d)
	if err != nil {
		return model.Event{}, err
	}

	ev := existing
	ev.Title = clean.Title
	ev.Description = clean.Description
	ev.Priority = clean.Priority
	ev.AllDay = clean.AllDay
	ev.StartTime = clean.StartTime
	ev.EndTime = clean.EndTime
	ev.Color = clean.Color
	ev.UpdatedAt = c.now()

	c.store.Upsert(dateKey, ev)
	appLog.Info("event updated", "date", dateKey, "id", ev.ID)
	return ev, nil
}

// DeleteEvent removes the event with eventID from dateKey.
func (c *Controller) DeleteEvent(dateKey string, eventID int64) error {
	if _, ok := c.findEvent(dateKey, eventID); !ok {
		return ErrEventNotFound
	}
	c.store.Remove(dateKey, eventID)
	appLog.Info("event deleted", "date", dateKey, "id", eventID)
	return nil
}

// AssistAdd runs the natural-language flow: ask the adapter for a proposal,
// re-validate it exactly like manual input, and commit it. It returns the
// committed event, or nil when the text did not describe an event.
//
// Only one request may be in flight; a second submission fails with
// ErrAssistBusy. A context cancelled before commit discards the proposal, so
// abandoning the editing surface never adds an event behind the user's back.
func (c *Controller) AssistAdd(ctx context.Context, userText string) (*model.Event, error) {
	if !c.beginAssist() {
		return nil, ErrAssistBusy
	}
	defer c.endAssist()

	// One snapshot of "now": the adapter resolves "tomorrow" against this,
	// and the same instant becomes the reference everywhere below, however
	// slow the round-trip is.
	reference := c.now()

	proposal, err := c.assistant.Propose(ctx, userText, reference)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		// The caller went away while the request was in flight.
		appLog.Info("assist result discarded", "reason", err.Error())
		return nil, err
	}

	if _, perr := dates.ParseKey(proposal.Date); perr != nil {
		appLog.Error("assist proposal has bad date", perr, "date", proposal.Date)
		return nil, ErrBadDate
	}

	clean, err := validate.Validate(validate.Draft{
		Title:       proposal.Title,
		Description: proposal.Description,
		Priority:    proposal.Priority,
		AllDay:      proposal.AllDay,
		StartTime:   proposal.StartTime,
		EndTime:     proposal.EndTime,
		Color:       proposal.Color,
	})
	if err != nil {
		return nil, err
	}

	ev := model.Event{
		ID:          c.nextID(reference),
		Title:       clean.Title,
		Description: clean.Description,
		Priority:    clean.Priority,
		AllDay:      clean.AllDay,
		StartTime:   clean.StartTime,
		EndTime:     clean.EndTime,
		Color:       clean.Color,
		CreatedAt:   reference,
	}
	c.store.Upsert(proposal.Date, ev)
	appLog.Info("event added by assistant", "date", proposal.Date, "id", ev.ID, "title", ev.Title)
	return &ev, nil
}

// AssistAvailable reports whether an API key is configured.
func (c *Controller) AssistAvailable() bool {
	return c.assistant != nil && c.assistant.HasKey()
}

// SetAPIKey accepts a user-entered key after the shape check. Used by the
// setup prompt and by the key-reset flow after ErrAuth.
func (c *Controller) SetAPIKey(key string) error {
	if !validate.ValidAPIKey(key) {
		return ErrInvalidKey
	}
	c.assistant.SetKey(key)
	appLog.Info("assistant API key updated")
	return nil
}

// ResetAPIKey drops the configured key, forcing the setup flow next time.
func (c *Controller) ResetAPIKey() {
	c.assistant.SetKey("")
	appLog.Info("assistant API key cleared")
}

// Export renders the whole index snapshot; used by the ICS endpoint and the
// scheduled backup.
func (c *Controller) Snapshot() model.Index {
	return c.store.Snapshot()
}

func (c *Controller) findEvent(dateKey string, eventID int64) (model.Event, bool) {
	for _, ev := range c.store.EventsOn(dateKey) {
		if ev.ID == eventID {
			return ev, true
		}
	}
	return model.Event{}, false
}

// nextID derives a timestamp ID, nudged forward when two events land on the
// same millisecond so IDs stay unique within the process.
func (c *Controller) nextID(now time.Time) int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := now.UnixMilli()
	if id <= c.lastID {
		id = c.lastID + 1
	}
	c.lastID = id
	return id
}

func (c *Controller) beginAssist() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.assistBusy {
		return false
	}
	c.assistBusy = true
	return true
}

func (c *Controller) endAssist() {
	c.mu.Lock()
	c.assistBusy = false
	c.mu.Unlock()
}
