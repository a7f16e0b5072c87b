package model

import "time"

// Priority classifies how important an event is. The persisted value is
// free-form in older blobs, so unknown values normalize to PriorityNormal.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Normalize maps unknown priorities to PriorityNormal.
func (p Priority) Normalize() Priority {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh:
		return p
	default:
		return PriorityNormal
	}
}

// Color is one of the fixed palette tags an event can carry.
type Color string

const (
	ColorBlue   Color = "blue"
	ColorGreen  Color = "green"
	ColorPurple Color = "purple"
	ColorOrange Color = "orange"
	ColorRed    Color = "red"
	ColorYellow Color = "yellow"
)

// Normalize maps unknown colors to ColorBlue, the palette default.
func (c Color) Normalize() Color {
	switch c {
	case ColorBlue, ColorGreen, ColorPurple, ColorOrange, ColorRed, ColorYellow:
		return c
	default:
		return ColorBlue
	}
}

// Event is one scheduled item. The JSON field names match the persisted blob
// format, including blobs written by earlier versions that stored a single
// "time" field instead of startTime/endTime.
type Event struct {
	// ID is a timestamp-derived identifier, immutable once created.
	ID int64 `json:"id"`

	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Priority    Priority `json:"priority"`

	// AllDay excludes StartTime/EndTime: when true, both are empty.
	AllDay    bool   `json:"isAllDay"`
	StartTime string `json:"startTime,omitempty"` // "HH:MM", 24-hour
	EndTime   string `json:"endTime,omitempty"`   // "HH:MM", 24-hour

	// LegacyTime is the single "time" field from older blobs. Load-time
	// migration copies it into StartTime and clears it.
	LegacyTime string `json:"time,omitempty"`

	Color Color `json:"color"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// Index maps a YYYY-MM-DD date key to that day's events in insertion order.
// No key may map to an empty list; removal of the last event removes the key.
type Index map[string][]Event

// Proposal is an assistant-extracted event candidate: the shape of a
// validated Event minus the ID, plus the target date. It is untrusted input
// until it passes the same validation as manual entry.
type Proposal struct {
	Title       string   `json:"title"`
	Date        string   `json:"date"` // YYYY-MM-DD
	StartTime   string   `json:"startTime"`
	EndTime     string   `json:"endTime"`
	AllDay      bool     `json:"isAllDay"`
	Description string   `json:"description"`
	Priority    Priority `json:"priority"`
	Color       Color    `json:"color"`
}
