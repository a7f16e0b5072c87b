// Package validate checks event drafts before they are admitted into the
// store. Every entry path (manual form input and assistant proposals) goes
// through Validate; nothing is trusted to be well-formed.
package validate

import (
	"errors"
	"strings"

	"github.com/sambabiba/shinbis-calendar/internal/model"
)

var (
	ErrEmptyTitle     = errors.New("validate: title is empty")
	ErrMalformedTime  = errors.New("validate: time must be HH:MM with hour 00-23 and minute 00-59")
	ErrEndBeforeStart = errors.New("validate: end time must be after start time")
)

// Draft holds the raw user-entered (or assistant-proposed) event fields.
type Draft struct {
	Title       string
	Description string
	Priority    model.Priority
	AllDay      bool
	StartTime   string
	EndTime     string
	Color       model.Color
}

// Clean is a draft that passed validation, with fields normalized:
// title trimmed, priority/color snapped to the closed enums, and times
// forced empty for all-day events.
type Clean struct {
	Title       string
	Description string
	Priority    model.Priority
	AllDay      bool
	StartTime   string
	EndTime     string
	Color       model.Color
}

// Validate applies the rules in a fixed order:
//
//  1. title must be non-empty after trimming (ErrEmptyTitle)
//  2. when not all-day, both times must be well-formed HH:MM (ErrMalformedTime)
//  3. when not all-day, start must be strictly before end (ErrEndBeforeStart)
//
// All-day drafts have their times cleared regardless of input. Pure function,
// no side effects.
func Validate(d Draft) (Clean, error) {
	title := strings.TrimSpace(d.Title)
	if title == "" {
		return Clean{}, ErrEmptyTitle
	}

	out := Clean{
		Title:       title,
		Description: strings.TrimSpace(d.Description),
		Priority:    d.Priority.Normalize(),
		AllDay:      d.AllDay,
		Color:       d.Color.Normalize(),
	}

	if d.AllDay {
		// Times are mutually exclusive with all-day; drop whatever came in.
		return out, nil
	}

	if !ValidClockTime(d.StartTime) || !ValidClockTime(d.EndTime) {
		return Clean{}, ErrMalformedTime
	}
	// Lexicographic compare is correct because the format is fixed-width
	// zero-padded.
	if d.StartTime >= d.EndTime {
		return Clean{}, ErrEndBeforeStart
	}

	out.StartTime = d.StartTime
	out.EndTime = d.EndTime
	return out, nil
}

// ValidClockTime reports whether s is a zero-padded 24-hour "HH:MM" string.
func ValidClockTime(s string) bool {
	if len(s) != 5 || s[2] != ':' {
		return false
	}
	for _, i := range [4]int{0, 1, 3, 4} {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	hour := int(s[0]-'0')*10 + int(s[1]-'0')
	minute := int(s[3]-'0')*10 + int(s[4]-'0')
	return hour <= 23 && minute <= 59
}

// ValidAPIKey applies the shape rule for Gemini API keys entered through the
// setup prompt: "AIza" prefix and a length between 35 and 45 characters.
func ValidAPIKey(key string) bool {
	if !strings.HasPrefix(key, "AIza") {
		return false
	}
	return len(key) >= 35 && len(key) <= 45
}
