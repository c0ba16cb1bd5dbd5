/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/friendsincode/slotplanner/internal/models"
)

const minutesPerDay = 24 * 60

// ParseClock parses an HH:MM wall-clock time into minutes after midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid time %q: want HH:MM", s)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// FormatClock renders minutes after midnight as HH:MM, wrapping past midnight.
func FormatClock(minutes int) string {
	minutes = ((minutes % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}

// Span is a slot's time range in minutes after midnight. End is always after
// Start; a slot whose end is not after its start is read as running past midnight.
type Span struct {
	Start int
	End   int
}

// SpanOf parses both times of a slot.
func SpanOf(s models.Slot) (Span, error) {
	start, err := ParseClock(s.StartTime)
	if err != nil {
		return Span{}, err
	}
	end, err := ParseClock(s.EndTime)
	if err != nil {
		return Span{}, err
	}
	if end <= start {
		end += minutesPerDay
	}
	return Span{Start: start, End: end}, nil
}

// Minutes is the length of the span.
func (sp Span) Minutes() int {
	return sp.End - sp.Start
}

// Overlap returns the shared range of two spans in minutes, or false if they only touch or are disjoint.
func (sp Span) Overlap(other Span) (Span, bool) {
	// Either span may sit on the next day relative to the other.
	for _, shift := range []int{0, minutesPerDay, -minutesPerDay} {
		o := Span{Start: other.Start + shift, End: other.End + shift}
		start := max(sp.Start, o.Start)
		end := min(sp.End, o.End)
		if start < end {
			return Span{Start: start, End: end}, true
		}
	}
	return Span{}, false
}
