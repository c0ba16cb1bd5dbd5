/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package eventstore

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/friendsincode/slotplanner/internal/models"
)

// Occurrence is one dated instance of a (possibly recurring) event. Every
// occurrence shares the event's slot collection.
type Occurrence struct {
	EventID  string    `json:"event_id"`
	StartsAt time.Time `json:"starts_at"`
	EndsAt   time.Time `json:"ends_at"`
}

var recurrencePresets = map[string]string{
	"daily":   "FREQ=DAILY",
	"weekly":  "FREQ=WEEKLY",
	"monthly": "FREQ=MONTHLY",
}

// RuleFor maps a recurrence setting to an RRULE. One-time events yield "".
func RuleFor(recurrence string) (string, error) {
	r := strings.TrimSpace(recurrence)
	switch strings.ToLower(r) {
	case "", "none":
		return "", nil
	}
	if preset, ok := recurrencePresets[strings.ToLower(r)]; ok {
		return preset, nil
	}
	if _, err := rrule.StrToRRule(r); err != nil {
		return "", fmt.Errorf("invalid recurrence %q: %w", recurrence, err)
	}
	return r, nil
}

// Occurrences lists the event's instances starting within [from, to].
func Occurrences(event models.Event, from, to time.Time) ([]Occurrence, error) {
	rule, err := RuleFor(event.Recurrence)
	if err != nil {
		return nil, err
	}

	var duration time.Duration
	if event.EndDate != nil {
		duration = event.EndDate.Sub(event.StartDate)
	}

	var starts []time.Time
	if rule == "" {
		if !event.StartDate.Before(from) && !event.StartDate.After(to) {
			starts = []time.Time{event.LocalStart()}
		}
	} else {
		rr, err := rrule.StrToRRule(rule)
		if err != nil {
			return nil, err
		}
		// Expand in the event's zone so wall-clock times survive DST changes.
		rr.DTStart(event.LocalStart())
		starts = rr.Between(from, to, true)
	}

	out := make([]Occurrence, 0, len(starts))
	for _, s := range starts {
		out = append(out, Occurrence{EventID: event.ID, StartsAt: s, EndsAt: s.Add(duration)})
	}
	return out, nil
}
